package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"visadoc-backend/internal/analysis"
	"visadoc-backend/internal/checklist"
	"visadoc-backend/internal/followup"
	"visadoc-backend/internal/shared/metrics"
	"visadoc-backend/internal/shared/telemetry"
	"visadoc-backend/internal/shared/util"
)

// Analyzer issues one analysis request.
type Analyzer interface {
	Analyze(ctx context.Context, situation analysis.Situation, documentText string, locale analysis.Locale) (*analysis.Result, error)
}

// Translator fetches a translation of the current result.
type Translator interface {
	Translate(ctx context.Context, lang followup.Language, result *analysis.Result, items []checklist.Item, document string) (*followup.Translation, error)
}

// Answerer answers a follow-up question.
type Answerer interface {
	Ask(ctx context.Context, question string, mode followup.Mode, document string, result *analysis.Result) (followup.Entry, error)
}

// Deps are the collaborators shared by every Machine.
type Deps struct {
	Analyzer   Analyzer
	Translator Translator
	Answerer   Answerer
	Store      *checklist.Store
	NewID      func() string
}

// Machine owns the State of one session. All transitions go through Reduce
// under mu; network calls run without the lock and re-enter through Reduce.
type Machine struct {
	id   string
	deps Deps

	mu           sync.Mutex
	state        State
	cancel       context.CancelFunc
	inflightGen  uint64
	translations map[string]*followup.Translation
	subs         map[int]chan State
	nextSub      int
	lastActive   time.Time
	closed       bool

	flight singleflight.Group
	now    func() time.Time
}

// NewMachine returns a machine in the landing state.
func NewMachine(id string, deps Deps) *Machine {
	if deps.NewID == nil {
		deps.NewID = checklist.NewID
	}
	return &Machine{
		id:           id,
		deps:         deps,
		state:        Initial(),
		translations: make(map[string]*followup.Translation),
		subs:         make(map[int]chan State),
		lastActive:   time.Now(),
		now:          time.Now,
	}
}

func (m *Machine) ID() string { return m.id }

// Snapshot returns the current state. Callers must not modify its slices.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IdleSince reports the last time the session saw any activity.
func (m *Machine) IdleSince() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActive
}

// Dispatch applies a user event. Checklist changes are persisted before
// Dispatch returns. StartAnalysis must go through StartAnalysis instead.
func (m *Machine) Dispatch(ctx context.Context, e Event) (State, error) {
	switch e.(type) {
	case StartAnalysis, AnalysisSucceeded, AnalysisFailed, TranslationLoaded, TranslationFailed, QAAnswered:
		return m.Snapshot(), fmt.Errorf("%w: %s is internal", ErrInvalidTransition, EventName(e))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := Reduce(m.state, e)
	if err != nil {
		return m.state, err
	}
	if _, ok := e.(Back); ok {
		m.cancelInflightLocked()
	}
	m.commitLocked(e, next)

	// Saved even after the caller disconnects; the new status is already committed.
	switch e.(type) {
	case ToggleItem, MoveItem:
		m.deps.Store.Save(context.WithoutCancel(ctx), next.Fingerprint, checklist.Snapshot(next.Checklist))
	}
	return next, nil
}

// StartAnalysis issues an analysis for the current document. If one is
// already outstanding it is cancelled and its response will be dropped. The
// returned channel is closed once the response has been committed or dropped.
// The request outlives ctx; only supersession, Back or Close cancel it.
func (m *Machine) StartAnalysis(ctx context.Context) (<-chan struct{}, error) {
	m.mu.Lock()
	next, err := Reduce(m.state, StartAnalysis{})
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.cancelInflightLocked()
	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.inflightGen = next.Generation
	m.commitLocked(StartAnalysis{}, next)
	gen, situation, document, locale := next.Generation, next.Situation, next.Document, next.Locale
	m.mu.Unlock()

	metrics.IncAnalysisStarted()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		start := time.Now()
		result, err := m.analyze(reqCtx, situation, document, locale)
		metrics.ObserveAnalysisDurationMs(float64(time.Since(start).Milliseconds()))
		m.finishAnalysis(reqCtx, gen, situation, document, result, err)
	}()
	return done, nil
}

func (m *Machine) analyze(ctx context.Context, situation analysis.Situation, document string, locale analysis.Locale) (*analysis.Result, error) {
	if m.deps.Analyzer == nil {
		return nil, &analysis.FailureError{Message: analysis.UserMessage, Err: errors.New("analyzer not configured")}
	}
	return m.deps.Analyzer.Analyze(ctx, situation, document, locale)
}

func (m *Machine) finishAnalysis(ctx context.Context, gen uint64, situation analysis.Situation, document string, result *analysis.Result, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflightGen == gen {
		m.cancel = nil
		m.inflightGen = 0
	}
	if m.closed || m.state.Generation != gen || m.state.Phase != PhaseAnalyzing {
		metrics.IncAnalysisStale()
		telemetry.Info("session.analysis_stale", map[string]any{
			"session": util.ShortHash(m.id),
			"gen":     gen,
			"current": m.state.Generation,
		})
		return
	}

	var ev Event
	if cause != nil {
		msg := analysis.UserMessage
		var fe *analysis.FailureError
		if errors.As(cause, &fe) && fe.Message != "" {
			msg = fe.Message
		}
		ev = AnalysisFailed{Generation: gen, Message: msg}
	} else {
		// Merge under the lock so a concurrent toggle on the previous result
		// is visible to Load.
		fp := checklist.Fingerprint(document, situation)
		saved := m.deps.Store.Load(context.WithoutCancel(ctx), fp)
		ev = AnalysisSucceeded{
			Generation:  gen,
			Result:      result,
			Checklist:   checklist.Merge(result.Checklist, saved, m.deps.NewID),
			Fingerprint: fp,
		}
	}
	next, err := Reduce(m.state, ev)
	if err != nil {
		metrics.IncAnalysisStale()
		return
	}
	if cause != nil {
		metrics.IncAnalysisFailed()
	} else {
		metrics.IncAnalysisCompleted()
	}
	m.commitLocked(ev, next)
}

// Translate loads a translation of the current result, or clears it for
// LanguageNone. Concurrent requests for the same language share one upstream
// call and results are cached until the result is replaced.
func (m *Machine) Translate(ctx context.Context, lang followup.Language) (State, error) {
	if lang == followup.LanguageNone {
		return m.Dispatch(ctx, ClearTranslation{})
	}

	m.mu.Lock()
	s := m.state
	if s.Screen != ScreenWorkspace || s.Result == nil {
		m.mu.Unlock()
		return s, followup.ErrNoResult
	}
	if s.Phase == PhaseAnalyzing {
		m.mu.Unlock()
		return s, ErrBusy
	}
	key := fmt.Sprintf("%d:%s", s.Generation, lang)
	if cached, ok := m.translations[key]; ok {
		next, err := m.applyLocked(TranslationLoaded{Generation: s.Generation, Translation: cached})
		m.mu.Unlock()
		return next, err
	}
	m.mu.Unlock()

	if m.deps.Translator == nil {
		return s, fmt.Errorf("%w: translator not configured", followup.ErrTranslationFailed)
	}
	metrics.IncTranslation()
	v, err, _ := m.flight.Do(key, func() (any, error) {
		return m.deps.Translator.Translate(context.WithoutCancel(ctx), lang, s.Result, s.Checklist, s.Document)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		metrics.IncTranslationFailed()
		next, applyErr := m.applyLocked(TranslationFailed{Generation: s.Generation, Message: followup.TranslationUserMessage})
		if applyErr != nil {
			return next, applyErr
		}
		return next, err
	}
	tr := v.(*followup.Translation)
	next, err := m.applyLocked(TranslationLoaded{Generation: s.Generation, Translation: tr})
	if err == nil {
		m.translations[key] = tr
	}
	return next, err
}

// Ask sends a follow-up question and records the exchange in history.
// Failures leave the state unchanged.
func (m *Machine) Ask(ctx context.Context, question string, mode followup.Mode) (followup.Entry, State, error) {
	m.mu.Lock()
	s := m.state
	m.lastActive = m.now()
	m.mu.Unlock()

	if s.Screen != ScreenWorkspace {
		return followup.Entry{}, s, invalid(s, QAAnswered{})
	}
	if mode == followup.ModeDocument {
		if s.Result == nil {
			return followup.Entry{}, s, followup.ErrNoResult
		}
		if s.Phase == PhaseAnalyzing {
			return followup.Entry{}, s, ErrBusy
		}
	}
	if m.deps.Answerer == nil {
		return followup.Entry{}, s, fmt.Errorf("%w: answerer not configured", followup.ErrQAFailed)
	}

	metrics.IncQuestion()
	entry, err := m.deps.Answerer.Ask(ctx, question, mode, s.Document, s.Result)
	if err != nil {
		if !errors.Is(err, followup.ErrEmptyQuestion) {
			metrics.IncQuestionFailed()
		}
		return followup.Entry{}, s, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.applyLocked(QAAnswered{Generation: s.Generation, Entry: entry})
	return entry, next, err
}

// Subscribe returns a channel that receives the latest state after every
// transition. Slow readers only see the newest state. The returned func
// unsubscribes.
func (m *Machine) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan State, 1)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.state
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// Close cancels any outstanding request and ends every subscription.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.cancelInflightLocked()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}

func (m *Machine) applyLocked(e Event) (State, error) {
	next, err := Reduce(m.state, e)
	if err != nil {
		return m.state, err
	}
	m.commitLocked(e, next)
	return next, nil
}

func (m *Machine) cancelInflightLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
		m.inflightGen = 0
	}
}

func (m *Machine) commitLocked(e Event, next State) {
	prev := m.state
	m.state = next
	m.lastActive = m.now()
	if prev.Generation != next.Generation || prev.Result != next.Result {
		m.translations = make(map[string]*followup.Translation)
	}
	if prev.Status() != next.Status() {
		telemetry.Info("session.transition", map[string]any{
			"session": util.ShortHash(m.id),
			"event":   EventName(e),
			"from":    string(prev.Status()),
			"to":      string(next.Status()),
			"gen":     next.Generation,
		})
	} else {
		telemetry.Debug("session.event", map[string]any{
			"session": util.ShortHash(m.id),
			"event":   EventName(e),
		})
	}
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}
