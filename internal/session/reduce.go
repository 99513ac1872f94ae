package session

import (
	"errors"
	"fmt"
	"strings"

	"visadoc-backend/internal/analysis"
	"visadoc-backend/internal/checklist"
	"visadoc-backend/internal/followup"
)

var (
	// ErrInvalidTransition rejects an event that does not apply to the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrBusy rejects edits to the situation or document while analyzing.
	ErrBusy = errors.New("analysis in progress")
	// ErrDocumentTooShort means StartAnalysis was a no-op.
	ErrDocumentTooShort = errors.New("document too short")
	// ErrStale marks a response issued under an older generation.
	ErrStale = errors.New("stale response")
	// ErrUnknownItem means no checklist item has the given id.
	ErrUnknownItem = errors.New("unknown checklist item")
	// ErrInvalidInput rejects malformed event payloads.
	ErrInvalidInput = errors.New("invalid input")
)

func invalid(s State, e Event) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, EventName(e), s.Status())
}

// Reduce applies e to s. It has no side effects; on error the returned state
// is s unchanged.
func Reduce(s State, e Event) (State, error) {
	switch ev := e.(type) {
	case SelectSample:
		if s.Screen != ScreenLanding {
			return s, invalid(s, e)
		}
		next := enterWorkspace(s)
		next.Document = strings.TrimSpace(ev.Text)
		next.Source = SourceSample
		return next, nil

	case SelectCustom:
		if s.Screen != ScreenLanding {
			return s, invalid(s, e)
		}
		next := enterWorkspace(s)
		next.Document = ""
		next.Source = SourceCustom
		return next, nil

	case SetSituation:
		if !ev.Situation.Valid() {
			return s, fmt.Errorf("%w: situation %q", ErrInvalidInput, ev.Situation)
		}
		if s.Phase == PhaseAnalyzing {
			return s, ErrBusy
		}
		s.Situation = ev.Situation
		return s, nil

	case SetDocument:
		if s.Screen != ScreenWorkspace {
			return s, invalid(s, e)
		}
		if s.Phase == PhaseAnalyzing {
			return s, ErrBusy
		}
		s.Document = ev.Text
		if ev.Source != "" {
			s.Source = ev.Source
		}
		return s, nil

	case SetLocale:
		if !ev.Locale.Valid() {
			return s, fmt.Errorf("%w: locale %q", ErrInvalidInput, ev.Locale)
		}
		s.Locale = ev.Locale
		return s, nil

	case StartAnalysis:
		if s.Screen != ScreenWorkspace {
			return s, invalid(s, e)
		}
		if !analysis.DocumentReady(s.Document) {
			return s, ErrDocumentTooShort
		}
		s.Generation++
		s.Phase = PhaseAnalyzing
		s.Error = ""
		return s, nil

	case AnalysisSucceeded:
		if s.Phase != PhaseAnalyzing || ev.Generation != s.Generation {
			return s, ErrStale
		}
		if ev.Result == nil {
			return s, fmt.Errorf("%w: nil result", ErrInvalidInput)
		}
		s.Phase = PhaseResult
		s.Result = ev.Result
		s.Checklist = ev.Checklist
		if s.Checklist == nil {
			s.Checklist = []checklist.Item{}
		}
		s.Fingerprint = ev.Fingerprint
		s.Error = ""
		s.Translation = nil
		s.TranslationError = ""
		s.QAHistory = []followup.Entry{}
		return s, nil

	case AnalysisFailed:
		if s.Phase != PhaseAnalyzing || ev.Generation != s.Generation {
			return s, ErrStale
		}
		s.Phase = PhaseError
		s.Error = ev.Message
		if s.Error == "" {
			s.Error = analysis.UserMessage
		}
		return s, nil

	case ToggleItem:
		if s.Screen != ScreenWorkspace || s.Result == nil {
			return s, invalid(s, e)
		}
		items, ok := checklist.Toggle(s.Checklist, ev.ID)
		if !ok {
			return s, fmt.Errorf("%w: %s", ErrUnknownItem, ev.ID)
		}
		s.Checklist = items
		return s, nil

	case MoveItem:
		if s.Screen != ScreenWorkspace || s.Result == nil {
			return s, invalid(s, e)
		}
		items, ok := checklist.Move(s.Checklist, ev.ID, ev.Index)
		if !ok {
			return s, fmt.Errorf("%w: %s", ErrUnknownItem, ev.ID)
		}
		s.Checklist = items
		return s, nil

	case DismissError:
		if s.Screen != ScreenWorkspace || s.Phase != PhaseError {
			return s, invalid(s, e)
		}
		s.Error = ""
		if s.Result != nil {
			s.Phase = PhaseResult
		} else {
			s.Phase = PhaseIdle
		}
		return s, nil

	case Back:
		if s.Screen != ScreenWorkspace {
			return s, invalid(s, e)
		}
		next := Initial()
		next.Situation = s.Situation
		next.Locale = s.Locale
		next.Generation = s.Generation + 1
		return next, nil

	case TranslationLoaded:
		if s.Result == nil || s.Phase == PhaseAnalyzing || ev.Generation != s.Generation {
			return s, ErrStale
		}
		s.Translation = ev.Translation
		s.TranslationError = ""
		return s, nil

	case TranslationFailed:
		if s.Result == nil || s.Phase == PhaseAnalyzing || ev.Generation != s.Generation {
			return s, ErrStale
		}
		s.TranslationError = ev.Message
		return s, nil

	case ClearTranslation:
		s.Translation = nil
		s.TranslationError = ""
		return s, nil

	case QAAnswered:
		if s.Screen != ScreenWorkspace || ev.Generation != s.Generation {
			return s, ErrStale
		}
		s.QAHistory = followup.PushHistory(s.QAHistory, ev.Entry)
		return s, nil

	default:
		return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, e)
	}
}

func enterWorkspace(s State) State {
	next := s
	next.Screen = ScreenWorkspace
	next.Phase = PhaseIdle
	next.Result = nil
	next.Checklist = []checklist.Item{}
	next.Fingerprint = ""
	next.Error = ""
	next.Translation = nil
	next.TranslationError = ""
	next.QAHistory = []followup.Entry{}
	return next
}
