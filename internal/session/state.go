// Package session runs the analysis lifecycle for one workspace: a pure
// reducer over State plus a Machine that owns the state, issues analysis
// requests and persists checklist progress.
package session

import (
	"visadoc-backend/internal/analysis"
	"visadoc-backend/internal/checklist"
	"visadoc-backend/internal/followup"
)

// Screen is the top-level view.
type Screen string

const (
	ScreenLanding   Screen = "landing"
	ScreenWorkspace Screen = "workspace"
)

// Phase is the analysis phase inside the workspace.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseAnalyzing Phase = "analyzing"
	PhaseResult    Phase = "result"
	PhaseError     Phase = "error"
)

// Status is the combined machine state.
type Status string

const (
	StatusLanding   Status = "landing"
	StatusEmpty     Status = "workspace-empty"
	StatusAnalyzing Status = "workspace-analyzing"
	StatusResult    Status = "workspace-result"
	StatusError     Status = "workspace-error"
)

// Source records how the document text arrived.
type Source string

const (
	SourceSample Source = "sample"
	SourceCustom Source = "custom"
	SourcePDF    Source = "pdf"
)

// State is the single source of truth for one session. Values are treated as
// immutable: the reducer always builds new slices instead of editing them.
type State struct {
	Screen    Screen             `json:"screen"`
	Phase     Phase              `json:"phase"`
	Situation analysis.Situation `json:"situation"`
	Locale    analysis.Locale    `json:"locale"`
	Document  string             `json:"document"`
	Source    Source             `json:"source,omitempty"`

	Result      *analysis.Result `json:"result,omitempty"`
	Checklist   []checklist.Item `json:"checklist"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	Error       string           `json:"error,omitempty"`

	// Generation increases on every StartAnalysis and Back. Responses carry the
	// generation they were issued under and are dropped when it is not current.
	Generation uint64 `json:"generation"`

	Translation      *followup.Translation `json:"translation,omitempty"`
	TranslationError string                `json:"translationError,omitempty"`
	QAHistory        []followup.Entry      `json:"qaHistory"`
}

// Initial returns the landing state with default situation and locale.
func Initial() State {
	return State{
		Screen:    ScreenLanding,
		Phase:     PhaseIdle,
		Situation: analysis.DefaultSituation,
		Locale:    analysis.LocaleEnglish,
		Checklist: []checklist.Item{},
		QAHistory: []followup.Entry{},
	}
}

// Status maps the state onto the five externally visible states.
func (s State) Status() Status {
	if s.Screen != ScreenWorkspace {
		return StatusLanding
	}
	switch s.Phase {
	case PhaseAnalyzing:
		return StatusAnalyzing
	case PhaseError:
		return StatusError
	case PhaseResult:
		return StatusResult
	default:
		return StatusEmpty
	}
}

// CanAnalyze reports whether StartAnalysis would issue a request.
func (s State) CanAnalyze() bool {
	return s.Screen == ScreenWorkspace && analysis.DocumentReady(s.Document)
}
