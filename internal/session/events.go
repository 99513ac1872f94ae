package session

import (
	"visadoc-backend/internal/analysis"
	"visadoc-backend/internal/checklist"
	"visadoc-backend/internal/followup"
)

// Event is one input to Reduce.
type Event interface {
	eventName() string
}

// SelectSample enters the workspace with a sample document. The situation
// chosen on the landing screen is kept.
type SelectSample struct {
	Text string
}

// SelectCustom enters the workspace with an empty document.
type SelectCustom struct{}

type SetSituation struct{ Situation analysis.Situation }

type SetDocument struct {
	Text   string
	Source Source
}

type SetLocale struct{ Locale analysis.Locale }

// StartAnalysis begins a new request. Issued while analyzing, it supersedes
// the outstanding one.
type StartAnalysis struct{}

// AnalysisSucceeded commits a merged result. Checklist and Fingerprint are
// computed by the Machine before dispatch.
type AnalysisSucceeded struct {
	Generation  uint64
	Result      *analysis.Result
	Checklist   []checklist.Item
	Fingerprint string
}

type AnalysisFailed struct {
	Generation uint64
	Message    string
}

type ToggleItem struct{ ID string }

// MoveItem reorders the checklist.
type MoveItem struct {
	ID    string
	Index int
}

type DismissError struct{}

// Back returns to landing and discards the document context.
type Back struct{}

type TranslationLoaded struct {
	Generation  uint64
	Translation *followup.Translation
}

type TranslationFailed struct {
	Generation uint64
	Message    string
}

type ClearTranslation struct{}

type QAAnswered struct {
	Generation uint64
	Entry      followup.Entry
}

func (SelectSample) eventName() string      { return "select_sample" }
func (SelectCustom) eventName() string      { return "select_custom" }
func (SetSituation) eventName() string      { return "set_situation" }
func (SetDocument) eventName() string       { return "set_document" }
func (SetLocale) eventName() string         { return "set_locale" }
func (StartAnalysis) eventName() string     { return "start_analysis" }
func (AnalysisSucceeded) eventName() string { return "analysis_succeeded" }
func (AnalysisFailed) eventName() string    { return "analysis_failed" }
func (ToggleItem) eventName() string        { return "toggle_item" }
func (MoveItem) eventName() string          { return "move_item" }
func (DismissError) eventName() string      { return "dismiss_error" }
func (Back) eventName() string              { return "back" }
func (TranslationLoaded) eventName() string { return "translation_loaded" }
func (TranslationFailed) eventName() string { return "translation_failed" }
func (ClearTranslation) eventName() string  { return "clear_translation" }
func (QAAnswered) eventName() string        { return "qa_answered" }

// EventName returns a stable name for logs.
func EventName(e Event) string {
	if e == nil {
		return "nil"
	}
	return e.eventName()
}
