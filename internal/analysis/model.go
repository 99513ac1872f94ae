package analysis

import (
	"strings"
	"unicode/utf8"
)

// MinDocumentLength is the trimmed length at which a document becomes analyzable.
// Shorter input never reaches the analysis service.
const MinDocumentLength = 10

// DocumentReady reports whether text meets the activation threshold.
func DocumentReady(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= MinDocumentLength
}

// RiskLevel is the coarse urgency classification of a whole document.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// DueCategory is the timeline bucket assigned to a checklist entry.
type DueCategory string

const (
	DueToday            DueCategory = "today"
	DueThisWeek         DueCategory = "this_week"
	DueBeforeProgramEnd DueCategory = "before_program_end"
	DueAfterApproval    DueCategory = "after_approval"
	DueUnspecified      DueCategory = "unspecified"
)

// Known reports whether d is one of the enumerated due categories.
func (d DueCategory) Known() bool {
	switch d {
	case DueToday, DueThisWeek, DueBeforeProgramEnd, DueAfterApproval, DueUnspecified:
		return true
	default:
		return false
	}
}

// RiskAssessment summarizes urgency for the analyzed document.
type RiskAssessment struct {
	RiskLevel    RiskLevel `json:"riskLevel"`
	UrgencyLabel string    `json:"urgencyLabel"`
	Summary      string    `json:"summary"`
}

// ChecklistEntry is one raw action item as returned by the analysis service.
type ChecklistEntry struct {
	Category    string      `json:"category"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	DueCategory DueCategory `json:"dueCategory"`
	DueLabel    string      `json:"dueLabel"`
	Actor       *string     `json:"actor,omitempty"`
	Priority    *string     `json:"priority,omitempty"`
}

// ActorOrDefault returns the actor, or "Student" when none was provided.
func (e ChecklistEntry) ActorOrDefault() string {
	if e.Actor == nil || strings.TrimSpace(*e.Actor) == "" {
		return "Student"
	}
	return *e.Actor
}

// Term is a glossary entry.
type Term struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// EmailDraft is a suggested message to the user's DSO.
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Result is the structured output of one analysis call. It is replaced
// wholesale on every new analysis and never mutated in place.
type Result struct {
	RiskAssessment      RiskAssessment   `json:"riskAssessment"`
	Summary             []string         `json:"summary"`
	DetailedExplanation string           `json:"detailedExplanation"`
	SimpleEnglishNotes  *string          `json:"simpleEnglishNotes,omitempty"`
	Checklist           []ChecklistEntry `json:"checklist"`
	SafetyTerms         []Term           `json:"safetyTerms"`
	DSOEmailDraft       *EmailDraft      `json:"dsoEmailDraft,omitempty"`
	DSOQuestions        []string         `json:"dsoQuestions,omitempty"`
}

// HasSimpleEnglishNotes reports whether the optional note is present.
func (r *Result) HasSimpleEnglishNotes() bool {
	return r != nil && r.SimpleEnglishNotes != nil
}

// HasDSOEmailDraft reports whether the optional email draft is present.
func (r *Result) HasDSOEmailDraft() bool {
	return r != nil && r.DSOEmailDraft != nil
}

// HasDSOQuestions reports whether the optional question list is present.
func (r *Result) HasDSOQuestions() bool {
	return r != nil && r.DSOQuestions != nil
}
