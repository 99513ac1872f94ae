package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"visadoc-backend/internal/llm"
)

type rawRisk struct {
	RiskLevel    *string `json:"riskLevel"`
	UrgencyLabel *string `json:"urgencyLabel"`
	Summary      *string `json:"summary"`
}

type rawEntry struct {
	Category    *string `json:"category"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueCategory *string `json:"dueCategory"`
	DueLabel    *string `json:"dueLabel"`
	Actor       *string `json:"actor"`
	Priority    *string `json:"priority"`
}

type rawTerm struct {
	Term       *string `json:"term"`
	Definition *string `json:"definition"`
}

type rawEmail struct {
	Subject *string `json:"subject"`
	Body    *string `json:"body"`
}

type rawResult struct {
	RiskAssessment      *rawRisk    `json:"riskAssessment"`
	Summary             *[]string   `json:"summary"`
	DetailedExplanation *string     `json:"detailedExplanation"`
	SimpleEnglishNotes  *string     `json:"simpleEnglishNotes"`
	Checklist           *[]rawEntry `json:"checklist"`
	SafetyTerms         *[]rawTerm  `json:"safetyTerms"`
	DSOEmailDraft       *rawEmail   `json:"dsoEmailDraft"`
	DSOQuestions        *[]string   `json:"dsoQuestions"`
}

// Parse converts the service payload into a Result. Required fields must be
// present and well-typed; content is not judged. Optional fields stay nil when
// absent.
func Parse(raw []byte) (*Result, error) {
	payload := []byte(llm.StripFences(string(raw)))
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidResult)
	}
	var parsed rawResult
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", ErrInvalidResult, err)
	}

	if parsed.RiskAssessment == nil {
		return nil, missing("riskAssessment")
	}
	risk, err := parseRisk(parsed.RiskAssessment)
	if err != nil {
		return nil, err
	}
	if parsed.Summary == nil {
		return nil, missing("summary")
	}
	if parsed.DetailedExplanation == nil {
		return nil, missing("detailedExplanation")
	}
	if parsed.Checklist == nil {
		return nil, missing("checklist")
	}
	if parsed.SafetyTerms == nil {
		return nil, missing("safetyTerms")
	}

	result := &Result{
		RiskAssessment:      risk,
		Summary:             append([]string{}, (*parsed.Summary)...),
		DetailedExplanation: *parsed.DetailedExplanation,
		SimpleEnglishNotes:  parsed.SimpleEnglishNotes,
		Checklist:           make([]ChecklistEntry, 0, len(*parsed.Checklist)),
		SafetyTerms:         make([]Term, 0, len(*parsed.SafetyTerms)),
	}

	for i, entry := range *parsed.Checklist {
		parsedEntry, err := parseEntry(i, entry)
		if err != nil {
			return nil, err
		}
		result.Checklist = append(result.Checklist, parsedEntry)
	}

	for i, term := range *parsed.SafetyTerms {
		if term.Term == nil {
			return nil, missing(fmt.Sprintf("safetyTerms[%d].term", i))
		}
		if term.Definition == nil {
			return nil, missing(fmt.Sprintf("safetyTerms[%d].definition", i))
		}
		result.SafetyTerms = append(result.SafetyTerms, Term{Term: *term.Term, Definition: *term.Definition})
	}

	if parsed.DSOEmailDraft != nil {
		if parsed.DSOEmailDraft.Subject == nil || parsed.DSOEmailDraft.Body == nil {
			return nil, invalid("dsoEmailDraft", "requires subject and body")
		}
		result.DSOEmailDraft = &EmailDraft{
			Subject: *parsed.DSOEmailDraft.Subject,
			Body:    *parsed.DSOEmailDraft.Body,
		}
	}
	if parsed.DSOQuestions != nil {
		result.DSOQuestions = append([]string{}, (*parsed.DSOQuestions)...)
	}

	return result, nil
}

func parseRisk(raw *rawRisk) (RiskAssessment, error) {
	if raw.RiskLevel == nil {
		return RiskAssessment{}, missing("riskAssessment.riskLevel")
	}
	if raw.UrgencyLabel == nil {
		return RiskAssessment{}, missing("riskAssessment.urgencyLabel")
	}
	if raw.Summary == nil {
		return RiskAssessment{}, missing("riskAssessment.summary")
	}
	level, ok := normalizeRiskLevel(*raw.RiskLevel)
	if !ok {
		return RiskAssessment{}, invalid("riskAssessment.riskLevel", fmt.Sprintf("has unknown value %q", *raw.RiskLevel))
	}
	return RiskAssessment{
		RiskLevel:    level,
		UrgencyLabel: *raw.UrgencyLabel,
		Summary:      *raw.Summary,
	}, nil
}

func parseEntry(index int, raw rawEntry) (ChecklistEntry, error) {
	field := func(name string) string {
		return fmt.Sprintf("checklist[%d].%s", index, name)
	}
	switch {
	case raw.Category == nil:
		return ChecklistEntry{}, missing(field("category"))
	case raw.Title == nil:
		return ChecklistEntry{}, missing(field("title"))
	case raw.Description == nil:
		return ChecklistEntry{}, missing(field("description"))
	case raw.DueCategory == nil:
		return ChecklistEntry{}, missing(field("dueCategory"))
	case raw.DueLabel == nil:
		return ChecklistEntry{}, missing(field("dueLabel"))
	}
	return ChecklistEntry{
		Category:    *raw.Category,
		Title:       *raw.Title,
		Description: *raw.Description,
		DueCategory: DueCategory(strings.TrimSpace(*raw.DueCategory)),
		DueLabel:    *raw.DueLabel,
		Actor:       raw.Actor,
		Priority:    raw.Priority,
	}, nil
}

func normalizeRiskLevel(raw string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	default:
		return "", false
	}
}
