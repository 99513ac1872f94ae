// Package followup holds the on-demand exchanges issued against the current
// analysis result: translation and short follow-up questions.
package followup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"visadoc-backend/internal/analysis"
	"visadoc-backend/internal/checklist"
	"visadoc-backend/internal/llm"
	"visadoc-backend/internal/shared/telemetry"
	"visadoc-backend/internal/shared/util"
)

// Language is a translation target code.
type Language string

// LanguageNone clears any translation.
const LanguageNone Language = "none"

var languageNames = map[Language]string{
	"ko": "Korean (Polite/Honorific)",
	"zh": "Simplified Chinese",
	"hi": "Hindi",
	"ja": "Japanese",
	"es": "Spanish",
	"vi": "Vietnamese",
}

// Languages lists the supported translation targets.
func Languages() []Language {
	return []Language{"ko", "zh", "hi", "ja", "es", "vi"}
}

// ParseLanguage accepts a supported code or "none".
func ParseLanguage(raw string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(raw)))
	if l == LanguageNone {
		return l, nil
	}
	if _, ok := languageNames[l]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, raw)
	}
	return l, nil
}

func (l Language) Name() string {
	return languageNames[l]
}

// ItemText is a translated checklist item.
type ItemText struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RiskText is the translated risk card.
type RiskText struct {
	UrgencyLabel string `json:"urgencyLabel"`
	Summary      string `json:"summary"`
}

// Translation mirrors the user-facing strings of a result in another language.
// Items are keyed by checklist item id, Terms by the original term.
type Translation struct {
	Language            Language            `json:"language"`
	Summary             []string            `json:"summary"`
	DetailedExplanation string              `json:"detailedExplanation"`
	Items               map[string]ItemText `json:"items"`
	Risk                *RiskText           `json:"riskAssessment,omitempty"`
	Terms               map[string]string   `json:"terms"`
	SimpleEnglishNotes  *string             `json:"simpleEnglishNotes,omitempty"`
	DSOEmailNote        *string             `json:"dsoEmailNote,omitempty"`
}

type translateItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type translateRequest struct {
	Summary             []string                `json:"summary"`
	DetailedExplanation string                  `json:"detailedExplanation"`
	RiskAssessment      analysis.RiskAssessment `json:"riskAssessment"`
	Checklist           []translateItem         `json:"checklist"`
	SafetyTerms         []analysis.Term         `json:"safetyTerms"`
	SimpleEnglishNotes  *string                 `json:"simpleEnglishNotes,omitempty"`
	DSOEmailDraft       *analysis.EmailDraft    `json:"dsoEmailDraft,omitempty"`
}

type translateResponse struct {
	Summary             []string        `json:"summary"`
	DetailedExplanation string          `json:"detailedExplanation"`
	Checklist           []translateItem `json:"checklist"`
	RiskAssessment      *RiskText       `json:"riskAssessment"`
	SafetyTerms         []struct {
		Term        string `json:"term"`
		Explanation string `json:"explanation"`
	} `json:"safetyTerms"`
	SimpleEnglishNotes *string `json:"simpleEnglishNotes"`
	DSOEmailNote       *string `json:"dsoEmailNote"`
}

// Translator requests translations from the analysis service.
type Translator struct {
	LLM     llm.Client
	Timeout time.Duration
}

// Translate fetches a translation of result into lang. Every failure is
// returned as ErrTranslationFailed.
func (t *Translator) Translate(ctx context.Context, lang Language, result *analysis.Result, items []checklist.Item, document string) (*Translation, error) {
	if result == nil {
		return nil, ErrNoResult
	}
	if lang.Name() == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	if t == nil || t.LLM == nil {
		return nil, t.fail(lang, fmt.Errorf("llm client not configured"))
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	req := translateRequest{
		Summary:             result.Summary,
		DetailedExplanation: result.DetailedExplanation,
		RiskAssessment:      result.RiskAssessment,
		Checklist:           make([]translateItem, 0, len(items)),
		SafetyTerms:         result.SafetyTerms,
		SimpleEnglishNotes:  result.SimpleEnglishNotes,
		DSOEmailDraft:       result.DSOEmailDraft,
	}
	for _, it := range items {
		req.Checklist = append(req.Checklist, translateItem{ID: it.ID, Title: it.Title, Description: it.Description})
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, t.fail(lang, err)
	}

	raw, err := t.LLM.TranslateResult(ctx, llm.TranslateInput{
		Language:     lang.Name(),
		Result:       payload,
		DocumentText: document,
	})
	if err != nil {
		return nil, t.fail(lang, err)
	}
	var resp translateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, t.fail(lang, fmt.Errorf("decode translation: %w", err))
	}
	if len(resp.Summary) == 0 && strings.TrimSpace(resp.DetailedExplanation) == "" && len(resp.Checklist) == 0 {
		return nil, t.fail(lang, fmt.Errorf("translation payload empty"))
	}

	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}
	out := &Translation{
		Language:            lang,
		Summary:             resp.Summary,
		DetailedExplanation: resp.DetailedExplanation,
		Items:               make(map[string]ItemText, len(resp.Checklist)),
		Risk:                resp.RiskAssessment,
		Terms:               make(map[string]string, len(resp.SafetyTerms)),
	}
	for _, it := range resp.Checklist {
		if known[it.ID] {
			out.Items[it.ID] = ItemText{Title: it.Title, Description: it.Description}
		}
	}
	for _, term := range resp.SafetyTerms {
		if term.Term != "" {
			out.Terms[term.Term] = term.Explanation
		}
	}
	if result.HasSimpleEnglishNotes() {
		out.SimpleEnglishNotes = resp.SimpleEnglishNotes
	}
	if result.HasDSOEmailDraft() {
		out.DSOEmailNote = resp.DSOEmailNote
	}
	return out, nil
}

func (t *Translator) fail(lang Language, cause error) error {
	telemetry.Error("translation.failed", map[string]any{
		"language": string(lang),
		"error":    util.SanitizeError(cause),
	})
	return fmt.Errorf("%w: %v", ErrTranslationFailed, cause)
}
