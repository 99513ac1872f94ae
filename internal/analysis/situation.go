package analysis

import "strings"

// Situation identifies the visa or program stage the user is in.
type Situation string

const (
	SituationPreArrival  Situation = "pre_arrival"
	SituationActiveStudy Situation = "f1_active_study"
	SituationOPTApply    Situation = "f1_opt_apply"
	SituationOPTActive   Situation = "f1_opt_active"
	SituationOther       Situation = "other"
)

// DefaultSituation is the selection a new session starts with.
const DefaultSituation = SituationOPTApply

var situationLabels = map[Situation]string{
	SituationPreArrival:  "Pre-arrival (F-1 admitted, not yet in the US)",
	SituationActiveStudy: "F-1 student, currently studying",
	SituationOPTApply:    "F-1 student, applying for OPT",
	SituationOPTActive:   "F-1 student, on OPT",
	SituationOther:       "Other / not sure",
}

// Situations returns every situation in display order.
func Situations() []Situation {
	return []Situation{
		SituationPreArrival,
		SituationActiveStudy,
		SituationOPTApply,
		SituationOPTActive,
		SituationOther,
	}
}

// Label is the human-readable description sent to the analysis service.
func (s Situation) Label() string {
	if label, ok := situationLabels[s]; ok {
		return label
	}
	return situationLabels[SituationOther]
}

// Valid reports whether s is a known situation.
func (s Situation) Valid() bool {
	_, ok := situationLabels[s]
	return ok
}

// ParseSituation normalizes raw input into a known situation.
func ParseSituation(raw string) (Situation, bool) {
	s := Situation(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", false
	}
	return s, true
}

// Locale is the output language requested from the analysis service.
type Locale string

const (
	LocaleEnglish  Locale = "en"
	LocaleKorean   Locale = "ko"
	LocaleChinese  Locale = "zh"
	LocaleHindi    Locale = "hi"
	LocaleJapanese Locale = "ja"
)

var localeLanguages = map[Locale]string{
	LocaleEnglish:  "Plain English",
	LocaleKorean:   "Korean (Polite/Honorific)",
	LocaleChinese:  "Simplified Chinese",
	LocaleHindi:    "Hindi",
	LocaleJapanese: "Japanese",
}

// LanguageName returns the language description used in prompts.
// Unknown locales fall back to plain English.
func (l Locale) LanguageName() string {
	if name, ok := localeLanguages[l]; ok {
		return name
	}
	return localeLanguages[LocaleEnglish]
}

// Valid reports whether l is a supported locale.
func (l Locale) Valid() bool {
	_, ok := localeLanguages[l]
	return ok
}

// Locales lists the supported output locales.
func Locales() []Locale {
	return []Locale{LocaleEnglish, LocaleKorean, LocaleChinese, LocaleHindi, LocaleJapanese}
}

// ParseLocale normalizes raw input into a supported locale.
func ParseLocale(raw string) (Locale, bool) {
	l := Locale(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := localeLanguages[l]; !ok {
		return "", false
	}
	return l, true
}
