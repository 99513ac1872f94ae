package followup

import "errors"

var (
	// ErrTranslationFailed is the single failure kind for translation requests.
	ErrTranslationFailed = errors.New("translation failed")
	// ErrQAFailed is the single failure kind for follow-up questions.
	ErrQAFailed = errors.New("follow-up question failed")
	// ErrEmptyQuestion is returned before any request is made.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrUnsupportedLanguage rejects translation targets outside Languages().
	ErrUnsupportedLanguage = errors.New("unsupported translation language")
	// ErrNoResult means there is nothing to translate or ask about yet.
	ErrNoResult = errors.New("no analysis result")
)

const (
	TranslationUserMessage = "Translation failed. Please try again."
	QAUserMessage          = "Could not answer that question. Please try again."
)
