package followup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"visadoc-backend/internal/analysis"
	"visadoc-backend/internal/llm"
	"visadoc-backend/internal/shared/telemetry"
	"visadoc-backend/internal/shared/util"
)

// Mode scopes a follow-up question.
type Mode string

const (
	ModeDocument Mode = "document"
	ModeGeneral  Mode = "general"
)

// ParseMode defaults to document mode.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeDocument, nil
	case ModeDocument, ModeGeneral:
		return m, nil
	default:
		return "", fmt.Errorf("unknown question mode %q", raw)
	}
}

// MaxHistory is how many exchanges a session keeps.
const MaxHistory = 3

// Entry is one question/answer exchange.
type Entry struct {
	ID       string    `json:"id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Mode     Mode      `json:"mode"`
	AskedAt  time.Time `json:"askedAt"`
}

// PushHistory prepends e and keeps the newest MaxHistory entries.
func PushHistory(history []Entry, e Entry) []Entry {
	out := make([]Entry, 0, MaxHistory)
	out = append(out, e)
	for _, h := range history {
		if len(out) == MaxHistory {
			break
		}
		out = append(out, h)
	}
	return out
}

// Answerer sends follow-up questions to the analysis service.
type Answerer struct {
	LLM     llm.Client
	Timeout time.Duration
	now     func() time.Time
}

// Ask sends question. Document text and result go out only in document mode.
func (a *Answerer) Ask(ctx context.Context, question string, mode Mode, document string, result *analysis.Result) (Entry, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Entry{}, ErrEmptyQuestion
	}
	if a == nil || a.LLM == nil {
		return Entry{}, a.fail(mode, fmt.Errorf("llm client not configured"))
	}
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	input := llm.QuestionInput{Question: question, Mode: string(mode)}
	if mode == ModeDocument {
		input.DocumentText = document
		if result != nil {
			raw, err := json.Marshal(result)
			if err != nil {
				return Entry{}, a.fail(mode, err)
			}
			input.Result = raw
		}
	}
	answer, err := a.LLM.AnswerQuestion(ctx, input)
	if err != nil {
		return Entry{}, a.fail(mode, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Entry{}, a.fail(mode, llm.ErrEmptyResponse)
	}
	now := time.Now
	if a.now != nil {
		now = a.now
	}
	return Entry{
		ID:       uuid.NewString(),
		Question: question,
		Answer:   answer,
		Mode:     mode,
		AskedAt:  now().UTC(),
	}, nil
}

func (a *Answerer) fail(mode Mode, cause error) error {
	telemetry.Error("qa.failed", map[string]any{
		"mode":  string(mode),
		"error": util.SanitizeError(cause),
	})
	return fmt.Errorf("%w: %v", ErrQAFailed, cause)
}
