package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visadoc-backend/internal/analysis"
	"visadoc-backend/internal/checklist"
	"visadoc-backend/internal/followup"
)

const optEmail = "You must file your Form I-765 with USCIS within 30 days of the new I-20 issuance date."

func workspaceWith(t *testing.T, text string) State {
	t.Helper()
	s, err := Reduce(Initial(), SelectCustom{})
	require.NoError(t, err)
	s, err = Reduce(s, SetDocument{Text: text})
	require.NoError(t, err)
	return s
}

func resultWith(titles ...string) *analysis.Result {
	r := &analysis.Result{
		RiskAssessment: analysis.RiskAssessment{RiskLevel: analysis.RiskMedium, UrgencyLabel: "Soon", Summary: "File soon"},
		Summary:        []string{"File I-765"},
	}
	for _, title := range titles {
		r.Checklist = append(r.Checklist, analysis.ChecklistEntry{Title: title, DueCategory: analysis.DueThisWeek})
	}
	return r
}

func TestInitialState(t *testing.T) {
	s := Initial()
	assert.Equal(t, StatusLanding, s.Status())
	assert.Equal(t, analysis.SituationOPTApply, s.Situation)
	assert.Equal(t, analysis.LocaleEnglish, s.Locale)
	assert.False(t, s.CanAnalyze())
}

func TestLandingTransitions(t *testing.T) {
	landing, err := Reduce(Initial(), SetSituation{Situation: analysis.SituationOPTActive})
	require.NoError(t, err)
	s, err := Reduce(landing, SelectSample{Text: "  " + optEmail + "\n"})
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, s.Status())
	assert.Equal(t, optEmail, s.Document)
	assert.Equal(t, SourceSample, s.Source)
	assert.Equal(t, analysis.SituationOPTActive, s.Situation, "sample keeps the landing selection")

	_, err = Reduce(s, SelectCustom{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	s, err = Reduce(Initial(), SelectCustom{})
	require.NoError(t, err)
	assert.Equal(t, "", s.Document)
	assert.Equal(t, SourceCustom, s.Source)

	_, err = Reduce(Initial(), SetDocument{Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = Reduce(Initial(), StartAnalysis{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = Reduce(Initial(), Back{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStartAnalysisRequiresMinimumLength(t *testing.T) {
	s := workspaceWith(t, "   short    ")
	next, err := Reduce(s, StartAnalysis{})
	assert.ErrorIs(t, err, ErrDocumentTooShort)
	assert.Equal(t, s, next)
	assert.Equal(t, uint64(0), next.Generation)

	s = workspaceWith(t, "0123456789")
	next, err = Reduce(s, StartAnalysis{})
	require.NoError(t, err)
	assert.Equal(t, StatusAnalyzing, next.Status())
	assert.Equal(t, uint64(1), next.Generation)
}

func TestAnalyzingLocksInputs(t *testing.T) {
	s, err := Reduce(workspaceWith(t, optEmail), StartAnalysis{})
	require.NoError(t, err)

	_, err = Reduce(s, SetDocument{Text: "edited text here"})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = Reduce(s, SetSituation{Situation: analysis.SituationOther})
	assert.ErrorIs(t, err, ErrBusy)

	next, err := Reduce(s, SetLocale{Locale: analysis.LocaleKorean})
	require.NoError(t, err)
	assert.Equal(t, analysis.LocaleKorean, next.Locale)

	_, err = Reduce(s, SetLocale{Locale: "fr"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = Reduce(workspaceWith(t, optEmail), SetSituation{Situation: "h1b"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSuccessAndFailureTransitions(t *testing.T) {
	s, err := Reduce(workspaceWith(t, optEmail), StartAnalysis{})
	require.NoError(t, err)

	items := checklist.Merge(resultWith("T1").Checklist, nil, nil)
	ok, err := Reduce(s, AnalysisSucceeded{Generation: s.Generation, Result: resultWith("T1"), Checklist: items, Fingerprint: "fp"})
	require.NoError(t, err)
	assert.Equal(t, StatusResult, ok.Status())
	assert.Len(t, ok.Checklist, 1)
	assert.Equal(t, "fp", ok.Fingerprint)

	again, err := Reduce(ok, StartAnalysis{})
	require.NoError(t, err, "re-entrant from result")
	failed, err := Reduce(again, AnalysisFailed{Generation: again.Generation})
	require.NoError(t, err)
	assert.Equal(t, StatusError, failed.Status())
	assert.Equal(t, analysis.UserMessage, failed.Error)
	assert.Equal(t, optEmail, failed.Document)
	assert.NotNil(t, failed.Result, "prior result kept")

	dismissed, err := Reduce(failed, DismissError{})
	require.NoError(t, err)
	assert.Equal(t, StatusResult, dismissed.Status())
	assert.Empty(t, dismissed.Error)

	retry, err := Reduce(failed, StartAnalysis{})
	require.NoError(t, err, "re-entrant from error")
	assert.Empty(t, retry.Error)

	_, err = Reduce(ok, DismissError{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDismissErrorWithoutResult(t *testing.T) {
	s, _ := Reduce(workspaceWith(t, optEmail), StartAnalysis{})
	s, err := Reduce(s, AnalysisFailed{Generation: s.Generation, Message: "nope"})
	require.NoError(t, err)
	s, err = Reduce(s, DismissError{})
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, s.Status())
}

func TestStaleResponsesDropped(t *testing.T) {
	a, _ := Reduce(workspaceWith(t, optEmail), StartAnalysis{})
	b, err := Reduce(a, StartAnalysis{})
	require.NoError(t, err, "second start supersedes")
	assert.Equal(t, a.Generation+1, b.Generation)

	_, err = Reduce(b, AnalysisSucceeded{Generation: a.Generation, Result: resultWith("A")})
	assert.ErrorIs(t, err, ErrStale)
	_, err = Reduce(b, AnalysisFailed{Generation: a.Generation})
	assert.ErrorIs(t, err, ErrStale)

	back, err := Reduce(b, Back{})
	require.NoError(t, err)
	_, err = Reduce(back, AnalysisSucceeded{Generation: b.Generation, Result: resultWith("B")})
	assert.ErrorIs(t, err, ErrStale)
}

func TestBackDiscardsDocumentContext(t *testing.T) {
	s, _ := Reduce(workspaceWith(t, optEmail), SetSituation{Situation: analysis.SituationActiveStudy})
	s, _ = Reduce(s, SetLocale{Locale: analysis.LocaleJapanese})
	s, _ = Reduce(s, StartAnalysis{})
	s, _ = Reduce(s, AnalysisSucceeded{Generation: s.Generation, Result: resultWith("T1"), Checklist: checklist.Merge(resultWith("T1").Checklist, nil, nil)})
	s, _ = Reduce(s, QAAnswered{Generation: s.Generation, Entry: followup.Entry{ID: "q"}})

	back, err := Reduce(s, Back{})
	require.NoError(t, err)
	assert.Equal(t, StatusLanding, back.Status())
	assert.Empty(t, back.Document)
	assert.Nil(t, back.Result)
	assert.Empty(t, back.Checklist)
	assert.Empty(t, back.QAHistory)
	assert.Equal(t, analysis.SituationActiveStudy, back.Situation)
	assert.Equal(t, analysis.LocaleJapanese, back.Locale)
	assert.Greater(t, back.Generation, s.Generation)
}

func TestToggleAndMove(t *testing.T) {
	s, _ := Reduce(workspaceWith(t, optEmail), StartAnalysis{})
	n := 0
	ids := func() string { n++; return []string{"a", "b"}[n-1] }
	s, _ = Reduce(s, AnalysisSucceeded{Generation: s.Generation, Result: resultWith("T1", "T2"), Checklist: checklist.Merge(resultWith("T1", "T2").Checklist, nil, ids)})

	toggled, err := Reduce(s, ToggleItem{ID: "b"})
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusInProgress, toggled.Checklist[1].Status)
	assert.Equal(t, checklist.StatusTodo, s.Checklist[1].Status, "reducer must not mutate its input")

	moved, err := Reduce(toggled, MoveItem{ID: "b", Index: 0})
	require.NoError(t, err)
	assert.Equal(t, "b", moved.Checklist[0].ID)

	_, err = Reduce(s, ToggleItem{ID: "zzz"})
	assert.ErrorIs(t, err, ErrUnknownItem)
	_, err = Reduce(workspaceWith(t, optEmail), ToggleItem{ID: "a"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTranslationEvents(t *testing.T) {
	s, _ := Reduce(workspaceWith(t, optEmail), StartAnalysis{})
	s, _ = Reduce(s, AnalysisSucceeded{Generation: s.Generation, Result: resultWith("T1")})

	tr := &followup.Translation{Language: "ko"}
	loaded, err := Reduce(s, TranslationLoaded{Generation: s.Generation, Translation: tr})
	require.NoError(t, err)
	assert.Same(t, tr, loaded.Translation)

	cleared, err := Reduce(loaded, ClearTranslation{})
	require.NoError(t, err)
	assert.Nil(t, cleared.Translation)

	failed, err := Reduce(s, TranslationFailed{Generation: s.Generation, Message: followup.TranslationUserMessage})
	require.NoError(t, err)
	assert.Equal(t, StatusResult, failed.Status(), "translation failure is inline")
	assert.Equal(t, followup.TranslationUserMessage, failed.TranslationError)

	rerun, _ := Reduce(loaded, StartAnalysis{})
	_, err = Reduce(rerun, TranslationLoaded{Generation: s.Generation, Translation: tr})
	assert.ErrorIs(t, err, ErrStale)

	done, err := Reduce(rerun, AnalysisSucceeded{Generation: rerun.Generation, Result: resultWith("T9")})
	require.NoError(t, err)
	assert.Nil(t, done.Translation, "new result invalidates translation")
}

func TestUnknownEvent(t *testing.T) {
	_, err := Reduce(Initial(), nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
