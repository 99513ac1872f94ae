package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visadoc-backend/internal/analysis"
	"visadoc-backend/internal/checklist"
	"visadoc-backend/internal/followup"
	"visadoc-backend/internal/kv"
	"visadoc-backend/internal/session"
)

type stubAnalyzer struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (a *stubAnalyzer) Analyze(ctx context.Context, situation analysis.Situation, text string, locale analysis.Locale) (*analysis.Result, error) {
	a.calls.Add(1)
	if a.gate != nil {
		<-a.gate
	}
	if a.err != nil {
		return nil, a.err
	}
	return optResult(), nil
}

func optResult() *analysis.Result {
	high := "high"
	return &analysis.Result{
		RiskAssessment: analysis.RiskAssessment{
			RiskLevel:    analysis.RiskHigh,
			UrgencyLabel: "Action within 30 days",
			Summary:      "USCIS must receive your I-765 in time.",
		},
		Summary:             []string{"File Form I-765 with USCIS."},
		DetailedExplanation: "Your OPT recommendation is in SEVIS.",
		Checklist: []analysis.ChecklistEntry{
			{Category: "USCIS", Title: "File Form I-765", Description: "Submit within 30 days.", DueCategory: analysis.DueThisWeek, DueLabel: "Within 30 days", Priority: &high},
			{Category: "USCIS", Title: "Include Form G-1145", Description: "For e-notification.", DueCategory: analysis.DueToday, DueLabel: "With your filing"},
			{Category: "Employment", Title: "Wait for EAD", Description: "Do not start working yet.", DueCategory: analysis.DueAfterApproval, DueLabel: "After approval"},
		},
		SafetyTerms: []analysis.Term{{Term: "EAD", Definition: "Employment Authorization Document"}},
	}
}

type stubTranslator struct {
	calls   atomic.Int32
	entered chan struct{}
	gate    chan struct{}
}

func (t *stubTranslator) Translate(ctx context.Context, lang followup.Language, result *analysis.Result, items []checklist.Item, document string) (*followup.Translation, error) {
	t.calls.Add(1)
	if t.gate != nil {
		t.entered <- struct{}{}
		<-t.gate
	}
	return &followup.Translation{Language: lang, Summary: []string{"I-765 제출"}, Items: map[string]followup.ItemText{}, Terms: map[string]string{}}, nil
}

type stubAnswerer struct{ err error }

func (a stubAnswerer) Ask(ctx context.Context, question string, mode followup.Mode, document string, result *analysis.Result) (followup.Entry, error) {
	if a.err != nil {
		return followup.Entry{}, a.err
	}
	return followup.Entry{ID: "qa-1", Question: question, Answer: "Contact your DSO.", Mode: mode, AskedAt: time.Now()}, nil
}

type testEnv struct {
	router     *gin.Engine
	analyzer   *stubAnalyzer
	translator *stubTranslator
	manager    *session.Manager
}

func newEnv(t *testing.T, backend kv.Store) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if backend == nil {
		backend = kv.NewMemory()
	}
	env := &testEnv{analyzer: &stubAnalyzer{}, translator: &stubTranslator{}}
	env.manager = session.NewManager(session.Deps{
		Analyzer:   env.analyzer,
		Translator: env.translator,
		Answerer:   stubAnswerer{},
		Store:      checklist.NewStore(backend),
	}, time.Hour)
	router := gin.New()
	NewHandler(env.manager, nil).RegisterRoutes(router.Group("/api/v1"))
	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

type sessionBody struct {
	ID               string           `json:"id"`
	Status           session.Status   `json:"status"`
	CanAnalyze       bool             `json:"canAnalyze"`
	Document         string           `json:"document"`
	Situation        string           `json:"situation"`
	Error            string           `json:"error"`
	Checklist        []checklist.Item `json:"checklist"`
	Progress         progressResponse `json:"progress"`
	Translation      *json.RawMessage `json:"translation"`
	TranslationError string           `json:"translationError"`
	QAHistory        []followup.Entry `json:"qaHistory"`
}

func decodeSession(t *testing.T, resp *httptest.ResponseRecorder) sessionBody {
	t.Helper()
	var out sessionBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func errorCodeOf(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out.Error.Code
}

// analyzedSession creates a session on the sample document and runs one analysis.
func (e *testEnv) analyzedSession(t *testing.T) sessionBody {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	id := decodeSession(t, resp).ID

	resp = e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/start", gin.H{"mode": "sample"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/analyze?wait=true", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	s := decodeSession(t, resp)
	require.Equal(t, session.StatusResult, s.Status)
	return s
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	env := newEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	created := decodeSession(t, resp)
	assert.Equal(t, session.StatusLanding, created.Status)
	assert.NotEmpty(t, resp.Header().Get("Location"))
	base := "/api/v1/sessions/" + created.ID

	resp = env.do(t, http.MethodPost, base+"/start", gin.H{"mode": "custom"})
	require.Equal(t, http.StatusOK, resp.Code)
	s := decodeSession(t, resp)
	assert.Equal(t, session.StatusEmpty, s.Status)
	assert.False(t, s.CanAnalyze)

	resp = env.do(t, http.MethodPost, base+"/analyze", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "document_too_short", errorCodeOf(t, resp))
	assert.Equal(t, int32(0), env.analyzer.calls.Load())

	resp = env.do(t, http.MethodPut, base+"/situation", gin.H{"situation": "f1_active_study"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "f1_active_study", decodeSession(t, resp).Situation)

	resp = env.do(t, http.MethodPut, base+"/situation", gin.H{"situation": "h1b"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodPut, base+"/document", gin.H{"text": "Your I-20 travel signature expires soon."})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decodeSession(t, resp).CanAnalyze)

	resp = env.do(t, http.MethodPut, base+"/locale", gin.H{"locale": "ko"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.do(t, http.MethodPost, base+"/analyze?wait=1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	s = decodeSession(t, resp)
	assert.Equal(t, session.StatusResult, s.Status)
	require.Len(t, s.Checklist, 3)
	assert.Equal(t, progressResponse{Done: 0, Total: 3, Remaining: 3, Percent: 0}, s.Progress)

	resp = env.do(t, http.MethodPost, base+"/back", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	s = decodeSession(t, resp)
	assert.Equal(t, session.StatusLanding, s.Status)
	assert.Empty(t, s.Checklist)
	assert.Equal(t, "f1_active_study", s.Situation)

	resp = env.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	resp = env.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStartRejectsUnknownMode(t *testing.T) {
	env := newEnv(t, nil)
	id := decodeSession(t, env.do(t, http.MethodPost, "/api/v1/sessions", nil)).ID

	resp := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/start", gin.H{"mode": "upload"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/start", gin.H{"mode": "sample", "sampleId": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAnalyzeReturnsAcceptedAndRejectsEditsWhileBusy(t *testing.T) {
	env := newEnv(t, nil)
	env.analyzer.gate = make(chan struct{})
	id := decodeSession(t, env.do(t, http.MethodPost, "/api/v1/sessions", nil)).ID
	base := "/api/v1/sessions/" + id
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/start", gin.H{"mode": "sample"}).Code)

	resp := env.do(t, http.MethodPost, base+"/analyze", nil)
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, session.StatusAnalyzing, decodeSession(t, resp).Status)

	resp = env.do(t, http.MethodPut, base+"/document", gin.H{"text": "A different document body"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "analysis_in_progress", errorCodeOf(t, resp))

	resp = env.do(t, http.MethodPost, base+"/translate", gin.H{"language": "ko"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	close(env.analyzer.gate)
	require.Eventually(t, func() bool {
		return decodeSession(t, env.do(t, http.MethodGet, base, nil)).Status == session.StatusResult
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAnalysisFailureShowsErrorAndDismiss(t *testing.T) {
	env := newEnv(t, nil)
	env.analyzer.err = &analysis.FailureError{Message: analysis.UserMessage, Err: errors.New("upstream 500")}
	id := decodeSession(t, env.do(t, http.MethodPost, "/api/v1/sessions", nil)).ID
	base := "/api/v1/sessions/" + id
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/start", gin.H{"mode": "sample"}).Code)

	resp := env.do(t, http.MethodPost, base+"/analyze?wait=true", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	s := decodeSession(t, resp)
	assert.Equal(t, session.StatusError, s.Status)
	assert.Equal(t, analysis.UserMessage, s.Error)
	assert.NotEmpty(t, s.Document)

	resp = env.do(t, http.MethodPost, base+"/error/dismiss", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, session.StatusEmpty, decodeSession(t, resp).Status)

	resp = env.do(t, http.MethodPost, base+"/error/dismiss", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestChecklistStatusesSurviveReload(t *testing.T) {
	backend := kv.NewMemory()
	env := newEnv(t, backend)

	first := env.analyzedSession(t)
	base := "/api/v1/sessions/" + first.ID
	target := first.Checklist[0]

	resp := env.do(t, http.MethodPost, base+"/checklist/"+target.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = env.do(t, http.MethodPost, base+"/checklist/"+target.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	s := decodeSession(t, resp)
	assert.Equal(t, checklist.StatusDone, s.Checklist[0].Status)
	assert.Equal(t, 1, s.Progress.Done)

	// A fresh session over the same store stands in for a page reload.
	reloaded := newEnv(t, backend).analyzedSession(t)
	require.Len(t, reloaded.Checklist, 3)
	assert.NotEqual(t, target.ID, reloaded.Checklist[0].ID)
	assert.Equal(t, target.Title, reloaded.Checklist[0].Title)
	assert.Equal(t, checklist.StatusDone, reloaded.Checklist[0].Status)
	assert.Equal(t, checklist.StatusTodo, reloaded.Checklist[1].Status)
}

func TestChecklistViewsAndExport(t *testing.T) {
	env := newEnv(t, nil)
	s := env.analyzedSession(t)
	base := "/api/v1/sessions/" + s.ID

	resp := env.do(t, http.MethodGet, base+"/checklist?filter=high", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list checklistResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "File Form I-765", list.Items[0].Title)
	assert.Equal(t, 3, list.Progress.Total)

	resp = env.do(t, http.MethodGet, base+"/checklist?view=timeline", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var timeline checklistResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &timeline))
	require.Len(t, timeline.Buckets, 5)
	assert.Equal(t, analysis.DueToday, timeline.Buckets[0].Category)
	assert.Len(t, timeline.Buckets[0].Items, 1)
	assert.Len(t, timeline.Buckets[3].Items, 1)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, base+"/checklist?filter=soon", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, base+"/checklist?view=grid", nil).Code)

	last := s.Checklist[2].ID
	resp = env.do(t, http.MethodPost, base+"/checklist/"+last+"/move", gin.H{"index": 0})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, last, decodeSession(t, resp).Checklist[0].ID)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, base+"/checklist/"+last+"/move", gin.H{}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, base+"/checklist/missing/toggle", nil).Code)

	resp = env.do(t, http.MethodGet, base+"/checklist/export", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.HasPrefix(resp.Header().Get("Content-Type"), "text/plain"))
	assert.True(t, strings.HasPrefix(resp.Body.String(), "[TODO] Wait for EAD\n"))
	assert.Contains(t, resp.Body.String(), "Who: Student\nDue: Within 30 days\n")
}

func TestTranslateAndAsk(t *testing.T) {
	env := newEnv(t, nil)
	s := env.analyzedSession(t)
	base := "/api/v1/sessions/" + s.ID

	resp := env.do(t, http.MethodPost, base+"/translate", gin.H{"language": "ko"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.NotNil(t, decodeSession(t, resp).Translation)
	env.do(t, http.MethodPost, base+"/translate", gin.H{"language": "ko"})
	assert.Equal(t, int32(1), env.translator.calls.Load())

	resp = env.do(t, http.MethodPost, base+"/translate", gin.H{"language": "none"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, decodeSession(t, resp).Translation)

	resp = env.do(t, http.MethodPost, base+"/translate", gin.H{"language": "fr"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodPost, base+"/ask", gin.H{"question": "Can I travel?", "mode": "general"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var asked struct {
		Entry   followup.Entry `json:"entry"`
		Session sessionBody    `json:"session"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &asked))
	assert.Equal(t, "Contact your DSO.", asked.Entry.Answer)
	assert.Len(t, asked.Session.QAHistory, 1)

	resp = env.do(t, http.MethodPost, base+"/ask", gin.H{"question": "x", "mode": "chat"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestTranslateOvertakenByNewAnalysis(t *testing.T) {
	env := newEnv(t, nil)
	env.translator.entered = make(chan struct{}, 1)
	env.translator.gate = make(chan struct{})
	s := env.analyzedSession(t)
	base := "/api/v1/sessions/" + s.ID

	translated := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		translated <- env.do(t, http.MethodPost, base+"/translate", gin.H{"language": "ko"})
	}()
	select {
	case <-env.translator.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("translation never started")
	}

	resp := env.do(t, http.MethodPost, base+"/analyze?wait=true", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	close(env.translator.gate)

	var stale *httptest.ResponseRecorder
	select {
	case stale = <-translated:
	case <-time.After(2 * time.Second):
		t.Fatal("translation never returned")
	}
	assert.Equal(t, http.StatusConflict, stale.Code)
	assert.Equal(t, "stale_result", errorCodeOf(t, stale))

	after := decodeSession(t, env.do(t, http.MethodGet, base, nil))
	assert.Equal(t, session.StatusResult, after.Status)
	assert.Nil(t, after.Translation)
}

func TestAskFailureIsInline(t *testing.T) {
	env := newEnv(t, nil)
	env.manager = session.NewManager(session.Deps{
		Analyzer: env.analyzer,
		Answerer: stubAnswerer{err: followup.ErrQAFailed},
		Store:    checklist.NewStore(kv.NewMemory()),
	}, time.Hour)
	router := gin.New()
	NewHandler(env.manager, nil).RegisterRoutes(router.Group("/api/v1"))
	env.router = router

	s := env.analyzedSession(t)
	resp := env.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/ask", gin.H{"question": "When can I work?"})
	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, "question_failed", errorCodeOf(t, resp))

	after := decodeSession(t, env.do(t, http.MethodGet, "/api/v1/sessions/"+s.ID, nil))
	assert.Equal(t, session.StatusResult, after.Status)
	assert.Empty(t, after.QAHistory)
}

func TestUploadPDFRejectsOtherFiles(t *testing.T) {
	env := newEnv(t, nil)
	id := decodeSession(t, env.do(t, http.MethodPost, "/api/v1/sessions", nil)).ID
	base := "/api/v1/sessions/" + id
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/start", gin.H{"mode": "custom"}).Code)

	upload := func(name string, content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, base+"/document/pdf", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp := httptest.NewRecorder()
		env.router.ServeHTTP(resp, req)
		return resp
	}

	resp := upload("scan.png", []byte("\x89PNG\r\n\x1a\n"))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.Code)
	assert.Equal(t, "unsupported_file_type", errorCodeOf(t, resp))

	resp = upload("broken.pdf", []byte("%PDF-1.4 not really"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "parse_failed", errorCodeOf(t, resp))

	resp = env.do(t, http.MethodPost, base+"/document/pdf", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCatalogRoutes(t *testing.T) {
	env := newEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/v1/situations", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var cat struct {
		Situations []labeled `json:"situations"`
		Locales    []labeled `json:"locales"`
		Languages  []labeled `json:"languages"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &cat))
	assert.Len(t, cat.Situations, 5)
	assert.Len(t, cat.Locales, 5)
	assert.Len(t, cat.Languages, 6)

	resp = env.do(t, http.MethodGet, "/api/v1/samples", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "opt_email")
}
