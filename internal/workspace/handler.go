// Package workspace exposes workspace sessions over HTTP and websocket.
package workspace

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"visadoc-backend/internal/analysis"
	"visadoc-backend/internal/checklist"
	"visadoc-backend/internal/extract"
	"visadoc-backend/internal/followup"
	"visadoc-backend/internal/samples"
	"visadoc-backend/internal/session"
	"visadoc-backend/internal/shared/server/respond"
	"visadoc-backend/internal/shared/telemetry"
	"visadoc-backend/internal/shared/util"
)

const defaultPingInterval = 30 * time.Second

// Handler wires HTTP routes to the session manager.
type Handler struct {
	Sessions *session.Manager

	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

// NewHandler constructs a Handler. Websocket upgrades are accepted from
// allowedOrigins, or from any origin when the list contains "*".
func NewHandler(mgr *session.Manager, allowedOrigins []string) *Handler {
	return &Handler{
		Sessions: mgr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		pingInterval: defaultPingInterval,
	}
}

// RegisterRoutes attaches workspace routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/situations", h.situations)
	rg.GET("/samples", h.samples)

	rg.POST("/sessions", h.create)
	rg.GET("/sessions/:id", h.get)
	rg.DELETE("/sessions/:id", h.remove)
	rg.POST("/sessions/:id/start", h.start)
	rg.PUT("/sessions/:id/situation", h.setSituation)
	rg.PUT("/sessions/:id/document", h.setDocument)
	rg.POST("/sessions/:id/document/pdf", h.uploadPDF)
	rg.PUT("/sessions/:id/locale", h.setLocale)
	rg.POST("/sessions/:id/analyze", h.analyze)
	rg.POST("/sessions/:id/back", h.back)
	rg.POST("/sessions/:id/error/dismiss", h.dismissError)

	rg.GET("/sessions/:id/checklist", h.checklist)
	rg.GET("/sessions/:id/checklist/export", h.exportChecklist)
	rg.POST("/sessions/:id/checklist/:itemId/toggle", h.toggleItem)
	rg.POST("/sessions/:id/checklist/:itemId/move", h.moveItem)

	rg.POST("/sessions/:id/translate", h.translate)
	rg.POST("/sessions/:id/ask", h.ask)

	rg.GET("/sessions/:id/events", h.events)
}

type progressResponse struct {
	Done      int `json:"done"`
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
	Percent   int `json:"percent"`
}

type sessionResponse struct {
	ID         string           `json:"id"`
	Status     session.Status   `json:"status"`
	CanAnalyze bool             `json:"canAnalyze"`
	Progress   progressResponse `json:"progress"`
	session.State
}

func toProgress(p checklist.Progress) progressResponse {
	return progressResponse{Done: p.Done, Total: p.Total, Remaining: p.Remaining(), Percent: p.Percent()}
}

func toResponse(id string, s session.State) sessionResponse {
	return sessionResponse{
		ID:         id,
		Status:     s.Status(),
		CanAnalyze: s.CanAnalyze(),
		Progress:   toProgress(checklist.CountProgress(s.Checklist)),
		State:      s,
	}
}

func (h *Handler) machine(c *gin.Context) (*session.Machine, bool) {
	m, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return m, true
}

// dispatch applies e and writes the resulting session.
func (h *Handler) dispatch(c *gin.Context, m *session.Machine, e session.Event) {
	before := m.Snapshot().Status()
	next, err := m.Dispatch(c.Request.Context(), e)
	if err != nil {
		writeError(c, err)
		return
	}
	markTransition(c, before, next.Status())
	respond.OK(c, toResponse(m.ID(), next))
}

func markTransition(c *gin.Context, from, to session.Status) {
	if from != to {
		c.Set("statusTransition", string(from)+"->"+string(to))
	}
}

type labeled struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func (h *Handler) situations(c *gin.Context) {
	situations := make([]labeled, 0, len(analysis.Situations()))
	for _, s := range analysis.Situations() {
		situations = append(situations, labeled{ID: string(s), Label: s.Label()})
	}
	locales := make([]labeled, 0, len(analysis.Locales()))
	for _, l := range analysis.Locales() {
		locales = append(locales, labeled{ID: string(l), Label: l.LanguageName()})
	}
	languages := make([]labeled, 0, len(followup.Languages()))
	for _, l := range followup.Languages() {
		languages = append(languages, labeled{ID: string(l), Label: l.Name()})
	}
	respond.OK(c, gin.H{
		"situations":       situations,
		"defaultSituation": analysis.DefaultSituation,
		"locales":          locales,
		"languages":        languages,
	})
}

func (h *Handler) samples(c *gin.Context) {
	respond.OK(c, gin.H{"samples": samples.List()})
}

func (h *Handler) create(c *gin.Context) {
	m := h.Sessions.Create()
	c.Header("Location", "/api/v1/sessions/"+m.ID())
	respond.JSON(c, http.StatusCreated, toResponse(m.ID(), m.Snapshot()))
}

func (h *Handler) get(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	respond.OK(c, toResponse(m.ID(), m.Snapshot()))
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.Sessions.Delete(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type startRequest struct {
	Mode     string `json:"mode"`
	SampleID string `json:"sampleId"`
}

func (h *Handler) start(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "sample":
		sample, err := samples.Get(req.SampleID)
		if err != nil {
			respond.Error(c, http.StatusNotFound, "not_found", "sample not found", gin.H{"sampleId": req.SampleID})
			return
		}
		h.dispatch(c, m, session.SelectSample{Text: sample.Text})
	case "custom":
		h.dispatch(c, m, session.SelectCustom{})
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error", "mode must be sample or custom", nil)
	}
}

type situationRequest struct {
	Situation string `json:"situation"`
}

func (h *Handler) setSituation(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	var req situationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	situation, valid := analysis.ParseSituation(req.Situation)
	if !valid {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unknown situation", gin.H{"situation": req.Situation})
		return
	}
	h.dispatch(c, m, session.SetSituation{Situation: situation})
}

type documentRequest struct {
	Text string `json:"text"`
}

func (h *Handler) setDocument(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	var req documentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	h.dispatch(c, m, session.SetDocument{Text: req.Text, Source: session.SourceCustom})
}

func (h *Handler) uploadPDF(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, extract.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	fileName, err := util.SanitizeFileName(fileHeader.Filename)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid file name", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	text, err := extract.ExtractPDF(c.Request.Context(), data)
	if err != nil {
		telemetry.Warn("document.extract_failed", map[string]any{
			"session": util.ShortHash(m.ID()),
			"file":    fileName,
			"bytes":   len(data),
			"error":   util.SanitizeError(err),
		})
		writeError(c, err)
		return
	}
	telemetry.Info("document.extracted", map[string]any{
		"session": util.ShortHash(m.ID()),
		"file":    fileName,
		"bytes":   len(data),
		"chars":   len([]rune(text)),
	})
	h.dispatch(c, m, session.SetDocument{Text: text, Source: session.SourcePDF})
}

type localeRequest struct {
	Locale string `json:"locale"`
}

func (h *Handler) setLocale(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	var req localeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	locale, valid := analysis.ParseLocale(req.Locale)
	if !valid {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unknown locale", gin.H{"locale": req.Locale})
		return
	}
	h.dispatch(c, m, session.SetLocale{Locale: locale})
}

// analyze starts an analysis and answers 202 with the analyzing state.
// With ?wait=true it blocks until the response is committed or dropped.
func (h *Handler) analyze(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	before := m.Snapshot().Status()
	done, err := m.StartAnalysis(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		select {
		case <-done:
		case <-c.Request.Context().Done():
			return
		}
		next := m.Snapshot()
		markTransition(c, before, next.Status())
		respond.OK(c, toResponse(m.ID(), next))
		return
	}
	next := m.Snapshot()
	markTransition(c, before, next.Status())
	respond.Accepted(c, toResponse(m.ID(), next))
}

func (h *Handler) back(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	h.dispatch(c, m, session.Back{})
}

func (h *Handler) dismissError(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	h.dispatch(c, m, session.DismissError{})
}

// errorCode maps domain errors to status, code and user-facing message.
func errorCode(err error) (int, string, string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "not_found", "session not found"
	case errors.Is(err, session.ErrUnknownItem):
		return http.StatusNotFound, "not_found", "checklist item not found"
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, "analysis_in_progress", "An analysis is in progress. Please wait for it to finish."
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict, "invalid_state", "This action is not available right now."
	case errors.Is(err, session.ErrStale):
		return http.StatusConflict, "stale_result", "The result changed while this request was running. Please try again."
	case errors.Is(err, session.ErrDocumentTooShort):
		return http.StatusUnprocessableEntity, "document_too_short", "Please enter at least " + strconv.Itoa(analysis.MinDocumentLength) + " characters."
	case errors.Is(err, session.ErrInvalidInput):
		return http.StatusBadRequest, "validation_error", err.Error()
	case errors.Is(err, followup.ErrNoResult):
		return http.StatusConflict, "no_result", "Analyze a document first."
	case errors.Is(err, followup.ErrEmptyQuestion):
		return http.StatusBadRequest, "validation_error", "question is required"
	case errors.Is(err, followup.ErrUnsupportedLanguage):
		return http.StatusBadRequest, "validation_error", "unsupported language"
	case errors.Is(err, followup.ErrTranslationFailed):
		return http.StatusBadGateway, "translation_failed", followup.TranslationUserMessage
	case errors.Is(err, followup.ErrQAFailed):
		return http.StatusBadGateway, "question_failed", followup.QAUserMessage
	case errors.Is(err, extract.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, "unsupported_file_type", extract.UserMessage(err)
	case errors.Is(err, extract.ErrNoText):
		return http.StatusUnprocessableEntity, "no_text", extract.UserMessage(err)
	case errors.Is(err, extract.ErrParseFailed):
		return http.StatusUnprocessableEntity, "parse_failed", extract.UserMessage(err)
	default:
		return http.StatusInternalServerError, "internal", "Unexpected server error"
	}
}

func writeError(c *gin.Context, err error) {
	status, code, msg := errorCode(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	respond.Error(c, status, code, msg, nil)
}
