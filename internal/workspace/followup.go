package workspace

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visadoc-backend/internal/followup"
	"visadoc-backend/internal/shared/server/respond"
)

type translateRequest struct {
	Language string `json:"language"`
}

func (h *Handler) translate(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	lang, err := followup.ParseLanguage(req.Language)
	if err != nil {
		writeError(c, err)
		return
	}
	next, err := m.Translate(c.Request.Context(), lang)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toResponse(m.ID(), next))
}

type askRequest struct {
	Question string `json:"question"`
	Mode     string `json:"mode"`
}

type askResponse struct {
	Entry   followup.Entry  `json:"entry"`
	Session sessionResponse `json:"session"`
}

func (h *Handler) ask(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	mode, err := followup.ParseMode(req.Mode)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "mode must be document or general", nil)
		return
	}
	entry, next, err := m.Ask(c.Request.Context(), req.Question, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, askResponse{Entry: entry, Session: toResponse(m.ID(), next)})
}
