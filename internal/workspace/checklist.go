package workspace

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"visadoc-backend/internal/checklist"
	"visadoc-backend/internal/session"
	"visadoc-backend/internal/shared/server/respond"
)

const (
	viewList     = "list"
	viewTimeline = "timeline"
)

type checklistResponse struct {
	Fingerprint string             `json:"fingerprint,omitempty"`
	Filter      checklist.Filter   `json:"filter"`
	View        string             `json:"view"`
	Progress    progressResponse   `json:"progress"`
	Items       []checklist.Item   `json:"items,omitempty"`
	Buckets     []checklist.Bucket `json:"buckets,omitempty"`
}

func (h *Handler) checklist(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	filter, err := checklist.ParseFilter(c.Query("filter"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unknown filter", gin.H{"filter": c.Query("filter")})
		return
	}
	view := strings.ToLower(strings.TrimSpace(c.DefaultQuery("view", viewList)))
	if view != viewList && view != viewTimeline {
		respond.Error(c, http.StatusBadRequest, "validation_error", "view must be list or timeline", nil)
		return
	}

	s := m.Snapshot()
	// Progress always counts the whole checklist, not the filtered view.
	resp := checklistResponse{
		Fingerprint: s.Fingerprint,
		Filter:      filter,
		View:        view,
		Progress:    toProgress(checklist.CountProgress(s.Checklist)),
	}
	items := filter.Apply(s.Checklist)
	if view == viewTimeline {
		resp.Buckets = checklist.Timeline(items)
	} else {
		resp.Items = items
		if resp.Items == nil {
			resp.Items = []checklist.Item{}
		}
	}
	respond.OK(c, resp)
}

func (h *Handler) exportChecklist(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	s := m.Snapshot()
	if s.Result == nil {
		writeError(c, session.ErrInvalidTransition)
		return
	}
	c.Header("Content-Disposition", `inline; filename="checklist.txt"`)
	respond.Text(c, http.StatusOK, checklist.ExportText(s.Checklist))
}

func (h *Handler) toggleItem(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	h.dispatch(c, m, session.ToggleItem{ID: c.Param("itemId")})
}

type moveRequest struct {
	Index *int `json:"index"`
}

func (h *Handler) moveItem(c *gin.Context) {
	m, ok := h.machine(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "index is required", nil)
		return
	}
	h.dispatch(c, m, session.MoveItem{ID: c.Param("itemId"), Index: *req.Index})
}
