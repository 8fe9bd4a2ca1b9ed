package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taize-events/internal/models"
	"taize-events/internal/validate"
)

func (h *handlers) listEvents(c *gin.Context) {
	var events []models.Event
	switch section := c.DefaultQuery("section", "all"); section {
	case "all":
		events = h.d.State.Events()
	case "past":
		events = h.d.State.Past(h.d.Clock())
	case "future":
		events = h.d.State.Future(h.d.Clock())
	default:
		fail(c, http.StatusBadRequest, "unknown section: "+section, nil)
		return
	}
	ok(c, events, map[string]any{"total": len(events)})
}

func (h *handlers) getEvent(c *gin.Context) {
	id, good := eventID(c)
	if !good {
		return
	}
	ev, found := h.d.State.Find(id)
	if !found {
		fail(c, http.StatusNotFound, "event not found", nil)
		return
	}
	ok(c, ev, nil)
}

func (h *handlers) addEvent(c *gin.Context) {
	var form map[string]string
	if err := c.ShouldBindJSON(&form); err != nil {
		fail(c, http.StatusBadRequest, "invalid form body", nil)
		return
	}
	ev, err := h.d.Validator.BuildEvent(form)
	if err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			fail(c, http.StatusUnprocessableEntity, "validation failed", map[string]any{"fields": verr.Fields})
			return
		}
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.d.Syncer.AddEvent(c.Request.Context(), ev); err != nil {
		h.d.Logger.Error("add event", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Помилка збереження даних", nil)
		return
	}
	if err := h.d.Store.ClearDraft(c.Request.Context()); err != nil {
		h.d.Logger.Warn("clear draft after add", zap.Error(err))
	}
	created(c, ev)
}

func (h *handlers) deleteEvent(c *gin.Context) {
	id, good := eventID(c)
	if !good {
		return
	}
	found, err := h.d.Syncer.DeleteEvent(c.Request.Context(), id)
	if err != nil {
		h.d.Logger.Error("delete event", zap.Int64("id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Помилка збереження даних", nil)
		return
	}
	if !found {
		fail(c, http.StatusNotFound, "event not found", nil)
		return
	}
	ok(c, gin.H{"id": id}, nil)
}

// sheetRow renders the record as a tab separated row for pasting into the
// spreadsheet.
func (h *handlers) sheetRow(c *gin.Context) {
	id, good := eventID(c)
	if !good {
		return
	}
	ev, found := h.d.State.Find(id)
	if !found {
		fail(c, http.StatusNotFound, "event not found", nil)
		return
	}
	ok(c, gin.H{"row": h.d.Sheets.FormatEventForSheet(ev)}, map[string]any{"sheet_url": h.d.Sheets.SheetURL()})
}

type validateRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

func (h *handlers) validateField(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "field is required", nil)
		return
	}
	ok(c, h.d.Validator.ValidateField(req.Field, req.Value), nil)
}

type sectionRequest struct {
	Section string `json:"section" binding:"required"`
}

func (h *handlers) showSection(c *gin.Context) {
	var req sectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "section is required", nil)
		return
	}
	if err := h.d.State.ShowSection(req.Section); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	ok(c, gin.H{"section": h.d.State.Section()}, nil)
}

func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid event id", nil)
		return 0, false
	}
	return id, true
}
