package server

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taize-events/internal/export"
	"taize-events/internal/store"
)

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
}

func (h *handlers) exportJSON(c *gin.Context) {
	now := h.d.Clock()
	var buf bytes.Buffer
	if err := export.WriteJSON(&buf, export.BuildExport(h.d.State.Events(), now)); err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	attachment(c, export.FileName("taize-events", "json", now))
	c.Data(http.StatusOK, "application/json; charset=utf-8", buf.Bytes())
}

// importJSON replaces the collection with an uploaded export document.
// A malformed document leaves everything untouched.
func (h *handlers) importJSON(c *gin.Context) {
	events, meta, err := export.ParseImport(c.Request.Body)
	if err != nil {
		var ferr *export.ImportFormatError
		if errors.As(err, &ferr) {
			fail(c, http.StatusBadRequest, ferr.Reason, nil)
			return
		}
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	dropped, err := h.d.Syncer.ReplaceAll(c.Request.Context(), events, "import")
	if err != nil {
		h.d.Logger.Error("import", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Помилка збереження даних", nil)
		return
	}
	out := map[string]any{"imported": len(events) - dropped, "dropped": dropped}
	if meta != nil {
		out["source_version"] = meta.Version
		out["source_export_date"] = meta.ExportDate
	}
	ok(c, out, nil)
}

func (h *handlers) clearData(c *gin.Context) {
	if err := h.d.Syncer.ClearAll(c.Request.Context()); err != nil {
		h.d.Logger.Error("clear data", zap.Error(err))
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	ok(c, gin.H{"cleared": true}, nil)
}

func (h *handlers) restoreBackup(c *gin.Context) {
	n, err := h.d.Syncer.RestoreBackup(c.Request.Context())
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "no backup", nil)
		return
	}
	if err != nil {
		h.d.Logger.Error("restore backup", zap.Error(err))
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	ok(c, gin.H{"restored": n}, nil)
}

func (h *handlers) stats(c *gin.Context) {
	ok(c, export.Statistics(h.d.State.Events(), h.d.Clock()), nil)
}

func (h *handlers) statsCSV(c *gin.Context) {
	now := h.d.Clock()
	var buf bytes.Buffer
	if err := export.WriteStatisticsCSV(&buf, export.Statistics(h.d.State.Events(), now)); err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	attachment(c, export.FileName("taize-statistics", "csv", now))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *handlers) ics(c *gin.Context) {
	var buf bytes.Buffer
	if err := export.WriteICS(&buf, h.d.State.Events(), h.d.CalendarName, h.d.Clock()); err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

func (h *handlers) getDraft(c *gin.Context) {
	d, err := h.d.Store.LoadDraft(c.Request.Context())
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "no draft", nil)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	ok(c, d, nil)
}

func (h *handlers) saveDraft(c *gin.Context) {
	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil {
		fail(c, http.StatusBadRequest, "invalid draft body", nil)
		return
	}
	if err := h.d.Store.SaveDraft(c.Request.Context(), fields); err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	ok(c, gin.H{"saved": true, "complete": h.d.Validator.ValidateForm(fields)}, nil)
}

func (h *handlers) clearDraft(c *gin.Context) {
	if err := h.d.Store.ClearDraft(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	ok(c, gin.H{"cleared": true}, nil)
}
