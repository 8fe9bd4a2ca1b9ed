package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taize-events/internal/models"
	"taize-events/internal/sheets"
	"taize-events/internal/syncer"
	"taize-events/internal/validate"
)

func (h *handlers) sync(c *gin.Context) {
	// Concurrent callers share one run, so a client hanging up must not
	// cancel it for the others.
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.d.Syncer.Sync(ctx, syncer.Manual)
	if err != nil {
		status := http.StatusInternalServerError
		var rerr *sheets.RemoteFetchError
		switch {
		case errors.Is(err, sheets.ErrDisabled):
			status = http.StatusConflict
		case errors.Is(err, syncer.ErrEmptyImport), errors.As(err, &rerr):
			status = http.StatusBadGateway
		}
		fail(c, status, err.Error(), nil)
		return
	}
	ok(c, res, nil)
}

func (h *handlers) syncStatus(c *gin.Context) {
	ctx := c.Request.Context()
	var meta map[string]any
	if md, err := h.d.Store.Metadata(ctx); err == nil {
		meta = map[string]any{"version": md.Version, "last_updated": md.LastUpdated}
	}
	ok(c, h.d.Syncer.Status(ctx), meta)
}

func (h *handlers) clearCache(c *gin.Context) {
	if err := h.d.Sheets.ClearCache(c.Request.Context()); err != nil {
		h.d.Logger.Error("clear sheets cache", zap.Error(err))
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	ok(c, gin.H{"cleared": true}, nil)
}

func (h *handlers) toggleSheets(c *gin.Context) {
	on, err := h.d.Syncer.ToggleSheets(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	ok(c, gin.H{"enabled": on}, nil)
}

func (h *handlers) testSheets(c *gin.Context) {
	if err := h.d.Sheets.TestConnection(c.Request.Context()); err != nil {
		fail(c, http.StatusBadGateway, err.Error(), map[string]any{"sheet_url": h.d.Sheets.SheetURL()})
		return
	}
	ok(c, gin.H{"reachable": true}, map[string]any{"sheet_url": h.d.Sheets.SheetURL()})
}

// previewSheets shows what a sync would import without applying it.
// ?fresh=1 bypasses the importer cache.
func (h *handlers) previewSheets(c *gin.Context) {
	ctx := c.Request.Context()
	var events []models.Event
	if c.Query("fresh") == "1" {
		events = h.d.Sheets.ForceLoadEvents(ctx)
	} else {
		events = h.d.Sheets.LoadEvents(ctx)
	}
	complete, dropped := models.FilterComplete(events)
	warnings := map[int64]map[string]string{}
	for _, ev := range complete {
		var verr *validate.ValidationError
		if errors.As(h.d.Validator.ValidateEvent(ev), &verr) {
			warnings[ev.ID] = verr.Fields
		}
	}
	ok(c, complete, map[string]any{"total": len(complete), "incomplete": dropped, "warnings": warnings})
}
