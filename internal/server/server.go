package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taize-events/internal/config"
	"taize-events/internal/metrics"
	"taize-events/internal/models"
	"taize-events/internal/state"
	"taize-events/internal/store"
	"taize-events/internal/syncer"
	"taize-events/internal/validate"
)

// Syncer is what the handlers need from the synchronizer.
type Syncer interface {
	Sync(ctx context.Context, trigger syncer.Trigger) (syncer.Result, error)
	Status(ctx context.Context) models.SyncStatus
	ToggleSheets(ctx context.Context) (bool, error)
	AddEvent(ctx context.Context, ev models.Event) error
	DeleteEvent(ctx context.Context, id int64) (bool, error)
	ReplaceAll(ctx context.Context, events []models.Event, reason string) (int, error)
	ClearAll(ctx context.Context) error
	RestoreBackup(ctx context.Context) (int, error)
}

// Sheets is the importer surface exposed over HTTP.
type Sheets interface {
	ClearCache(ctx context.Context) error
	TestConnection(ctx context.Context) error
	SheetURL() string
	FormatEventForSheet(ev models.Event) string
	LoadEvents(ctx context.Context) []models.Event
	ForceLoadEvents(ctx context.Context) []models.Event
}

type Deps struct {
	State     *state.State
	Store     *store.Store
	Syncer    Syncer
	Sheets    Sheets
	Validator *validate.Validator
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Clock     func() time.Time

	CalendarName string
}

// New builds the HTTP server. The websocket hub subscribes to state changes
// until the returned stop func is called.
func New(cfg config.ServerConfig, d Deps) (*http.Server, func()) {
	engine, stop := Router(d)
	return &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, stop
}

func Router(d Deps) (*gin.Engine, func()) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Validator == nil {
		d.Validator = validate.New().WithClock(d.Clock)
	}
	if d.CalendarName == "" {
		d.CalendarName = "Taizé events"
	}
	d.Logger = d.Logger.Named("http")

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(d.Logger))

	h := &handlers{d: d}
	hub := newHub(d.Logger)
	unsubscribe := d.State.Subscribe(hub.broadcast)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	engine.GET("/events.ics", h.ics)
	engine.GET("/ws", hub.serve(d.State))

	api := engine.Group("/api")
	api.GET("/events", h.listEvents)
	api.POST("/events", h.addEvent)
	api.GET("/events/:id", h.getEvent)
	api.DELETE("/events/:id", h.deleteEvent)
	api.GET("/events/:id/sheet-row", h.sheetRow)
	api.POST("/validate", h.validateField)
	api.PUT("/section", h.showSection)

	api.POST("/sync", h.sync)
	api.GET("/sync/status", h.syncStatus)
	api.POST("/sheets/cache/clear", h.clearCache)
	api.POST("/sheets/toggle", h.toggleSheets)
	api.GET("/sheets/test", h.testSheets)
	api.GET("/sheets/preview", h.previewSheets)

	api.GET("/export", h.exportJSON)
	api.POST("/import", h.importJSON)
	api.DELETE("/data", h.clearData)
	api.POST("/backup/restore", h.restoreBackup)
	api.GET("/stats", h.stats)
	api.GET("/stats.csv", h.statsCSV)

	api.GET("/draft", h.getDraft)
	api.PUT("/draft", h.saveDraft)
	api.DELETE("/draft", h.clearDraft)

	return engine, func() {
		unsubscribe()
		hub.closeAll()
	}
}

type handlers struct {
	d Deps
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics" {
			return
		}
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
