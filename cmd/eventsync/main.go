package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"taize-events/internal/config"
	"taize-events/internal/kv"
	"taize-events/internal/logger"
	"taize-events/internal/metrics"
	"taize-events/internal/notify"
	"taize-events/internal/server"
	"taize-events/internal/sheets"
	"taize-events/internal/state"
	"taize-events/internal/store"
	"taize-events/internal/syncer"
	"taize-events/internal/tgbot"
	"taize-events/internal/validate"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("EVENTS_CONFIG"), "path to YAML config")
	once := flag.Bool("once", false, "run one sync and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg, *once); err != nil {
		lg.Fatal("exit", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := kv.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = closeBackend() }()
	cache, closeCache := kv.OpenCache(cfg.Sheets.CacheBackend, cfg.Storage)
	defer func() { _ = closeCache() }()

	st := store.New(backend)
	m := metrics.New()
	appState := state.New()

	src, err := sheets.NewSource(ctx, cfg.Sheets, nil)
	if err != nil {
		return err
	}
	enabled, err := st.SheetsEnabled(ctx, cfg.Sheets.Enabled)
	if err != nil {
		lg.Warn("sheets toggle unreadable, using config", zap.Error(err))
	}
	imp := sheets.NewImporter(src, sheets.Options{
		SpreadsheetID: cfg.Sheets.SpreadsheetID,
		CacheTTL:      cfg.Sheets.CacheTTL,
		Cache:         cache,
		Enabled:       enabled,
		Logger:        lg,
		Metrics:       m,
	})

	base, err := notify.NewFromConfig(cfg.Notify, lg)
	if err != nil {
		return err
	}
	notifiers := notify.Multi{base}

	var bot *tgbot.Bot
	if cfg.Telegram.Token != "" {
		bot, err = tgbot.New(cfg.Telegram, appState, lg)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, bot)
	}

	sc := syncer.New(syncer.Deps{
		Store:    st,
		Importer: imp,
		State:    appState,
		Notifier: notifiers,
		Metrics:  m,
		Logger:   lg,
		Interval: cfg.Sync.Interval,
	})
	defer sc.Close()

	if once {
		res, err := sc.Sync(ctx, syncer.Manual)
		if err != nil {
			return err
		}
		lg.Info("sync finished", zap.Int("events", res.Count), zap.Int("dropped", res.Dropped))
		return nil
	}

	boot, err := sc.Bootstrap(ctx)
	if err != nil {
		return err
	}
	lg.Info("bootstrap",
		zap.String("mode", boot.Mode),
		zap.String("source", boot.Source),
		zap.Int("events", boot.Count),
		zap.Bool("stale_sync", boot.StaleSync),
	)

	if cfg.Sync.Enabled {
		if err := sc.Start(); err != nil {
			return err
		}
	}

	httpSrv, stopHub := server.New(cfg.Server, server.Deps{
		State:        appState,
		Store:        st,
		Syncer:       sc,
		Sheets:       imp,
		Validator:    validate.New(),
		Metrics:      m,
		Logger:       lg,
		CalendarName: cfg.Server.CalendarName,
	})
	defer stopHub()

	errCh := make(chan error, 1)
	go func() {
		lg.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if bot != nil {
		bot.Attach(sc)
		go func() {
			if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Warn("bot stopped", zap.Error(err))
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	return nil
}
