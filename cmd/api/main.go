package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"athens/internal/attendance"
	"athens/internal/cache"
	"athens/internal/db"
	"athens/internal/escalation"
	"athens/internal/httpserver"
	"athens/internal/logger"
	"athens/internal/models"
	"athens/internal/notify"
	"athens/internal/offline"
	"athens/internal/ptw"
	"athens/internal/reporting"
	"athens/internal/webhookd"
)

// multiSink fans one permit event out to every sink.
type multiSink []ptw.EventSink

func (m multiSink) PermitEvent(event string, p models.Permit) {
	for _, s := range m {
		s.PermitEvent(event, p)
	}
}

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer func() { _ = lg.Sync() }()

	gdb, err := db.Open(lg)
	if err != nil {
		lg.Fatalw("database open failed", "error", err)
	}
	if err := db.Migrate(gdb); err != nil {
		lg.Fatalw("migration failed", "error", err)
	}
	if err := db.Seed(gdb, lg); err != nil {
		lg.Fatalw("seed failed", "error", err)
	}

	var c *cache.Cache
	if url := os.Getenv("REDIS_URL"); url != "" {
		c, err = cache.New(url, lg)
		if err != nil {
			lg.Fatalw("redis connect failed", "error", err)
		}
	} else {
		lg.Infow("REDIS_URL not set, caching disabled")
	}

	hub := notify.NewHub(lg)
	dispatcher := webhookd.NewDispatcher(gdb, lg)
	engine := ptw.NewEngine(gdb, lg, multiSink{dispatcher, hub})

	slaCfg := escalation.FromEnv()
	reporter := reporting.NewReporter(gdb, slaCfg)
	syncer := offline.NewSyncer(gdb, lg)
	ingester := attendance.NewIngester(gdb, lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := escalation.NewScheduler(gdb, lg, engine, hub, slaCfg)
	go scheduler.Run(ctx)
	go dispatcher.RunWorker(ctx)

	router := httpserver.New(httpserver.Deps{
		DB:       gdb,
		Log:      lg,
		Engine:   engine,
		Reporter: reporter,
		Syncer:   syncer,
		Ingester: ingester,
		Cache:    c,
		Hub:      hub,
	})

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Infow("http server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatalw("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	lg.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Errorw("shutdown incomplete", "error", err)
	}
}
