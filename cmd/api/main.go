package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"remind/internal/config"
	"remind/internal/httpserver"
	"remind/internal/logging"
	"remind/internal/observability"
	"remind/internal/service"
	"remind/internal/store/pg"
	"remind/internal/template"
	"remind/internal/util"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBPool.MaxConns,
		MinConns:          cfg.DBPool.MinConns,
		MaxConnLifetime:   cfg.DBPool.MaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPool.MaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPool.HealthCheckPeriod,
	})
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	observability.Register(prometheus.DefaultRegisterer)

	st := pg.New(db)
	renderer := template.New()

	settingsSvc := &service.SettingsService{Store: st}
	settings, err := settingsSvc.Get(ctx)
	if err != nil {
		slog.Error("api settings load failed", "err", err)
		os.Exit(1)
	}

	api := &httpserver.API{
		Rules:     &service.RuleService{Store: st, Renderer: renderer, IDGen: util.NewRuleID, Now: util.NowUTC},
		Templates: &service.TemplateService{Store: st, IDGen: util.NewTemplateID, Now: util.NowUTC},
		Settings:  settingsSvc,
		Stats:     &service.StatsService{Store: st, Settings: settings},
		Logs:      st,
		Now:       util.NowUTC,
	}

	s := httpserver.New()
	api.Register(s.Mux)
	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(ctx context.Context) error {
		return db.Ping(ctx)
	}))

	handler := httpserver.Logging(httpserver.Metrics(observability.APIRequests)(s.Mux))
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}
