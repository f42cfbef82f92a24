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
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"remind/internal/config"
	"remind/internal/domain"
	"remind/internal/httpserver"
	"remind/internal/logging"
	"remind/internal/observability"
	"remind/internal/sender"
	"remind/internal/service"
	"remind/internal/store/pg"
	"remind/internal/template"
	"remind/internal/util"
	workerproc "remind/internal/worker"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)

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
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := db.Ping(startupCtx); err != nil {
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	st := pg.New(db)
	renderer := template.New()

	settingsSvc := &service.SettingsService{Store: st}
	settings, err := settingsSvc.Get(ctx)
	if err != nil {
		slog.Error("worker settings load failed", "err", err)
		os.Exit(1)
	}

	mail := &sender.SMTP{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     settings.Sender.FromEmail,
		FromName: settings.Sender.FromName,
		ReplyTo:  settings.Sender.ReplyTo,
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
	})

	rules := &service.RuleService{Store: st, Renderer: renderer, IDGen: util.NewRuleID, Now: util.NowUTC}
	generator := &service.Generator{Store: st, Settings: settings, IDGen: util.NewScheduleID, Now: util.NowUTC}
	processor := &workerproc.Processor{
		Store:    st,
		Sender:   mail,
		Renderer: renderer,
		Settings: settings,
		Limiter:  sendLimiter(settings.RateLimit),
		Breaker:  cb,
		IDGen:    util.NewLogID,
		Now:      util.NowUTC,
	}

	// health server
	s := httpserver.New()
	s.Mux.HandleFunc("/healthz", httpserver.Healthz())
	s.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second, func(c context.Context) error {
		return db.Ping(c)
	}))
	healthSrv := &http.Server{Addr: ":" + cfg.Port, Handler: httpserver.Logging(s.Mux)}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	loopErrCh := make(chan error, 1)
	go func() {
		loopErrCh <- run(ctx, cfg, st, rules, generator, processor)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-loopErrCh:
		if err != nil && err != context.Canceled {
			slog.Error("worker loop failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	select {
	case <-loopErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("worker shutdown timeout waiting for loop")
	}
}

// run alternates schedule generation and dispatch on their own tickers.
// Generation fires once at startup so a fresh deployment schedules
// reminders before the first daily tick.
func run(ctx context.Context, cfg config.WorkerConfig, st *pg.Store, rules *service.RuleService, generator *service.Generator, processor *workerproc.Processor) error {
	generate(ctx, st, rules, generator)

	genTicker := time.NewTicker(cfg.GenerateInterval)
	defer genTicker.Stop()
	pollTicker := time.NewTicker(cfg.PollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-genTicker.C:
			generate(ctx, st, rules, generator)
		case <-pollTicker.C:
			start := time.Now()
			logs, err := processor.ProcessDue(ctx)
			if err != nil {
				slog.Error("dispatch pass failed", "err", err)
				continue
			}
			if len(logs) > 0 {
				slog.Info("dispatch pass finished", "sent", len(logs), "duration", time.Since(start))
			}
		}
	}
}

func generate(ctx context.Context, st *pg.Store, rules *service.RuleService, generator *service.Generator) {
	ruleSet, err := rules.GetRules(ctx)
	if err != nil {
		slog.Error("rule load failed", "err", err)
		return
	}
	invoices, err := st.ListOpenInvoices(ctx)
	if err != nil {
		slog.Error("invoice load failed", "err", err)
		return
	}
	if _, err := generator.Generate(ctx, invoices, ruleSet); err != nil {
		slog.Error("schedule generation failed", "err", err)
	}
}

// sendLimiter derives one limiter from the configured caps: the hourly cap
// spread evenly, tightened by the minimum gap between consecutive sends.
func sendLimiter(rl domain.RateLimit) *rate.Limiter {
	var rps float64
	if rl.MaxPerHour > 0 {
		rps = float64(rl.MaxPerHour) / 3600
	}
	if rl.MinInterval > 0 {
		perGap := 1 / rl.MinInterval.Seconds()
		if rps == 0 || perGap < rps {
			rps = perGap
		}
	}
	if rps == 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
