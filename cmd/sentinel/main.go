package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"sentinel/internal/adapters/ai"
	"sentinel/internal/adapters/config"
	errnoop "sentinel/internal/adapters/errors/noop"
	errsentry "sentinel/internal/adapters/errors/sentry"
	"sentinel/internal/adapters/kafka"
	"sentinel/internal/adapters/postgres"
	"sentinel/internal/adapters/redis"
	"sentinel/internal/adapters/search"
	"sentinel/internal/adapters/telegram"
	"sentinel/internal/analysis"
	"sentinel/internal/domain/intel"
	"sentinel/internal/events"
	"sentinel/internal/metrics"
	repo "sentinel/internal/repository/postgres"
	"sentinel/internal/workers"
	"sentinel/internal/workers/intelligence"
	"sentinel/pkg/errors"
	"sentinel/pkg/logger"
)

const usage = `Usage:
  sentinel run daily          Run the full daily analysis pipeline
  sentinel run weekly         Generate the weekly summary from stored records
  sentinel run quick <topic>  Run an ad-hoc topic analysis (nothing persisted)
  sentinel run summary [days] Print stored intelligence counts for a trailing window (default 30 days)
  sentinel serve              Run the scheduler with all background workers
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	tracker := initTracker(cfg)
	logger.SetErrorTracker(tracker)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = tracker.Flush(flushCtx)
	}()

	app, err := newApp(cfg)
	if err != nil {
		logger.Errorf("Failed to initialize application: %v", err)
		return 1
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "run":
		if len(args) < 2 {
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		return app.runOnce(ctx, args[1], args[2:])
	case "serve":
		return app.serve(ctx, cfg)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

func initTracker(cfg *config.Config) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		return errnoop.NewTracker()
	}

	tracker, err := errsentry.NewTracker(errsentry.Config{
		DSN:         cfg.ErrorTracking.SentryDSN,
		Environment: cfg.ErrorTracking.Environment,
		SampleRate:  1.0,
		Debug:       cfg.App.Debug,
	})
	if err != nil {
		logger.Warnf("Failed to initialize error tracking, continuing without: %v", err)
		return errnoop.NewTracker()
	}
	return tracker
}

type app struct {
	orchestrator *analysis.Orchestrator
	store        intel.Store
	pg           *postgres.Client
	rdb          *redis.Client
	producer     *kafka.Producer
	cfg          *config.Config
}

func newApp(cfg *config.Config) (*app, error) {
	pg, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, "postgres connection failed")
	}

	rdb, err := redis.NewClient(cfg.Redis)
	if err != nil {
		_ = pg.Close()
		return nil, errors.Wrap(err, "redis connection failed")
	}

	notifier, err := telegram.NewNotifier(cfg.Telegram)
	if err != nil {
		_ = pg.Close()
		_ = rdb.Close()
		return nil, errors.Wrap(err, "telegram setup failed")
	}

	store := repo.NewStore(pg.DB())
	completion := ai.NewOpenAIClient(cfg.AI)
	searcher := search.NewSerperClient(cfg.Search)

	var (
		producer *kafka.Producer
		sink     analysis.EventSink
	)
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka)
		sink = events.NewPublisher(producer)
	}

	orchestrator := analysis.NewOrchestrator(
		analysis.NewMarketStage(searcher, completion, store),
		analysis.NewCompetitorStage(searcher, completion, store, cfg.Analysis.Competitors),
		analysis.NewTrendStage(searcher, completion, store, cfg.Analysis.TrendLookback),
		analysis.NewSynthesisStage(completion, store, cfg.Analysis.SynthesisLookback),
		store,
		notifier,
		rdb,
		sink,
		cfg.Analysis,
	)

	return &app{
		orchestrator: orchestrator,
		store:        store,
		pg:           pg,
		rdb:          rdb,
		producer:     producer,
		cfg:          cfg,
	}, nil
}

func (a *app) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Warnf("Failed to close kafka producer: %v", err)
		}
	}
	if err := a.rdb.Close(); err != nil {
		logger.Warnf("Failed to close redis client: %v", err)
	}
	if err := a.pg.Close(); err != nil {
		logger.Warnf("Failed to close postgres client: %v", err)
	}
}

// runOnce executes one pipeline operation and exits. Exit code 0 means the
// operation completed; a degraded daily run still exits 0 unless its status
// is error.
func (a *app) runOnce(ctx context.Context, mode string, rest []string) int {
	switch mode {
	case "daily":
		report, err := a.orchestrator.RunDaily(ctx)
		if err != nil {
			logger.Errorf("Daily analysis failed: %v", err)
			return 1
		}
		fmt.Printf("daily analysis %s: findings=%d opportunities=%d alerts=%d duration=%s\n",
			report.Run.Status, report.Run.FindingsCount, report.Run.OpportunitiesIdentified,
			len(report.Alerts), report.ExecutionTime.Round(time.Second))
		if report.Run.Status == intel.RunStatusError {
			return 1
		}
		return 0

	case "weekly":
		report, err := a.orchestrator.RunWeekly(ctx)
		if err != nil {
			logger.Errorf("Weekly summary failed: %v", err)
			return 1
		}
		fmt.Printf("weekly summary: runs=%d findings=%d updates=%d trends=%d\n",
			len(report.Runs), len(report.Findings), len(report.Updates), len(report.Trends))
		return 0

	case "quick":
		if len(rest) == 0 {
			fmt.Fprintln(os.Stderr, "run quick requires a topic")
			return 2
		}
		topic := strings.Join(rest, " ")
		report, err := a.orchestrator.RunQuick(ctx, topic)
		if err != nil {
			logger.Errorf("Quick analysis failed: %v", err)
			return 1
		}
		fmt.Printf("quick analysis for %q:\n\n%s\n\n%s\n",
			report.Topic, report.MarketAnalysis, report.TrendConvergence)
		return 0

	case "summary":
		days := 30
		if len(rest) > 0 {
			d, err := strconv.Atoi(rest[0])
			if err != nil || d <= 0 {
				fmt.Fprintln(os.Stderr, "run summary takes an optional positive day count")
				return 2
			}
			days = d
		}
		summary, err := a.orchestrator.Summary(ctx, time.Duration(days)*24*time.Hour)
		if err != nil {
			logger.Errorf("Summary failed: %v", err)
			return 1
		}
		fmt.Printf("last %d days: runs=%d findings=%d updates=%d (%d critical) trends=%d (%d accelerating) top_opportunities=%d\n",
			days, len(summary.RecentRuns), summary.FindingsCount,
			summary.UpdatesCount, summary.CriticalUpdates,
			summary.TrendsCount, summary.HighMomentumTrends, len(summary.TopOpportunities))
		return 0

	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

// serve runs the background workers and the metrics endpoint until a
// shutdown signal arrives
func (a *app) serve(ctx context.Context, cfg *config.Config) int {
	metrics.Init()

	metricsSrv := &http.Server{
		Addr:              ":9090",
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Metrics server failed: %v", err)
		}
	}()

	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(intelligence.NewDailyAnalysisWorker(
		a.orchestrator, cfg.Workers.DailyAnalysisInterval, cfg.Workers.DailyAnalysisEnabled))
	scheduler.RegisterWorker(intelligence.NewWeeklyDigestWorker(
		a.orchestrator, cfg.Workers.WeeklyDigestInterval, cfg.Workers.WeeklyDigestEnabled))
	scheduler.RegisterWorker(intelligence.NewRetentionPurgeWorker(
		a.store, cfg.Analysis.RetentionDays, cfg.Workers.RetentionPurgeInterval, cfg.Workers.RetentionPurgeEnabled))

	if err := scheduler.Start(ctx); err != nil {
		logger.Errorf("Failed to start scheduler: %v", err)
		return 1
	}

	logger.Info("Sentinel serving; waiting for shutdown signal")
	<-ctx.Done()

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if err := scheduler.Stop(); err != nil {
		logger.Warnf("Scheduler shutdown: %v", err)
		return 1
	}
	return 0
}
