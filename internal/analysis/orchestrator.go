package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sentinel/internal/adapters/config"
	"sentinel/internal/domain/intel"
	"sentinel/internal/metrics"
	"sentinel/pkg/errors"
	"sentinel/pkg/logger"
)

// MarketAnalyzer is the market stage plus its ad-hoc topic lookup
type MarketAnalyzer interface {
	Stage
	AnalyzeTopic(ctx context.Context, topic string) (string, error)
}

// TrendAnalyzer is the trend stage plus its convergence lookup
type TrendAnalyzer interface {
	Stage
	AnalyzeConvergence(ctx context.Context, topic string) (string, error)
}

// Notifier delivers digests and immediate alerts. Delivery failures never
// roll back persisted records.
type Notifier interface {
	SendDigest(ctx context.Context, report *RunReport) error
	SendWeeklyDigest(ctx context.Context, report *WeeklyReport) error
	SendCriticalAlert(ctx context.Context, alert intel.Alert) error
}

// Locker guards against concurrent runs across processes
type Locker interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// EventSink publishes run lifecycle events for downstream consumers
type EventSink interface {
	RunCompleted(ctx context.Context, run *intel.AnalysisRun) error
	AlertRaised(ctx context.Context, alert intel.Alert) error
}

// Orchestrator sequences the four analysis stages: the three independent
// stages fan out concurrently, then synthesis consumes their results. A
// degraded stage never aborts its siblings or the run.
type Orchestrator struct {
	market     MarketAnalyzer
	competitor Stage
	trend      TrendAnalyzer
	synthesis  Stage
	store      intel.Store
	notifier   Notifier
	locker     Locker
	events     EventSink
	cfg        config.AnalysisConfig
	log        *logger.Logger

	// In-process guard; the locker extends it across processes
	running atomic.Bool
}

// NewOrchestrator wires the pipeline. The events sink may be nil when event
// publishing is disabled.
func NewOrchestrator(
	market MarketAnalyzer,
	competitor Stage,
	trend TrendAnalyzer,
	synthesis Stage,
	store intel.Store,
	notifier Notifier,
	locker Locker,
	events EventSink,
	cfg config.AnalysisConfig,
) *Orchestrator {
	return &Orchestrator{
		market:     market,
		competitor: competitor,
		trend:      trend,
		synthesis:  synthesis,
		store:      store,
		notifier:   notifier,
		locker:     locker,
		events:     events,
		cfg:        cfg,
		log:        logger.Get().With("component", "orchestrator"),
	}
}

func runLockKey(runDate time.Time) string {
	return "analysis:run:" + runDate.Format("2006-01-02")
}

// postRunTimeout bounds aggregation, persistence and dispatch after the
// stage barrier. These steps run on their own budget so a stage that
// consumed the whole run deadline cannot starve them.
const postRunTimeout = time.Minute

// highMomentumScore marks a trend as accelerating in summaries
const highMomentumScore = 0.7

// RunDaily executes the full pipeline once. Exactly one run may execute per
// day: a second invocation for the same date returns ErrRunInProgress or
// ErrAlreadyExists without side effects.
func (o *Orchestrator) RunDaily(ctx context.Context) (*RunReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, errors.Wrap(errors.ErrRunInProgress, "pipeline already running in this process")
	}
	defer o.running.Store(false)

	start := time.Now()
	runDate := start.UTC().Truncate(24 * time.Hour)

	acquired, err := o.locker.AcquireLock(ctx, runLockKey(runDate), o.cfg.RunTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire run lock")
	}
	if !acquired {
		return nil, errors.Wrap(errors.ErrRunInProgress, "pipeline already running for "+runDate.Format("2006-01-02"))
	}
	defer func() {
		if err := o.locker.ReleaseLock(context.WithoutCancel(ctx), runLockKey(runDate)); err != nil {
			o.log.Warnw("Failed to release run lock", "error", err)
		}
	}()

	exists, err := o.store.RunExists(ctx, runDate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check run history")
	}
	if exists {
		return nil, errors.Wrapf(errors.ErrAlreadyExists, "analysis run for %s", runDate.Format("2006-01-02"))
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout)
	defer cancel()

	o.log.Infow("Starting daily analysis run", "run_date", runDate.Format("2006-01-02"))

	market, competitor, trend := o.fanOut(runCtx)
	synthesis := o.runStage(runCtx, o.synthesis, StageContext{
		Market:     &market,
		Competitor: &competitor,
		Trend:      &trend,
	})

	postCtx, cancelPost := context.WithTimeout(context.WithoutCancel(ctx), postRunTimeout)
	defer cancelPost()

	report := o.aggregate(postCtx, start, runDate, []StageResult{market, competitor, trend, synthesis})

	// A run that cannot be written is still reported and dispatched; only
	// its history entry is lost
	if err := o.store.InsertRun(postCtx, report.Run); err != nil {
		o.log.Errorw("Failed to persist analysis run", "error", err)
		report.PersistErr = errors.Wrap(err, "failed to persist analysis run")
	}

	o.dispatch(postCtx, report)

	metrics.RecordPipelineRun("daily", string(report.Run.Status), report.ExecutionTime)
	o.log.Infow("Daily analysis run finished",
		"status", report.Run.Status,
		"findings", report.Run.FindingsCount,
		"opportunities", report.Run.OpportunitiesIdentified,
		"alerts", len(report.Alerts),
		"duration", report.ExecutionTime,
	)

	return report, nil
}

// fanOut launches the three independent stages and waits at a barrier for
// all of them. The first failure does not cancel siblings; a stage that
// outlives the run deadline is reported as timed out while its goroutine is
// left to drain.
func (o *Orchestrator) fanOut(ctx context.Context) (market, competitor, trend StageResult) {
	type tagged struct {
		idx    int
		result StageResult
	}

	stages := []Stage{o.market, o.competitor, o.trend}
	results := make([]StageResult, len(stages))
	received := make([]bool, len(stages))

	resCh := make(chan tagged, len(stages))
	var wg sync.WaitGroup
	for i, stage := range stages {
		wg.Add(1)
		go func(idx int, st Stage) {
			defer wg.Done()
			resCh <- tagged{idx: idx, result: o.runStage(ctx, st, StageContext{})}
		}(i, stage)
	}
	go func() {
		wg.Wait()
		close(resCh)
	}()

	for range stages {
		select {
		case t, ok := <-resCh:
			if !ok {
				break
			}
			results[t.idx] = t.result
			received[t.idx] = true
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	for i, stage := range stages {
		if !received[i] {
			o.log.Errorw("Stage did not finish before run deadline", "stage", stage.Name())
			results[i] = emptyResult(stage.Name(), errors.Wrap(errors.ErrTimeout, stage.Name()+" stage exceeded run deadline"))
		}
	}

	return results[0], results[1], results[2]
}

// runStage executes one stage with panic containment. A panicking stage
// degrades to a soft error like any other stage failure.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, sc StageContext) (result StageResult) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Errorw("Stage panicked", "stage", stage.Name(), "panic", r)
			result = emptyResult(stage.Name(), fmt.Errorf("stage panicked: %v", r))
		}
	}()
	return stage.Run(ctx, sc)
}

// aggregate builds the AnalysisRun record and collects the run's persisted
// updates and opportunities for alert evaluation
func (o *Orchestrator) aggregate(ctx context.Context, start time.Time, runDate time.Time, stages []StageResult) *RunReport {
	var stageErrors intel.StringSlice
	failed := 0
	for _, st := range stages {
		if st.Err != nil {
			failed++
			stageErrors = append(stageErrors, fmt.Sprintf("%s: %v", st.Stage, st.Err))
		}
	}

	market := stages[0]
	synthesis := stages[3]

	run := &intel.AnalysisRun{
		RunDate:                 runDate,
		FindingsCount:           market.Persisted,
		OpportunitiesIdentified: synthesis.Persisted,
		KeyInsights:             synthesis.Digest,
		Recommendations:         intel.StringSlice(synthesis.KeyInsights),
		ExecutionTimeSeconds:    time.Since(start).Seconds(),
		Status:                  intel.RunStatusCompleted,
		StageErrors:             stageErrors,
	}

	// Soft errors degrade; the run only fails when every stage failed and
	// there is nothing to aggregate
	if failed == len(stages) {
		run.Status = intel.RunStatusError
		run.KeyInsights = "all stages failed: " + strings.Join(stageErrors, "; ")
	}

	report := &RunReport{
		Run:           run,
		Stages:        stages,
		ExecutionTime: time.Since(start),
	}

	updates, err := o.store.CompetitorUpdatesSince(ctx, start, 200)
	if err != nil {
		o.log.Errorw("Failed to load run competitor updates", "error", err)
	} else {
		report.Updates = updates
	}

	opportunities, err := o.store.OpportunitiesSince(ctx, start, 100)
	if err != nil {
		o.log.Errorw("Failed to load run opportunities", "error", err)
	} else {
		report.Opportunities = opportunities
	}

	return report
}

// dispatch evaluates alerts and delivers notifications and events. Failures
// here are logged only; a lost delivery never fails the run.
func (o *Orchestrator) dispatch(ctx context.Context, report *RunReport) {
	report.Alerts = EvaluateAlerts(report)

	for _, alert := range report.Alerts {
		metrics.RecordAlert(alert.Source, string(alert.Impact))

		err := o.notifier.SendCriticalAlert(ctx, alert)
		if err != nil {
			o.log.Errorw("Failed to deliver critical alert", "title", alert.Title, "error", err)
		}
		metrics.RecordNotification("alert", err)

		if o.events != nil {
			if err := o.events.AlertRaised(ctx, alert); err != nil {
				o.log.Warnw("Failed to publish alert event", "error", err)
			}
		}
	}

	if err := o.notifier.SendDigest(ctx, report); err != nil {
		o.log.Errorw("Failed to deliver daily digest", "error", err)
		metrics.RecordNotification("digest", err)
	} else {
		metrics.RecordNotification("digest", nil)
	}

	if o.events != nil {
		if err := o.events.RunCompleted(ctx, report.Run); err != nil {
			o.log.Warnw("Failed to publish run event", "error", err)
		}
	}
}

// RunWeekly aggregates the last seven days of persisted records into one
// digest. No stages are re-run and no new canonical records are written.
func (o *Orchestrator) RunWeekly(ctx context.Context) (*WeeklyReport, error) {
	const window = 7 * 24 * time.Hour
	since := time.Now().UTC().Add(-window)

	report := &WeeklyReport{
		Period:      window,
		GeneratedAt: time.Now().UTC(),
	}

	var err error
	if report.Runs, err = o.store.RunsSince(ctx, since); err != nil {
		return nil, errors.Wrap(err, "failed to load weekly runs")
	}
	if report.Findings, err = o.store.FindingsSince(ctx, since, 50); err != nil {
		return nil, errors.Wrap(err, "failed to load weekly findings")
	}
	if report.Updates, err = o.store.CompetitorUpdatesSince(ctx, since, 50); err != nil {
		return nil, errors.Wrap(err, "failed to load weekly competitor updates")
	}
	if report.Trends, err = o.store.TrendsWithMomentum(ctx, 0.5, since, 20); err != nil {
		return nil, errors.Wrap(err, "failed to load weekly trends")
	}
	if report.Opportunities, err = o.store.TopOpportunities(ctx, 0.6, 10); err != nil {
		return nil, errors.Wrap(err, "failed to load weekly opportunities")
	}

	report.Summary = summarize(window, report.Runs, report.Findings, report.Updates, report.Trends, report.Opportunities)
	report.Briefing = weeklyBriefing(report)

	if err := o.notifier.SendWeeklyDigest(ctx, report); err != nil {
		o.log.Errorw("Failed to deliver weekly digest", "error", err)
		metrics.RecordNotification("digest", err)
	} else {
		metrics.RecordNotification("digest", nil)
	}

	metrics.RecordPipelineRun("weekly", "completed", time.Since(report.GeneratedAt))
	return report, nil
}

func weeklyBriefing(report *WeeklyReport) string {
	var b strings.Builder
	s := report.Summary
	fmt.Fprintf(&b, "Weekly intelligence summary (%d runs)\n", len(s.RecentRuns))
	fmt.Fprintf(&b, "Findings: %d, competitor updates: %d (%d critical), trends with momentum: %d (%d accelerating)\n",
		s.FindingsCount, s.UpdatesCount, s.CriticalUpdates, s.TrendsCount, s.HighMomentumTrends)

	if len(s.CategoryBreakdown) > 0 {
		categories := make([]string, 0, len(s.CategoryBreakdown))
		for c := range s.CategoryBreakdown {
			categories = append(categories, string(c))
		}
		sort.Strings(categories)
		b.WriteString("By category:")
		for _, c := range categories {
			fmt.Fprintf(&b, " %s=%d", c, s.CategoryBreakdown[intel.Category(c)])
		}
		b.WriteString("\n")
	}

	if len(report.Opportunities) > 0 {
		b.WriteString("Top opportunities:\n")
		for i, opp := range report.Opportunities {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "  %d. %s (score %.2f, %s priority)\n", i+1, opp.Title, opp.Score, opp.Priority)
		}
	}
	return b.String()
}

// RunQuick runs a focused market and trend lookup for an ad-hoc topic. The
// results are returned directly and never persisted.
func (o *Orchestrator) RunQuick(ctx context.Context, topic string) (*QuickReport, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "topic must not be empty")
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	report := &QuickReport{Topic: topic, GeneratedAt: start.UTC()}

	marketAnalysis, marketErr := o.market.AnalyzeTopic(runCtx, topic)
	if marketErr != nil {
		o.log.Warnw("Quick market analysis failed", "topic", topic, "error", marketErr)
	} else {
		report.MarketAnalysis = marketAnalysis
	}

	convergence, trendErr := o.trend.AnalyzeConvergence(runCtx, topic)
	if trendErr != nil {
		o.log.Warnw("Quick trend convergence failed", "topic", topic, "error", trendErr)
	} else {
		report.TrendConvergence = convergence
	}

	if marketErr != nil && trendErr != nil {
		metrics.RecordPipelineRun("quick", "error", time.Since(start))
		return nil, errors.Wrap(errors.ErrExternal, "quick analysis produced no results")
	}

	metrics.RecordPipelineRun("quick", "completed", time.Since(start))
	return report, nil
}

// Summary reports stored intelligence over the given trailing window
func (o *Orchestrator) Summary(ctx context.Context, window time.Duration) (*Summary, error) {
	since := time.Now().UTC().Add(-window)

	findings, err := o.store.FindingsSince(ctx, since, 500)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load findings")
	}
	updates, err := o.store.CompetitorUpdatesSince(ctx, since, 500)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load competitor updates")
	}
	trends, err := o.store.TrendsWithMomentum(ctx, 0.0, since, 500)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load trends")
	}
	opportunities, err := o.store.TopOpportunities(ctx, 0.7, 10)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load opportunities")
	}
	runs, err := o.store.RunsSince(ctx, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load runs")
	}

	return summarize(window, runs, findings, updates, trends, opportunities), nil
}

// summarize condenses loaded records into the aggregate shared by the weekly
// briefing and the summary command
func summarize(window time.Duration, runs []intel.AnalysisRun, findings []intel.MarketFinding, updates []intel.CompetitorUpdate, trends []intel.Trend, opportunities []intel.Opportunity) *Summary {
	s := &Summary{
		Window:            window,
		FindingsCount:     len(findings),
		UpdatesCount:      len(updates),
		TrendsCount:       len(trends),
		CategoryBreakdown: make(map[intel.Category]int),
		TopOpportunities:  opportunities,
		RecentRuns:        runs,
	}
	for _, f := range findings {
		s.CategoryBreakdown[f.Category]++
	}
	for _, u := range updates {
		if u.ImpactLevel == intel.ImpactHigh || u.ImpactLevel == intel.ImpactCritical {
			s.CriticalUpdates++
		}
	}
	for _, tr := range trends {
		if tr.MomentumScore >= highMomentumScore {
			s.HighMomentumTrends++
		}
	}
	return s
}
