package workers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock worker for testing
type mockWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{
		BaseWorker: NewBaseWorker(name, interval, enabled),
	}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) GetRunCount() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("daily-analysis", 100*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	err := scheduler.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, scheduler.IsRunning())

	// Let it run for a bit
	time.Sleep(250 * time.Millisecond)

	err = scheduler.Stop()
	require.NoError(t, err)
	assert.False(t, scheduler.IsRunning())

	// Immediate run plus at least one tick
	assert.GreaterOrEqual(t, worker.GetRunCount(), 2)
}

func TestScheduler_DisabledWorkerNeverRuns(t *testing.T) {
	scheduler := NewScheduler()

	enabled := newMockWorker("weekly-digest", 100*time.Millisecond, true)
	disabled := newMockWorker("retention-purge", 100*time.Millisecond, false)

	scheduler.RegisterWorker(enabled)
	scheduler.RegisterWorker(disabled)

	err := scheduler.Start(context.Background())
	require.NoError(t, err)

	time.Sleep(250 * time.Millisecond)

	err = scheduler.Stop()
	require.NoError(t, err)

	assert.Greater(t, enabled.GetRunCount(), 0)
	assert.Equal(t, 0, disabled.GetRunCount())
}

func TestScheduler_WorkerErrorDoesNotStopLoop(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("daily-analysis", 50*time.Millisecond, true)
	worker.runFunc = func(ctx context.Context) error {
		return fmt.Errorf("analysis run failed")
	}
	scheduler.RegisterWorker(worker)

	err := scheduler.Start(context.Background())
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)

	err = scheduler.Stop()
	require.NoError(t, err)

	// Failures keep the ticker loop alive
	assert.GreaterOrEqual(t, worker.GetRunCount(), 2)
}

func TestScheduler_WorkerPanicIsContained(t *testing.T) {
	scheduler := NewScheduler()

	panicking := newMockWorker("daily-analysis", 50*time.Millisecond, true)
	panicking.runFunc = func(ctx context.Context) error {
		panic("stage blew up")
	}
	healthy := newMockWorker("weekly-digest", 50*time.Millisecond, true)

	scheduler.RegisterWorker(panicking)
	scheduler.RegisterWorker(healthy)

	err := scheduler.Start(context.Background())
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)

	err = scheduler.Stop()
	require.NoError(t, err)

	assert.Greater(t, healthy.GetRunCount(), 0)
}

func TestScheduler_ContextCancellation(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("daily-analysis", 100*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	ctx, cancel := context.WithCancel(context.Background())
	err := scheduler.Start(ctx)
	require.NoError(t, err)

	cancel()
	time.Sleep(200 * time.Millisecond)

	// Stop still works after the parent context is cancelled
	err = scheduler.Stop()
	require.NoError(t, err)
}

func TestScheduler_CannotStartTwice(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("daily-analysis", 100*time.Millisecond, true))

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))

	err := scheduler.Start(ctx)
	assert.Error(t, err)

	_ = scheduler.Stop()
}

func TestScheduler_RegisterAfterStartRejected(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("daily-analysis", 100*time.Millisecond, true))

	require.NoError(t, scheduler.Start(context.Background()))
	defer func() { _ = scheduler.Stop() }()

	scheduler.RegisterWorker(newMockWorker("late-worker", 100*time.Millisecond, true))
	assert.Len(t, scheduler.GetWorkers(), 1)
}

func TestBaseWorkerHealth(t *testing.T) {
	w := NewBaseWorker("daily-analysis", time.Hour, true)

	w.RecordRun(2 * time.Second)
	w.RecordError(fmt.Errorf("run failed"), 4*time.Second)

	health := w.Health()
	assert.Equal(t, int64(2), health.RunCount)
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.Equal(t, 3*time.Second, health.AvgDuration)
	assert.Error(t, health.LastError)
	assert.True(t, health.Enabled)
	assert.False(t, health.LastRun.IsZero())
}
