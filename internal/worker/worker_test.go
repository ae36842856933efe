package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/opinionetl/internal/config"
	"github.com/smallbiznis/opinionetl/internal/observability/metrics"
	"github.com/smallbiznis/opinionetl/internal/pipeline/domain"
	"github.com/smallbiznis/opinionetl/internal/runlock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type fakeRunner struct {
	calls       atomic.Int32
	success     bool
	sawDeadline atomic.Bool
}

func (r *fakeRunner) Execute(ctx context.Context) domain.ExecutionSummary {
	r.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		r.sawDeadline.Store(true)
	}
	state := domain.StateCompleted
	if !r.success {
		state = domain.StateFailed
	}
	return domain.ExecutionSummary{RunID: "42", Success: r.success, State: state}
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	err      error
	released int
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if l.held {
		return "", false, nil
	}
	l.held = true
	return "token", true, nil
}

func (l *fakeLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.released++
	return nil
}

type fakePusher struct {
	pushes atomic.Int32
	err    error
}

func (p *fakePusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	p.pushes.Add(1)
	return p.err
}

func newTestWorker(t *testing.T, runner Runner, locker runlock.Locker, pusher *fakePusher, cfg config.Config) (*Worker, *metrics.PipelineMetrics) {
	t.Helper()
	m := metrics.NewPipelineMetrics(prometheus.NewRegistry(), metrics.Config{Environment: "test"})
	p := Params{
		Runner:  runner,
		Lock:    runlock.New(locker, "opinionetl", time.Minute, zap.NewNop()),
		Config:  cfg,
		Log:     zap.NewNop(),
		Metrics: m,
	}
	if pusher != nil {
		p.Pusher = pusher
	}
	w, err := New(p)
	assert.NoError(t, err)
	return w, m
}

func counterValue(t *testing.T, m *metrics.PipelineMetrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	assert.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestRunOnce(t *testing.T) {
	t.Run("successful run releases the lock and pushes", func(t *testing.T) {
		runner := &fakeRunner{success: true}
		locker := &fakeLocker{}
		pusher := &fakePusher{}
		w, _ := newTestWorker(t, runner, locker, pusher, config.Config{})

		summary, err := w.RunOnce(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, "42", summary.RunID)
		assert.Equal(t, int32(1), runner.calls.Load())
		assert.False(t, runner.sawDeadline.Load())
		assert.Equal(t, 1, locker.released)
		assert.Equal(t, int32(1), pusher.pushes.Load())
	})

	t.Run("failed run", func(t *testing.T) {
		w, _ := newTestWorker(t, &fakeRunner{}, nil, &fakePusher{err: errors.New("push down")}, config.Config{})

		_, err := w.RunOnce(context.Background())

		assert.ErrorIs(t, err, ErrRunFailed)
		assert.Equal(t, 1, exitCode(err))
	})

	t.Run("lock held elsewhere skips the run", func(t *testing.T) {
		runner := &fakeRunner{success: true}
		w, m := newTestWorker(t, runner, &fakeLocker{held: true}, &fakePusher{}, config.Config{})

		_, err := w.RunOnce(context.Background())

		assert.ErrorIs(t, err, ErrRunSkipped)
		assert.Equal(t, 0, exitCode(err))
		assert.Equal(t, int32(0), runner.calls.Load())
		assert.Equal(t, float64(1), counterValue(t, m, "opinionetl_worker_lock_skipped_total"))
	})

	t.Run("lock error", func(t *testing.T) {
		runner := &fakeRunner{success: true}
		w, _ := newTestWorker(t, runner, &fakeLocker{err: errors.New("redis down")}, nil, config.Config{})

		_, err := w.RunOnce(context.Background())

		assert.ErrorContains(t, err, "redis down")
		assert.Equal(t, int32(0), runner.calls.Load())
	})

	t.Run("run timeout bounds the pipeline context", func(t *testing.T) {
		runner := &fakeRunner{success: true}
		cfg := config.Config{Worker: config.WorkerConfig{RunTimeout: time.Minute}}
		w, _ := newTestWorker(t, runner, nil, nil, cfg)

		_, err := w.RunOnce(context.Background())

		assert.NoError(t, err)
		assert.True(t, runner.sawDeadline.Load())
	})
}

func TestNewRequiresRunner(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

type fakeLifecycle struct {
	hooks []fx.Hook
}

func (l *fakeLifecycle) Append(h fx.Hook) { l.hooks = append(l.hooks, h) }

type fakeShutdowner struct {
	called chan struct{}
}

func (s *fakeShutdowner) Shutdown(...fx.ShutdownOption) error {
	close(s.called)
	return nil
}

func TestRegisterRunOnceShutsDownHost(t *testing.T) {
	runner := &fakeRunner{success: true}
	w, _ := newTestWorker(t, runner, nil, nil, config.Config{})
	lc := &fakeLifecycle{}
	shutdowner := &fakeShutdowner{called: make(chan struct{})}

	Register(lc, shutdowner, w, zap.NewNop())
	assert.Len(t, lc.hooks, 1)
	assert.NoError(t, lc.hooks[0].OnStart(context.Background()))

	select {
	case <-shutdowner.called:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not shut the host down")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, lc.hooks[0].OnStop(stopCtx))
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestRegisterIntervalRunsUntilStopped(t *testing.T) {
	runner := &fakeRunner{success: true}
	cfg := config.Config{Worker: config.WorkerConfig{RunInterval: time.Hour}}
	w, _ := newTestWorker(t, runner, nil, nil, cfg)
	lc := &fakeLifecycle{}
	shutdowner := &fakeShutdowner{called: make(chan struct{})}

	Register(lc, shutdowner, w, zap.NewNop())
	assert.NoError(t, lc.hooks[0].OnStart(context.Background()))

	assert.Eventually(t, func() bool { return runner.calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, lc.hooks[0].OnStop(stopCtx))

	select {
	case <-shutdowner.called:
		t.Fatal("interval worker must not shut the host down")
	default:
	}
}
