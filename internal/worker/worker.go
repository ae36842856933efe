package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/opinionetl/internal/clock"
	"github.com/smallbiznis/opinionetl/internal/config"
	"github.com/smallbiznis/opinionetl/internal/metricsexport"
	"github.com/smallbiznis/opinionetl/internal/observability/metrics"
	"github.com/smallbiznis/opinionetl/internal/pipeline/domain"
	"github.com/smallbiznis/opinionetl/internal/runlock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidConfig = errors.New("invalid_worker_config")
	ErrRunFailed     = errors.New("pipeline_run_failed")
	ErrRunSkipped    = errors.New("pipeline_run_skipped")
)

// Runner executes one pipeline pass.
type Runner interface {
	Execute(ctx context.Context) domain.ExecutionSummary
}

type Params struct {
	fx.In

	Runner  Runner
	Lock    *runlock.RunLock
	Config  config.Config
	Log     *zap.Logger
	Pusher  metricsexport.Pusher     `optional:"true"`
	Metrics *metrics.PipelineMetrics `optional:"true"`
	Clock   clock.Clock              `optional:"true"`
}

type Worker struct {
	runner  Runner
	lock    *runlock.RunLock
	pusher  metricsexport.Pusher
	metrics *metrics.PipelineMetrics
	clock   clock.Clock
	log     *zap.Logger

	interval time.Duration
	timeout  time.Duration
}

func New(p Params) (*Worker, error) {
	if p.Runner == nil {
		return nil, ErrInvalidConfig
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Worker{
		runner:   p.Runner,
		lock:     p.Lock,
		pusher:   p.Pusher,
		metrics:  p.Metrics,
		clock:    clk,
		log:      log.Named("worker").With(zap.String("component", "worker")),
		interval: p.Config.Worker.RunInterval,
		timeout:  p.Config.Worker.RunTimeout,
	}, nil
}

// Interval is the delay between runs; zero means a single run.
func (w *Worker) Interval() time.Duration { return w.interval }

// RunOnce runs the pipeline under the run lock, logs the report and pushes metrics.
// It returns ErrRunSkipped when another worker holds the lock and ErrRunFailed when
// the run finished unsuccessfully.
func (w *Worker) RunOnce(parent context.Context) (domain.ExecutionSummary, error) {
	start := w.clock.Now()
	w.log.Info("worker.run.start", zap.Duration("timeout", w.timeout))

	release, acquired, err := w.lock.Acquire(parent)
	if err != nil {
		w.log.Error("worker.run.lock_failed", zap.Error(err))
		return domain.ExecutionSummary{}, err
	}
	if !acquired {
		w.metrics.IncRunSkipped()
		w.push(parent)
		w.log.Info("worker.run.skipped", zap.String("lock_key", w.lock.Key()))
		return domain.ExecutionSummary{}, ErrRunSkipped
	}
	defer func() {
		_ = release(context.WithoutCancel(parent))
	}()

	ctx := parent
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, w.timeout)
		defer cancel()
	}

	summary := w.runner.Execute(ctx)
	w.log.Info("worker.run.report", zap.String("run_id", summary.RunID), zap.String("report", summary.Report()))
	w.push(parent)

	w.log.Info("worker.run.finish",
		zap.String("run_id", summary.RunID),
		zap.String("status", summary.Status()),
		zap.Int("records_processed", summary.TotalRecordsProcessed),
		zap.Duration("elapsed", w.clock.Now().Sub(start)),
	)
	if !summary.Success {
		return summary, fmt.Errorf("%w: run %s", ErrRunFailed, summary.RunID)
	}
	return summary, nil
}

// RunForever runs on every tick until ctx is done.
func (w *Worker) RunForever(ctx context.Context) {
	interval := w.interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, ErrRunSkipped) {
			w.log.Warn("worker run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) push(ctx context.Context) {
	if w.pusher == nil || w.metrics == nil {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.pusher.Push(pushCtx, w.metrics.Registry()); err != nil {
		w.log.Warn("worker.metrics.push_failed", zap.Error(err))
	}
}
