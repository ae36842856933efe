package worker

import (
	"context"
	"errors"

	pipelineservice "github.com/smallbiznis/opinionetl/internal/pipeline/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("worker",
	fx.Provide(provideRunner),
	fx.Provide(New),
	fx.Invoke(Register),
)

func provideRunner(o *pipelineservice.Orchestrator) Runner { return o }

// Register starts the worker with the host. With no interval the worker runs once and
// then shuts the host down, exiting non-zero when the run failed.
func Register(lc fx.Lifecycle, shutdowner fx.Shutdowner, w *Worker, log *zap.Logger) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			go func() {
				defer close(done)
				if w.Interval() > 0 {
					w.RunForever(ctx)
					return
				}
				_, err := w.RunOnce(ctx)
				if shutdownErr := shutdowner.Shutdown(fx.ExitCode(exitCode(err))); shutdownErr != nil {
					log.Warn("worker shutdown failed", zap.Error(shutdownErr))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})
}

func exitCode(err error) int {
	if err == nil || errors.Is(err, ErrRunSkipped) {
		return 0
	}
	return 1
}
