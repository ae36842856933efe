package runlock

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/opinionetl/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPipelineRun = "opinionetl:pipeline:run:%s"

// RunLock guards one pipeline run. Without a locker every Acquire succeeds.
type RunLock struct {
	locker Locker
	key    string
	ttl    time.Duration
	log    *zap.Logger
}

// ReleaseFunc gives the lock back. It is safe to call when nothing was acquired.
type ReleaseFunc func(ctx context.Context) error

func New(locker Locker, appName string, ttl time.Duration, log *zap.Logger) *RunLock {
	if log == nil {
		log = zap.NewNop()
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		appName = "opinionetl"
	}
	return &RunLock{
		locker: locker,
		key:    fmt.Sprintf(keyPipelineRun, appName),
		ttl:    ttl,
		log:    log.Named("runlock"),
	}
}

// Provide builds the run lock from config. No redis address means a local, always-free lock.
func Provide(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *RunLock {
	if !cfg.RedisEnabled() {
		return New(nil, cfg.AppName, cfg.Redis.LockTTL, log)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return New(NewRedisLocker(client), cfg.AppName, cfg.Redis.LockTTL, log)
}

func (l *RunLock) Enabled() bool {
	return l != nil && l.locker != nil
}

func (l *RunLock) Key() string { return l.key }

// Acquire reports false without error when another worker holds the lock.
func (l *RunLock) Acquire(ctx context.Context) (ReleaseFunc, bool, error) {
	noop := func(context.Context) error { return nil }
	if !l.Enabled() {
		return noop, true, nil
	}

	token, ok, err := l.locker.TryLock(ctx, l.key, l.ttl)
	if err != nil {
		return noop, false, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		l.log.Info("runlock.held_elsewhere", zap.String("key", l.key))
		return noop, false, nil
	}
	if ce := l.log.Check(zap.DebugLevel, "runlock.acquired"); ce != nil {
		ce.Write(zap.String("key", l.key), zap.Duration("ttl", l.ttl))
	}

	return func(ctx context.Context) error {
		if err := l.locker.Release(ctx, l.key, token); err != nil {
			l.log.Warn("runlock.release_failed", zap.String("key", l.key), zap.Error(err))
			return err
		}
		return nil
	}, true, nil
}
