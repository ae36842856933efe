package runlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type memoryLocker struct {
	mu      sync.Mutex
	holders map[string]string
	seq     int
	failErr error
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{holders: map[string]string{}}
}

func (m *memoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := validate(key, ttl); err != nil {
		return "", false, err
	}
	if m.failErr != nil {
		return "", false, m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.holders[key]; held {
		return "", false, nil
	}
	m.seq++
	token := string(rune('a' + m.seq))
	m.holders[key] = token
	return token, true, nil
}

func (m *memoryLocker) Release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holders[key] == token {
		delete(m.holders, key)
	}
	return nil
}

func TestRunLockAcquire(t *testing.T) {
	ctx := context.Background()
	locker := newMemoryLocker()
	first := New(locker, "opinionetl", time.Minute, nil)
	second := New(locker, "opinionetl", time.Minute, nil)

	release, ok, err := first.Acquire(ctx)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "opinionetl:pipeline:run:opinionetl", first.Key())

	_, ok, err = second.Acquire(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, release(ctx))
	release, ok, err = second.Acquire(ctx)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, release(ctx))
}

func TestRunLockDisabled(t *testing.T) {
	lock := New(nil, "", time.Minute, nil)
	assert.False(t, lock.Enabled())

	release, ok, err := lock.Acquire(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, release(context.Background()))
}

func TestRunLockErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("locker failure", func(t *testing.T) {
		locker := newMemoryLocker()
		locker.failErr = errors.New("connection refused")
		_, ok, err := New(locker, "opinionetl", time.Minute, nil).Acquire(ctx)
		assert.False(t, ok)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("non positive ttl", func(t *testing.T) {
		_, ok, err := New(newMemoryLocker(), "opinionetl", 0, nil).Acquire(ctx)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrInvalidLockTTL)
	})
}

func TestRedisLockerWithoutClient(t *testing.T) {
	assert.Nil(t, NewRedisLocker(nil))

	var locker *RedisLocker
	_, ok, err := locker.TryLock(context.Background(), "key", time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, locker.Release(context.Background(), "key", "token"))

	_, _, err = locker.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrEmptyLockKey)
}
