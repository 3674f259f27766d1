package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/appointments/internal/logger"
	"github.com/Domenick1991/appointments/internal/metrics"
)

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestService_RunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "reminders"}
	failing := &testJob{name: "low_stock", err: errors.New("boom")}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(failing, ok),
		Lock:     NewLocalLock(),
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
}

func TestService_SkipsCycleWhenLockHeld(t *testing.T) {
	lock := NewLocalLock()
	job := &testJob{name: "reminders"}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(job), Lock: lock})
	require.NoError(t, err)

	held, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Zero(t, job.runs)

	require.NoError(t, lock.Release(context.Background()))
	require.NoError(t, service.RunOnce(context.Background()))
	assert.Equal(t, 1, job.runs)
}

func TestNewService_RequiresLoggerAndLock(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: NewLocalLock()})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	assert.Error(t, err)
}

type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestRedisLock_OnlyOwnerReleases(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{values: map[string]string{}}

	first, err := NewRedisLock(store, "lock:sweeps", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "lock:sweeps", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "lock:sweeps")

	require.NoError(t, first.Release(ctx))
	assert.NotContains(t, store.values, "lock:sweeps")
}

func TestNewRedisLock_Validation(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(&memoryStore{values: map[string]string{}}, "", time.Minute)
	assert.Error(t, err)
}
