package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCacheRepo struct{}

func (failingCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("redis down")
}

func (failingCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("redis down")
}

func (failingCacheRepo) DeleteByPattern(context.Context, string) error {
	return errors.New("redis down")
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 0, nil, true)
	ctx := context.Background()
	key := WeeklyKey("2024-01-01", "2024-01-07", "class-1", "")

	var dest map[string]int
	hit, err := svc.Get(ctx, key, &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, key, map[string]int{"total": 3}, 0))
	hit, err = svc.Get(ctx, key, &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, dest["total"])

	svc.InvalidateWeekly(ctx)
	hit, _ = svc.Get(ctx, key, &dest)
	assert.False(t, hit)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(2), snapshot.CacheMisses)
}

func TestCacheServiceDisabledAndNil(t *testing.T) {
	var nilService *CacheService
	assert.False(t, nilService.Enabled())
	hit, err := nilService.Get(context.Background(), "weekly:x", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, hit)
	nilService.InvalidateWeekly(context.Background())

	disabled := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, false)
	assert.NoError(t, disabled.Set(context.Background(), "weekly:x", 1, 0))
	hit, _ = disabled.Get(context.Background(), "weekly:x", new(int))
	assert.False(t, hit)
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	svc := NewCacheService(failingCacheRepo{}, nil, time.Minute, nil, true)

	hit, err := svc.Get(context.Background(), "weekly:x", new(int))
	assert.Error(t, err)
	assert.False(t, hit)
	assert.Error(t, svc.Set(context.Background(), "weekly:x", 1, 0))
	svc.InvalidateWeekly(context.Background())
}

func TestWeeklyKey(t *testing.T) {
	assert.Equal(t, "weekly:2024-01-01:2024-01-07:class=c1:user=u1", WeeklyKey("2024-01-01", "2024-01-07", "c1", "u1"))
}
