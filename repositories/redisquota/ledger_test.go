package redisquota

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/internship-placement/config"
	"github.com/upb/internship-placement/repositories"
	"go.uber.org/zap"
)

// setupRepository connects to REDIS_ADDR when set, otherwise to an in-process miniredis
func setupRepository(t *testing.T) *Repository {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client, err := NewClient(ctx, config.RedisConfig{Addr: addr})
	require.NoError(t, err)

	prefix := "test:" + uuid.NewString() + ":"
	repo := New(client, prefix, zap.NewNop())
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
		_ = client.Close()
	})
	return repo
}

func TestRepository_Keys(t *testing.T) {
	repo := New(nil, "placement:quota:", zap.NewNop())
	studentID := uuid.MustParse("7a1f4b2c-0d3e-4f5a-8b6c-9d0e1f2a3b4c")

	assert.Equal(t, "placement:quota:cap", repo.capKey())
	assert.Equal(t, "placement:quota:count:7a1f4b2c-0d3e-4f5a-8b6c-9d0e1f2a3b4c", repo.countKey(studentID))
}

func TestRepository_ReserveAgainstCap(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	studentID := uuid.New()

	_, err := repo.GetCap(ctx)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = repo.Reserve(ctx, studentID)
	assert.ErrorIs(t, err, repositories.ErrQuotaExhausted)

	require.NoError(t, repo.EnsureCap(ctx, 2))
	require.NoError(t, repo.EnsureCap(ctx, 7))
	cap, err := repo.GetCap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cap)

	for want := 1; want <= 2; want++ {
		count, err := repo.Reserve(ctx, studentID)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	_, err = repo.Reserve(ctx, studentID)
	assert.ErrorIs(t, err, repositories.ErrQuotaExhausted)

	count, err := repo.GetCount(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	unseen, err := repo.GetCount(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, unseen)
}

func TestRepository_ConcurrentReserve(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.SetCap(ctx, 3))
	studentID := uuid.New()

	var wg sync.WaitGroup
	var granted int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Reserve(ctx, studentID); err == nil {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), granted)
}

func TestRepository_HealthCheckAndClose(t *testing.T) {
	server := miniredis.RunT(t)
	client, err := NewClient(context.Background(), config.RedisConfig{Addr: server.Addr()})
	require.NoError(t, err)
	repo := New(client, "test:", zap.NewNop())
	ctx := context.Background()

	assert.NoError(t, repo.HealthCheck(ctx))

	require.NoError(t, repo.Close())
	assert.Error(t, repo.HealthCheck(ctx))
}
