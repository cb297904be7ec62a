package ratelimit

import (
	"context"
	"testing"
	"time"

	"dominion-workers/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, limit, window, logger.NewTestLogger(t)), mr
}

func TestLimiter_BlocksAfterLimitWithinWindow(t *testing.T) {
	limiter, _ := newMiniredisLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "legal-draft")
		require.NoError(t, err)
		assert.True(t, allowed, "call %d", i+1)
	}

	allowed, err := limiter.Allow(ctx, "legal-draft")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiter_CategoriesAreIndependent(t *testing.T) {
	limiter, _ := newMiniredisLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "esg-audit")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "esg-audit")
	assert.False(t, allowed)

	allowed, _ = limiter.Allow(ctx, "lp-query")
	assert.True(t, allowed)
}

func TestLimiter_WindowResets(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t, 1, 30*time.Second)
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "governance-sim")
	assert.True(t, allowed)
	assert.Equal(t, 30*time.Second, mr.TTL(Key("governance-sim")))

	allowed, _ = limiter.Allow(ctx, "governance-sim")
	assert.False(t, allowed)

	mr.FastForward(31 * time.Second)

	allowed, _ = limiter.Allow(ctx, "governance-sim")
	assert.True(t, allowed)
}

func TestLimiter_FailsOpenOnRedisError(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t, 5, time.Minute)
	mr.SetError("LOADING Redis is loading the dataset in memory")

	allowed, err := limiter.Allow(context.Background(), "regops-analysis")

	assert.True(t, allowed)
	assert.Error(t, err)
}

func TestLimiter_CountsAndExpiresInOneTransaction(t *testing.T) {
	client, mock := redismock.NewClientMock()
	key := Key("lp-query")
	for i := int64(1); i <= 2; i++ {
		mock.ExpectTxPipeline()
		mock.ExpectIncr(key).SetVal(i)
		mock.ExpectExpireNX(key, time.Minute).SetVal(i == 1)
		mock.ExpectTxPipelineExec()
	}

	limiter := New(client, 5, time.Minute, nil)
	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(context.Background(), "lp-query")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLimiter_WindowIsNotExtendedByLaterCalls(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t, 10, 30*time.Second)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "legal-draft")
	require.NoError(t, err)
	mr.FastForward(10 * time.Second)
	_, err = limiter.Allow(ctx, "legal-draft")
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, mr.TTL(Key("legal-draft")))
}

func TestLimiter_RecoversCounterWithoutExpiry(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t, 2, time.Minute)
	ctx := context.Background()
	key := Key("esg-audit")
	require.NoError(t, mr.Set(key, "5"))
	require.Zero(t, mr.TTL(key))

	allowed, err := limiter.Allow(ctx, "esg-audit")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(61 * time.Second)

	allowed, err = limiter.Allow(ctx, "esg-audit")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	var nilLimiter *Limiter
	allowed, err := nilLimiter.Allow(context.Background(), "legal-draft")
	assert.True(t, allowed)
	assert.NoError(t, err)
	assert.Equal(t, "unlimited", nilLimiter.Describe())

	client, mock := redismock.NewClientMock()
	zero := New(client, 0, time.Minute, nil)
	allowed, err = zero.Allow(context.Background(), "legal-draft")
	assert.True(t, allowed)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "10 calls per 1m0s", New(client, 10, time.Minute, nil).Describe())
}
