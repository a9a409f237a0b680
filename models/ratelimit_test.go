package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloom/marketplace/config/redis"
	. "github.com/courseloom/marketplace/models"
)

func setupRateLimitStore(t *testing.T, limit int, window time.Duration) (*RateLimitStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRateLimitStore(context.Background(), &redis.RedisDB{Client: client}, limit, window)
	return store, mr
}

func TestRateLimitStoreAllow(t *testing.T) {
	t.Run("should allow requests up to the limit and then deny", func(t *testing.T) {
		store, _ := setupRateLimitStore(t, 3, time.Minute)

		for i := 0; i < 3; i++ {
			decision, err := store.Allow("checkout:user123")
			require.NoError(t, err)
			assert.True(t, decision.Allowed)
		}

		decision, err := store.Allow("checkout:user123")
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Greater(t, decision.RetryAfter, time.Duration(0))
		assert.LessOrEqual(t, decision.RetryAfter, time.Minute)
	})

	t.Run("should count keys independently", func(t *testing.T) {
		store, _ := setupRateLimitStore(t, 1, time.Minute)

		decision, err := store.Allow("checkout:user123")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)

		decision, err = store.Allow("checkout:user456")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("should reset the counter once the window elapses", func(t *testing.T) {
		store, mr := setupRateLimitStore(t, 1, time.Minute)

		decision, err := store.Allow("checkout:user123")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)

		decision, err = store.Allow("checkout:user123")
		require.NoError(t, err)
		assert.False(t, decision.Allowed)

		mr.FastForward(time.Minute)

		decision, err = store.Allow("checkout:user123")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("should arm the expiry together with the first increment", func(t *testing.T) {
		store, mr := setupRateLimitStore(t, 5, time.Minute)

		_, err := store.Allow("checkout:user123")
		require.NoError(t, err)

		ttl := mr.TTL("checkout:user123")
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})

	t.Run("should fall back to the window when a denied key has no expiry", func(t *testing.T) {
		store, mr := setupRateLimitStore(t, 1, time.Minute)

		// A counter left behind without a deadline must not deny forever.
		require.NoError(t, mr.Set("checkout:user123", "5"))

		decision, err := store.Allow("checkout:user123")
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, time.Minute, decision.RetryAfter)
	})
}
