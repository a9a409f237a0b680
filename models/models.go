package models

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/courseloom/marketplace/config/database"
	"github.com/courseloom/marketplace/config/redis"
)

const ERROR_NOT_FOUND string = "record not found"

// Store owns every read and write against the marketplace tables. The unique
// indexes declared on the models are the idempotency enforcers: duplicate
// webhook deliveries and concurrent identity upserts collapse at the store
// level, not through application-level check-then-insert.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{
		db: db,
	}
}

// Migrate creates the marketplace tables and their indexes.
func (store *Store) Migrate() error {
	return store.db.Connection.AutoMigrate(
		&User{},
		&Course{},
		&Purchase{},
		&Subscription{},
	)
}

// RateLimitDecision reports whether a request is allowed and, when denied,
// how long the caller must wait before retrying.
type RateLimitDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(key string) (RateLimitDecision, error)
}

// RateLimitStore counts requests per key in a fixed window backed by redis,
// so the limit holds across processes.
type RateLimitStore struct {
	context context.Context
	db      *redis.RedisDB
	limit   int64
	window  time.Duration
}

func NewRateLimitStore(ctx context.Context, redis *redis.RedisDB, limit int, window time.Duration) *RateLimitStore {
	return &RateLimitStore{
		context: ctx,
		db:      redis,
		limit:   int64(limit),
		window:  window,
	}
}

// rateLimitScript increments a window counter and arms its expiry in one
// round trip, so no key can ever end up counting without a deadline.
var rateLimitScript = goredis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	if count == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return count
`)

func (store *RateLimitStore) Allow(key string) (RateLimitDecision, error) {
	count, err := rateLimitScript.Run(store.context, store.db.Client, []string{key}, store.window.Milliseconds()).Int64()
	if err != nil {
		return RateLimitDecision{}, err
	}

	if count > store.limit {
		retryAfter, err := store.db.Client.PTTL(store.context, key).Result()
		if err != nil || retryAfter <= 0 {
			// A key without expiry would deny forever, fall back to the window.
			retryAfter = store.window
		}
		return RateLimitDecision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return RateLimitDecision{Allowed: true}, nil
}

func (store *RateLimitStore) Close() error {
	return store.db.Client.Close()
}
