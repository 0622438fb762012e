package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultKeyPrefix = "ledger:account"

// RedisOptions tunes the redsync mutexes. Expiry must exceed the posting
// timeout so a lock is never lost mid-posting.
type RedisOptions struct {
	KeyPrefix  string
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		KeyPrefix:  defaultKeyPrefix,
		Expiry:     10 * time.Second,
		Tries:      64,
		RetryDelay: 50 * time.Millisecond,
	}
}

// Redis locks accounts across service instances with redsync.
type Redis struct {
	rs     *redsync.Redsync
	opts   RedisOptions
	logger *zap.Logger
}

func NewRedis(client redis.UniversalClient, opts RedisOptions, logger *zap.Logger) *Redis {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}
}

func (r *Redis) key(accountId int64) string {
	return fmt.Sprintf("%s:%d", r.opts.KeyPrefix, accountId)
}

func (r *Redis) Lock(ctx context.Context, accountIds ...int64) (func(), error) {
	held := make([]*redsync.Mutex, 0, len(accountIds))

	for _, id := range Ordered(accountIds) {
		m := r.rs.NewMutex(r.key(id),
			redsync.WithExpiry(r.opts.Expiry),
			redsync.WithTries(r.opts.Tries),
			redsync.WithRetryDelay(r.opts.RetryDelay),
		)
		if err := m.LockContext(ctx); err != nil {
			r.release(held)
			return nil, fmt.Errorf("lock account %d: %w", id, err)
		}
		held = append(held, m)
	}

	var once sync.Once
	return func() { once.Do(func() { r.release(held) }) }, nil
}

func (r *Redis) release(held []*redsync.Mutex) {
	for i := len(held) - 1; i >= 0; i-- {
		if ok, err := held[i].UnlockContext(context.Background()); err != nil || !ok {
			r.logger.Warn("account lock release failed", zap.String("key", held[i].Name()), zap.Error(err))
		}
	}
}
