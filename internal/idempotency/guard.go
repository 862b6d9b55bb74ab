// Package idempotency keeps two requests carrying the same client key from
// running a payment at the same time. The ledger's unique transaction id is
// the durable guarantee; Redis only short-circuits in-flight duplicates and
// recent replays.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/redis"
)

var (
	ErrAlreadyProcessed = errors.New("idempotency key already processed")
	ErrInFlight         = errors.New("a request with this idempotency key is in progress")
	ErrUnavailable      = errors.New("idempotency store unavailable")
)

type Config struct {
	LockTTL time.Duration

	ProcessedTTL time.Duration

	LockKeyPrefix string

	ProcessedKeyPrefix string
}

func DefaultConfig() Config {
	return Config{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		LockKeyPrefix:      "payment:lock:",
		ProcessedKeyPrefix: "payment:done:",
	}
}

type Guard struct {
	redis  redis.RedisAdapter
	config Config
}

func NewGuard(redisAdapter redis.RedisAdapter, config Config) *Guard {
	return &Guard{
		redis:  redisAdapter,
		config: config,
	}
}

// Lock is held by the request that won the key. Only the holder's token can
// release it, so a lock that expired and was re-taken is left alone.
type Lock struct {
	Key      string
	token    []byte
	acquired bool
}

// Acquire claims key for the caller. ErrAlreadyProcessed means a recent
// request with this key completed; ErrInFlight means another one is running.
// Redis failures come back wrapped in ErrUnavailable.
func (g *Guard) Acquire(ctx context.Context, key string) (*Lock, error) {
	exists, err := g.redis.Exist(ctx, g.config.ProcessedKeyPrefix+key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if exists > 0 {
		logger.Debug("Idempotency key already processed", "key", key)
		return nil, ErrAlreadyProcessed
	}

	token := []byte(uuid.NewString())
	acquired, err := g.redis.SetNX(ctx, g.config.LockKeyPrefix+key, token, g.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !acquired {
		logger.Info("Idempotency key locked by another request", "key", key)
		return nil, ErrInFlight
	}

	logger.Debug("Idempotency lock acquired", "key", key, "lock_ttl", g.config.LockTTL)
	return &Lock{Key: key, token: token, acquired: true}, nil
}

// Complete records that the key produced contributionID and releases the lock.
func (g *Guard) Complete(ctx context.Context, lock *Lock, contributionID string) error {
	if lock == nil {
		return nil
	}

	err := g.redis.Set(ctx, g.config.ProcessedKeyPrefix+lock.Key, []byte(contributionID), g.config.ProcessedTTL)
	if err != nil {
		logger.Warn("Failed to mark idempotency key processed", "key", lock.Key, "error", err)
	}
	if relErr := g.Release(ctx, lock); relErr != nil && err == nil {
		err = relErr
	}
	return err
}

func (g *Guard) Release(ctx context.Context, lock *Lock) error {
	if lock == nil || !lock.acquired {
		return nil
	}

	released, err := g.redis.DelIfEquals(ctx, g.config.LockKeyPrefix+lock.Key, lock.token)
	if err != nil {
		logger.Warn("Failed to release idempotency lock", "key", lock.Key, "error", err)
		return err
	}
	if !released {
		logger.Warn("Idempotency lock expired before release", "key", lock.Key)
	}

	lock.acquired = false
	return nil
}
