// Package lock serializes balance mutations across service replicas. Locks live in
// Redis (RedLock via redsync) so every replica contends for the same key; an
// in-process mutex would only protect a single replica.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyPrefix namespaces ledger locks away from other users of the same Redis.
const KeyPrefix = "ACLK:"

var (
	// ErrLockNotHeld is returned by Release when the lease already expired.
	ErrLockNotHeld = errors.New("lock was not held or already expired")
	// ErrEmptyKey is returned when acquiring with a blank key.
	ErrEmptyKey = errors.New("lock key cannot be empty")
)

// Options controls a single acquisition.
type Options struct {
	// WaitTimeout bounds how long Acquire keeps retrying a contended key.
	WaitTimeout time.Duration
	// LeaseTimeout is enforced by Redis and frees the key if the holder dies.
	LeaseTimeout time.Duration
	// RetryDelay is the pause between attempts while waiting.
	RetryDelay time.Duration
}

// DefaultOptions waits up to 1s for the lock and leases it for 15s.
func DefaultOptions() Options {
	return Options{
		WaitTimeout:  time.Second,
		LeaseTimeout: 15 * time.Second,
		RetryDelay:   50 * time.Millisecond,
	}
}

func (o Options) tries() int {
	if o.RetryDelay <= 0 {
		return 1
	}
	return int(o.WaitTimeout/o.RetryDelay) + 1
}

func (o Options) validate() error {
	if o.LeaseTimeout <= 0 {
		return fmt.Errorf("lock lease timeout must be positive, got %s", o.LeaseTimeout)
	}
	if o.WaitTimeout < 0 || o.RetryDelay < 0 {
		return fmt.Errorf("lock wait timeout and retry delay cannot be negative")
	}
	return nil
}

// Handle is a held lock.
type Handle interface {
	// Release unlocks. Only the first call has an effect.
	Release(ctx context.Context) error
}

// Locker acquires named advisory locks from a coordination service.
//
// Acquire returns an apperr.LockBusy error when the key stayed contended for the
// whole wait window, and apperr.InfrastructureUnavailable when the coordination
// service could not be reached. Callers must not proceed in either case.
type Locker interface {
	Acquire(ctx context.Context, key string, opts Options) (Handle, error)
}

// RedisLocker implements Locker on top of redsync.
type RedisLocker struct {
	redsync *redsync.Redsync
	logger  *zap.Logger
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client goredislib.UniversalClient, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		redsync: redsync.New(goredis.NewPool(client)),
		logger:  logger,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, opts Options) (Handle, error) {
	if strings.TrimSpace(key) == "" {
		return nil, apperr.Wrap(apperr.InvalidRequest, ErrEmptyKey)
	}
	if err := opts.validate(); err != nil {
		return nil, apperr.Wrap(apperr.InvalidRequest, err)
	}

	mutex := l.redsync.NewMutex(key,
		redsync.WithExpiry(opts.LeaseTimeout),
		redsync.WithTries(opts.tries()),
		redsync.WithRetryDelay(opts.RetryDelay),
	)

	l.logger.Debug("trying lock", zap.String("lock_key", key))

	if err := mutex.LockContext(ctx); err != nil {
		switch {
		case isContention(err):
			l.logger.Warn("lock acquisition timed out", zap.String("lock_key", key), zap.Duration("wait", opts.WaitTimeout))
			return nil, apperr.Wrap(apperr.LockBusy, err)
		case ctx.Err() != nil:
			l.logger.Warn("lock acquisition abandoned", zap.String("lock_key", key), zap.Error(ctx.Err()))
			return nil, apperr.Wrap(apperr.LockBusy, ctx.Err())
		default:
			l.logger.Error("lock service unavailable", zap.String("lock_key", key), zap.Error(err))
			return nil, apperr.Wrap(apperr.InfrastructureUnavailable, fmt.Errorf("acquire %s: %w", key, err))
		}
	}

	l.logger.Debug("lock acquired", zap.String("lock_key", key))
	return &redisHandle{key: key, mutex: mutex, logger: l.logger}, nil
}

// isContention separates "someone else holds it" from transport failures.
func isContention(err error) bool {
	var taken *redsync.ErrTaken
	if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
		return true
	}
	return strings.Contains(err.Error(), "lock already taken")
}

type redisHandle struct {
	key    string
	mutex  *redsync.Mutex
	logger *zap.Logger
	once   sync.Once
}

func (h *redisHandle) Release(ctx context.Context) error {
	var err error
	h.once.Do(func() {
		ok, unlockErr := h.mutex.UnlockContext(ctx)
		switch {
		case unlockErr != nil && leaseLost(unlockErr):
			h.logger.Warn("lock lease expired before release", zap.String("lock_key", h.key))
			err = ErrLockNotHeld
		case unlockErr != nil:
			h.logger.Error("failed to release lock", zap.String("lock_key", h.key), zap.Error(unlockErr))
			err = apperr.Wrap(apperr.InfrastructureUnavailable, fmt.Errorf("release %s: %w", h.key, unlockErr))
		case !ok:
			h.logger.Warn("lock lease expired before release", zap.String("lock_key", h.key))
			err = ErrLockNotHeld
		default:
			h.logger.Debug("lock released", zap.String("lock_key", h.key))
		}
	})
	return err
}

// leaseLost reports an unlock that found the key expired or owned by someone else.
func leaseLost(err error) bool {
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrLockAlreadyExpired) || errors.As(err, &taken) {
		return true
	}
	return strings.Contains(err.Error(), "already expired")
}
