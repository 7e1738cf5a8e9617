package lock

import (
	"context"

	"go.uber.org/zap"
)

// AccountKey is the lock key for one account number.
func AccountKey(accountNumber string) string {
	return KeyPrefix + accountNumber
}

// AccountGuard runs work while holding the lock of one account. It is the only place
// that knows how lock keys are derived and which timeouts apply.
type AccountGuard struct {
	locker Locker
	opts   Options
	logger *zap.Logger
}

func NewAccountGuard(locker Locker, opts Options, logger *zap.Logger) *AccountGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountGuard{locker: locker, opts: opts, logger: logger}
}

// WithAccountLock acquires the account's lock, runs fn and releases the lock on every
// exit path, including a panic inside fn. fn never runs without the lock.
func (g *AccountGuard) WithAccountLock(ctx context.Context, accountNumber string, fn func(ctx context.Context) error) error {
	return g.WithKey(ctx, AccountKey(accountNumber), fn)
}

// WithKey is WithAccountLock for keys that are not account numbers.
func (g *AccountGuard) WithKey(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	handle, err := g.locker.Acquire(ctx, key, g.opts)
	if err != nil {
		return err
	}
	defer func() {
		// Release even if the request context was cancelled mid-mutation.
		if err := handle.Release(context.WithoutCancel(ctx)); err != nil {
			g.logger.Warn("lock release failed", zap.String("lock_key", key), zap.Error(err))
		}
	}()
	return fn(ctx)
}

// Guarded runs fn under the account's lock and passes its result through.
func Guarded[T any](ctx context.Context, g *AccountGuard, accountNumber string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := g.WithAccountLock(ctx, accountNumber, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
