package command

import (
	"context"

	"github.com/eaglebank/ledger/internal/cqrs"
	"github.com/eaglebank/ledger/internal/lock"
	"github.com/eaglebank/ledger/internal/models"
)

// GuardedTransactionService runs every balance mutation of the engine while holding
// the lock of the account it touches.
type GuardedTransactionService struct {
	engine *TransactionCommandService
	guard  *lock.AccountGuard
}

func NewGuardedTransactionService(engine *TransactionCommandService, guard *lock.AccountGuard) *GuardedTransactionService {
	return &GuardedTransactionService{engine: engine, guard: guard}
}

func (s *GuardedTransactionService) UseBalance(ctx context.Context, cmd cqrs.UseBalanceCommand) (*models.Transaction, error) {
	return lock.Guarded(ctx, s.guard, cmd.AccountNumber, func(ctx context.Context) (*models.Transaction, error) {
		return s.engine.UseBalance(ctx, cmd)
	})
}

func (s *GuardedTransactionService) CancelBalance(ctx context.Context, cmd cqrs.CancelBalanceCommand) (*models.Transaction, error) {
	return lock.Guarded(ctx, s.guard, cmd.AccountNumber, func(ctx context.Context) (*models.Transaction, error) {
		return s.engine.CancelBalance(ctx, cmd)
	})
}

// RecordFailedUse does not mutate the balance, so it does not take the lock.
func (s *GuardedTransactionService) RecordFailedUse(ctx context.Context, cmd cqrs.RecordFailedTransactionCommand) (*models.Transaction, error) {
	return s.engine.RecordFailedUse(ctx, cmd)
}

func (s *GuardedTransactionService) RecordFailedCancel(ctx context.Context, cmd cqrs.RecordFailedTransactionCommand) (*models.Transaction, error) {
	return s.engine.RecordFailedCancel(ctx, cmd)
}
