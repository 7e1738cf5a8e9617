package command

import (
	"context"
	"time"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/cqrs"
	"github.com/eaglebank/ledger/internal/events"
	"github.com/eaglebank/ledger/internal/models"
	"go.uber.org/zap"
)

// cancelWindowYears is how far back a transaction may be cancelled.
const cancelWindowYears = 1

// TransactionCommandService is the balance mutation engine. It assumes the caller
// holds the account's lock for UseBalance and CancelBalance; GuardedTransactionService
// is the wrapper that takes it.
type TransactionCommandService struct {
	accounts     AccountStore
	transactions TransactionStore
	users        UserFinder
	views        TransactionViewCache
	publisher    EventPublisher
	transactor   Transactor
	now          func() time.Time
	logger       *zap.Logger
}

func NewTransactionCommandService(
	accounts AccountStore,
	transactions TransactionStore,
	users UserFinder,
	views TransactionViewCache,
	publisher EventPublisher,
	opts ...Option,
) *TransactionCommandService {
	s := newSettings(opts)
	return &TransactionCommandService{
		accounts:     accounts,
		transactions: transactions,
		users:        users,
		views:        views,
		publisher:    publisher,
		transactor:   s.transactor,
		now:          s.now,
		logger:       s.logger,
	}
}

// UseBalance debits the account. Checks run in order and the first failure wins:
// user, account, owner, status, balance.
func (s *TransactionCommandService) UseBalance(ctx context.Context, cmd cqrs.UseBalanceCommand) (*models.Transaction, error) {
	if _, err := s.users.FindUserByID(ctx, cmd.UserID); err != nil {
		return nil, err
	}
	account, err := s.accounts.FindByNumber(ctx, cmd.AccountNumber)
	if err != nil {
		return nil, err
	}
	if !account.OwnedBy(cmd.UserID) {
		return nil, apperr.New(apperr.OwnerMismatch)
	}
	if !account.IsActive() {
		return nil, apperr.New(apperr.AccountClosed)
	}

	now := s.now()
	if err := account.Use(cmd.Amount, now); err != nil {
		return nil, err
	}
	return s.commit(ctx, account, models.TransactionTypeUse, cmd.Amount, now)
}

// CancelBalance credits the amount of an earlier transaction back to the same
// account. Checks run in order: original transaction, account, transaction/account
// match, exact amount, cancel window. The original's type and result are not
// checked, and nothing stops the same transaction from being cancelled twice.
func (s *TransactionCommandService) CancelBalance(ctx context.Context, cmd cqrs.CancelBalanceCommand) (*models.Transaction, error) {
	original, err := s.transactions.FindByTransactionID(ctx, cmd.TransactionID)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.FindByNumber(ctx, cmd.AccountNumber)
	if err != nil {
		return nil, err
	}
	if original.AccountID != account.ID {
		return nil, apperr.New(apperr.TransactionAccountMismatch)
	}
	if original.Amount != cmd.Amount {
		return nil, apperr.New(apperr.PartialCancelNotAllowed)
	}
	now := s.now()
	if original.TransactedAt.Before(now.AddDate(-cancelWindowYears, 0, 0)) {
		return nil, apperr.New(apperr.CancelWindowExpired)
	}

	if err := account.Cancel(cmd.Amount, now); err != nil {
		return nil, err
	}
	return s.commit(ctx, account, models.TransactionTypeCancel, cmd.Amount, now)
}

// RecordFailedUse appends a FAIL entry for a debit that did not go through. The
// balance is left untouched.
func (s *TransactionCommandService) RecordFailedUse(ctx context.Context, cmd cqrs.RecordFailedTransactionCommand) (*models.Transaction, error) {
	return s.recordFailed(ctx, models.TransactionTypeUse, cmd)
}

// RecordFailedCancel is RecordFailedUse for credit-backs.
func (s *TransactionCommandService) RecordFailedCancel(ctx context.Context, cmd cqrs.RecordFailedTransactionCommand) (*models.Transaction, error) {
	return s.recordFailed(ctx, models.TransactionTypeCancel, cmd)
}

func (s *TransactionCommandService) recordFailed(ctx context.Context, txType models.TransactionType, cmd cqrs.RecordFailedTransactionCommand) (*models.Transaction, error) {
	// Usually called after the request already failed, possibly because the
	// client went away.
	ctx = context.WithoutCancel(ctx)

	account, err := s.accounts.FindByNumber(ctx, cmd.AccountNumber)
	if err != nil {
		return nil, err
	}
	tx := models.NewTransaction(account, txType, models.TransactionResultFail, cmd.Amount, s.now())
	if err := s.transactions.Save(ctx, tx); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, tx, events.TransactionFailed)
	return tx, nil
}

// commit persists the mutated account and its SUCCESS ledger entry in one
// transaction. Once started it runs to completion even if the caller's context is
// cancelled.
func (s *TransactionCommandService) commit(ctx context.Context, account *models.Account, txType models.TransactionType, amount int64, at time.Time) (*models.Transaction, error) {
	ctx = context.WithoutCancel(ctx)

	tx := models.NewTransaction(account, txType, models.TransactionResultSuccess, amount, at)
	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.accounts.Save(ctx, account); err != nil {
			return err
		}
		return s.transactions.Save(ctx, tx)
	})
	if err != nil {
		s.logger.Error("balance mutation not committed",
			zap.String("account_number", account.AccountNumber),
			zap.String("type", string(txType)),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		return nil, err
	}

	eventType := events.BalanceUsed
	if txType == models.TransactionTypeCancel {
		eventType = events.BalanceCancelled
	}
	s.afterWrite(ctx, tx, eventType)
	return tx, nil
}

func (s *TransactionCommandService) afterWrite(ctx context.Context, tx *models.Transaction, eventType string) {
	if s.views != nil {
		s.views.CacheTransactionView(ctx, models.TransactionToView(tx))
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.LedgerEventsStream, eventType, events.BalanceChangedEvent{
		TransactionID:   tx.TransactionID,
		AccountID:       tx.AccountID,
		AccountNumber:   tx.AccountNumber,
		Type:            string(tx.Type),
		Result:          string(tx.Result),
		Amount:          tx.Amount,
		BalanceSnapshot: tx.BalanceSnapshot,
	}); err != nil {
		s.logger.Warn("failed to publish ledger event", zap.String("event", eventType), zap.Error(err))
	}
}
