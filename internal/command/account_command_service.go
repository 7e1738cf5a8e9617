package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/cqrs"
	"github.com/eaglebank/ledger/internal/events"
	"github.com/eaglebank/ledger/internal/lock"
	"github.com/eaglebank/ledger/internal/models"
	"go.uber.org/zap"
)

const (
	// FirstAccountNumber is issued when no account exists yet.
	FirstAccountNumber = "1000000000"
	accountNumberWidth = len(FirstAccountNumber)

	// accountNumberLockKey serialises number allocation across replicas.
	accountNumberLockKey = lock.KeyPrefix + "account-number-sequence"
)

// AccountCommandService opens and closes accounts.
type AccountCommandService struct {
	accounts  AccountStore
	users     UserFinder
	guard     *lock.AccountGuard
	publisher EventPublisher
	now       func() time.Time
	logger    *zap.Logger
}

func NewAccountCommandService(
	accounts AccountStore,
	users UserFinder,
	guard *lock.AccountGuard,
	publisher EventPublisher,
	opts ...Option,
) *AccountCommandService {
	s := newSettings(opts)
	return &AccountCommandService{
		accounts:  accounts,
		users:     users,
		guard:     guard,
		publisher: publisher,
		now:       s.now,
		logger:    s.logger,
	}
}

// CreateAccount opens an ACTIVE account with the next free account number. The
// per-user cap and the allocation both run under the sequence lock, so two
// concurrent creations can neither share a number nor overshoot the cap.
func (s *AccountCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	if cmd.InitialBalance < 0 {
		return nil, apperr.New(apperr.InvalidRequest)
	}
	if _, err := s.users.FindUserByID(ctx, cmd.UserID); err != nil {
		return nil, err
	}

	var account *models.Account
	err := s.guard.WithKey(ctx, accountNumberLockKey, func(ctx context.Context) error {
		count, err := s.accounts.CountByUser(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		if count >= models.MaxAccountsPerUser {
			return apperr.New(apperr.TooManyAccounts)
		}

		number, err := s.nextAccountNumber(ctx)
		if err != nil {
			return err
		}
		account = models.NewAccount(cmd.UserID, number, cmd.InitialBalance, s.now())
		return s.accounts.Save(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.Int64("user_id", account.UserID),
		zap.String("account_number", account.AccountNumber),
	)
	s.publish(ctx, events.AccountCreated, events.AccountCreatedEvent{
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		UserID:        account.UserID,
		Balance:       account.Balance,
	})
	return account, nil
}

func (s *AccountCommandService) nextAccountNumber(ctx context.Context) (string, error) {
	last, found, err := s.accounts.FindLastIssuedNumber(ctx)
	if err != nil {
		return "", err
	}
	if !found {
		return FirstAccountNumber, nil
	}
	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, fmt.Errorf("malformed account number %q: %w", last, err))
	}
	next := strconv.FormatInt(n+1, 10)
	if len(next) != accountNumberWidth {
		return "", apperr.Newf(apperr.Internal, "account number space exhausted after %s", last)
	}
	return next, nil
}

// CloseAccount moves an account to CLOSED. It runs under the account's lock so it
// cannot interleave with a debit or credit-back.
func (s *AccountCommandService) CloseAccount(ctx context.Context, cmd cqrs.CloseAccountCommand) (*models.Account, error) {
	if _, err := s.users.FindUserByID(ctx, cmd.UserID); err != nil {
		return nil, err
	}

	account, err := lock.Guarded(ctx, s.guard, cmd.AccountNumber, func(ctx context.Context) (*models.Account, error) {
		account, err := s.accounts.FindByNumber(ctx, cmd.AccountNumber)
		if err != nil {
			return nil, err
		}
		if !account.OwnedBy(cmd.UserID) {
			return nil, apperr.New(apperr.OwnerMismatch)
		}
		if err := account.Close(s.now()); err != nil {
			return nil, err
		}
		if err := s.accounts.Save(ctx, account); err != nil {
			return nil, err
		}
		return account, nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.AccountClosed, events.AccountClosedEvent{
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		UserID:        account.UserID,
	})
	return account, nil
}

func (s *AccountCommandService) publish(ctx context.Context, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.LedgerEventsStream, eventType, data); err != nil {
		s.logger.Warn("failed to publish ledger event", zap.String("event", eventType), zap.Error(err))
	}
}
