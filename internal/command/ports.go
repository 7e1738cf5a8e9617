package command

import (
	"context"

	"github.com/eaglebank/ledger/internal/models"
)

// AccountStore is the durable account storage the command services write through.
type AccountStore interface {
	FindByID(ctx context.Context, id int64) (*models.Account, error)
	FindByNumber(ctx context.Context, accountNumber string) (*models.Account, error)
	// FindLastIssuedNumber reports false when no account has been issued yet.
	FindLastIssuedNumber(ctx context.Context) (string, bool, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	FindAllByUser(ctx context.Context, userID int64) ([]models.Account, error)
	Save(ctx context.Context, account *models.Account) error
}

// TransactionStore is the append-only ledger.
type TransactionStore interface {
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	Save(ctx context.Context, tx *models.Transaction) error
}

type UserFinder interface {
	FindUserByID(ctx context.Context, id int64) (*models.AccountUser, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// TransactionViewCache receives the read view of every new ledger entry.
type TransactionViewCache interface {
	CacheTransactionView(ctx context.Context, view *models.TransactionView)
}

// Transactor runs fn as one atomic unit against the stores. Store calls made with
// the ctx handed to fn take part in it.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// directTransactor runs fn as is, for stores with no transaction support.
type directTransactor struct{}

func (directTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
