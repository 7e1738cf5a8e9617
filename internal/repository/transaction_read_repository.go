package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/eaglebank/ledger/internal/models"
	ledgerredis "github.com/eaglebank/ledger/internal/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const transactionViewKeyPrefix = "transaction:view:"

// TransactionReadRepository serves transaction lookups. Transactions never change
// once written, so a cached view is never stale.
type TransactionReadRepository struct {
	db    *sql.DB
	cache *ledgerredis.ViewCache[models.TransactionView]
}

func NewTransactionReadRepository(db *sql.DB, client goredis.UniversalClient, ttl time.Duration, logger *zap.Logger) *TransactionReadRepository {
	return &TransactionReadRepository{
		db:    db,
		cache: ledgerredis.NewViewCache[models.TransactionView](client, ttl, logger),
	}
}

func (r *TransactionReadRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.TransactionView, error) {
	if view, ok := r.cache.Get(ctx, transactionViewKeyPrefix+transactionID); ok {
		return view, nil
	}

	tx, err := findTransaction(ctx, r.db, transactionID)
	if err != nil {
		return nil, err
	}

	view := models.TransactionToView(tx)
	r.CacheTransactionView(ctx, view)
	return view, nil
}

func (r *TransactionReadRepository) CacheTransactionView(ctx context.Context, view *models.TransactionView) {
	r.cache.Set(ctx, transactionViewKeyPrefix+view.TransactionID, view)
}
