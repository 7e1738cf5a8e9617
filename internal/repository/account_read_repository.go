package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/models"
	ledgerredis "github.com/eaglebank/ledger/internal/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const accountViewKeyPrefix = "account:view:"

// accountCacheEntry is the Redis representation of an account. Unlike
// models.AccountView it serialises UserID, so ownership checks can be served
// from the cache.
type accountCacheEntry struct {
	ID             int64                `json:"id"`
	UserID         int64                `json:"userId"`
	AccountNumber  string               `json:"accountNumber"`
	Status         models.AccountStatus `json:"accountStatus"`
	Balance        int64                `json:"balance"`
	RegisteredAt   time.Time            `json:"registeredAt"`
	UnregisteredAt *time.Time           `json:"unregisteredAt,omitempty"`
}

// AccountReadRepository serves account reads from Redis and falls back to
// PostgreSQL, warming the cache on every cold read. Listings always hit
// PostgreSQL.
type AccountReadRepository struct {
	db    *sql.DB
	cache *ledgerredis.ViewCache[accountCacheEntry]
}

func NewAccountReadRepository(db *sql.DB, client goredis.UniversalClient, ttl time.Duration, logger *zap.Logger) *AccountReadRepository {
	return &AccountReadRepository{
		db:    db,
		cache: ledgerredis.NewViewCache[accountCacheEntry](client, ttl, logger),
	}
}

func accountViewKey(id int64) string {
	return accountViewKeyPrefix + strconv.FormatInt(id, 10)
}

func (e *accountCacheEntry) toView() *models.AccountView {
	return &models.AccountView{
		ID:             e.ID,
		UserID:         e.UserID,
		AccountNumber:  e.AccountNumber,
		Status:         e.Status,
		Balance:        e.Balance,
		RegisteredAt:   e.RegisteredAt,
		UnregisteredAt: e.UnregisteredAt,
	}
}

// GetByID returns an AccountView, trying Redis first then PostgreSQL.
func (r *AccountReadRepository) GetByID(ctx context.Context, id int64) (*models.AccountView, error) {
	if entry, ok := r.cache.Get(ctx, accountViewKey(id)); ok {
		return entry.toView(), nil
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.AccountNotFound)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get account: %w", err))
	}

	view := models.AccountToView(account)
	r.CacheAccountView(ctx, view)
	return view, nil
}

// ListByUserID returns the number and balance of every account the user holds,
// closed ones included, oldest first.
func (r *AccountReadRepository) ListByUserID(ctx context.Context, userID int64) ([]models.AccountSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT account_number, balance FROM accounts WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list accounts: %w", err))
	}
	defer rows.Close()

	summaries := []models.AccountSummary{}
	for rows.Next() {
		var s models.AccountSummary
		if err := rows.Scan(&s.AccountNumber, &s.Balance); err != nil {
			return nil, classify(fmt.Errorf("failed to scan account: %w", err))
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to list accounts: %w", err))
	}
	return summaries, nil
}

// CacheAccountView stores or refreshes the Redis read model for an account.
func (r *AccountReadRepository) CacheAccountView(ctx context.Context, view *models.AccountView) {
	r.cache.Set(ctx, accountViewKey(view.ID), &accountCacheEntry{
		ID:             view.ID,
		UserID:         view.UserID,
		AccountNumber:  view.AccountNumber,
		Status:         view.Status,
		Balance:        view.Balance,
		RegisteredAt:   view.RegisteredAt,
		UnregisteredAt: view.UnregisteredAt,
	})
}

// InvalidateAccountView drops the cached view so the next read goes to PostgreSQL.
func (r *AccountReadRepository) InvalidateAccountView(ctx context.Context, id int64) {
	r.cache.Delete(ctx, accountViewKey(id))
}
