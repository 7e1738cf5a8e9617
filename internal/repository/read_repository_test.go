package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/models"
	"github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// Cache hits never touch PostgreSQL, so a nil *sql.DB is enough here.
func TestAccountReadRepository_ServesFromCache(t *testing.T) {
	client, mr := newTestRedis(t)
	repo := NewAccountReadRepository(nil, client, time.Minute, nil)
	ctx := context.Background()

	registered := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.CacheAccountView(ctx, &models.AccountView{
		ID: 12, UserID: 3, AccountNumber: "1000000004",
		Status: models.AccountStatusActive, Balance: 500, RegisteredAt: registered,
	})
	assert.True(t, mr.Exists("account:view:12"))
	assert.Greater(t, mr.TTL("account:view:12"), time.Duration(0))

	view, err := repo.GetByID(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(3), view.UserID, "owner must survive the cache round trip")
	assert.Equal(t, "1000000004", view.AccountNumber)
	assert.Equal(t, int64(500), view.Balance)
	assert.True(t, registered.Equal(view.RegisteredAt))

	repo.InvalidateAccountView(ctx, 12)
	assert.False(t, mr.Exists("account:view:12"))
}

func TestTransactionReadRepository_ServesFromCache(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewTransactionReadRepository(nil, client, 0, nil)
	ctx := context.Background()

	repo.CacheTransactionView(ctx, &models.TransactionView{
		TransactionID: "8b1d0e0a6a4f4e5d9c3b2a1908f7e6d5", AccountNumber: "1000000000",
		Type: models.TransactionTypeCancel, Result: models.TransactionResultSuccess, Amount: 2340, BalanceSnapshot: 10000,
	})

	view, err := repo.GetByTransactionID(ctx, "8b1d0e0a6a4f4e5d9c3b2a1908f7e6d5")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeCancel, view.Type)
	assert.Equal(t, int64(10000), view.BalanceSnapshot)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
	}{
		{name: "unique violation", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), kind: apperr.InvalidRequest},
		{name: "other constraint", err: &pq.Error{Code: "23503"}, kind: apperr.InfrastructureUnavailable},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), kind: apperr.InfrastructureUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
