//go:build integration

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/models"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupDB starts a disposable PostgreSQL container with the ledger schema applied.
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, EnsureSchema(ctx, db))
	require.NoError(t, EnsureSchema(ctx, db), "schema bootstrap must be repeatable")
	return db
}

func seedUser(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, db.QueryRow(`INSERT INTO account_users (name) VALUES ($1) RETURNING id`, name).Scan(&id))
	return id
}

func TestIntegration_AccountLifecycle(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	accounts := NewAccountWriteRepository(db)
	users := NewUserRepository(db)

	userID := seedUser(t, db, "Pobi")
	user, err := users.FindUserByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Pobi", user.Name)

	_, err = users.FindUserByID(ctx, userID+100)
	assert.True(t, apperr.Is(err, apperr.UserNotFound))

	_, found, err := accounts.FindLastIssuedNumber(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	now := time.Now().UTC().Truncate(time.Microsecond)
	account := models.NewAccount(userID, "1000000000", 10000, now)
	require.NoError(t, accounts.Save(ctx, account))
	require.NotZero(t, account.ID)

	second := models.NewAccount(userID, "1000000001", 0, now)
	require.NoError(t, accounts.Save(ctx, second))

	last, found, err := accounts.FindLastIssuedNumber(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1000000001", last)

	count, err := accounts.CountByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	dup := models.NewAccount(userID, "1000000001", 0, now)
	err = accounts.Save(ctx, dup)
	assert.True(t, apperr.Is(err, apperr.InvalidRequest), "duplicate account numbers must be rejected, got %v", err)

	require.NoError(t, account.Use(2340, now))
	require.NoError(t, accounts.Save(ctx, account))

	got, err := accounts.FindByNumber(ctx, "1000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(7660), got.Balance)
	assert.Nil(t, got.UnregisteredAt)

	require.NoError(t, second.Close(now))
	require.NoError(t, accounts.Save(ctx, second))
	closed, err := accounts.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusClosed, closed.Status)
	require.NotNil(t, closed.UnregisteredAt)

	all, err := accounts.FindAllByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = accounts.FindByNumber(ctx, "9999999999")
	assert.True(t, apperr.Is(err, apperr.AccountNotFound))
}

func TestIntegration_TransactionsAndReadModels(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	accounts := NewAccountWriteRepository(db)
	transactions := NewTransactionWriteRepository(db)
	accountReads := NewAccountReadRepository(db, client, time.Minute, nil)
	transactionReads := NewTransactionReadRepository(db, client, time.Minute, nil)

	userID := seedUser(t, db, "Crong")
	now := time.Now().UTC().Truncate(time.Microsecond)
	account := models.NewAccount(userID, "1000000000", 10000, now)
	require.NoError(t, accounts.Save(ctx, account))

	require.NoError(t, account.Use(2340, now))
	require.NoError(t, accounts.Save(ctx, account))
	tx := models.NewTransaction(account, models.TransactionTypeUse, models.TransactionResultSuccess, 2340, now)
	require.NoError(t, transactions.Save(ctx, tx))
	assert.Error(t, transactions.Save(ctx, tx), "records are write-once")

	stored, err := transactions.FindByTransactionID(ctx, tx.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "1000000000", stored.AccountNumber)
	assert.Equal(t, int64(7660), stored.BalanceSnapshot)

	view, err := transactionReads.GetByTransactionID(ctx, tx.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionResultSuccess, view.Result)
	assert.True(t, mr.Exists(transactionViewKeyPrefix+tx.TransactionID), "cold read must warm the cache")

	_, err = transactionReads.GetByTransactionID(ctx, "0000")
	assert.True(t, apperr.Is(err, apperr.TransactionNotFound))

	accountView, err := accountReads.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, accountView.UserID)
	assert.Equal(t, int64(7660), accountView.Balance)

	accountReads.InvalidateAccountView(ctx, account.ID)
	assert.False(t, mr.Exists(accountViewKey(account.ID)))

	summaries, err := accountReads.ListByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []models.AccountSummary{{AccountNumber: "1000000000", Balance: 7660}}, summaries)

	empty, err := accountReads.ListByUserID(ctx, userID+1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestIntegration_TxManagerCommitsBalanceAndLedgerTogether(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	accounts := NewAccountWriteRepository(db)
	transactions := NewTransactionWriteRepository(db)
	txManager := NewTxManager(db, 5*time.Second)

	userID := seedUser(t, db, "Honux")
	now := time.Now().UTC().Truncate(time.Microsecond)
	account := models.NewAccount(userID, "1000000000", 10000, now)
	require.NoError(t, accounts.Save(ctx, account))

	countLedger := func() int {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&n))
		return n
	}

	errLedgerDown := errors.New("ledger write failed")
	err := txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		debited := *account
		require.NoError(t, debited.Use(2340, now))
		require.NoError(t, accounts.Save(ctx, &debited))
		return errLedgerDown
	})
	assert.ErrorIs(t, err, errLedgerDown)

	got, err := accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.Balance, "rolled back balance write")
	assert.Equal(t, 0, countLedger())

	require.NoError(t, account.Use(2340, now))
	tx := models.NewTransaction(account, models.TransactionTypeUse, models.TransactionResultSuccess, 2340, now)
	err = txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := accounts.Save(ctx, account); err != nil {
			return err
		}
		// nested calls join the outer transaction
		return txManager.WithinTransaction(ctx, func(ctx context.Context) error {
			return transactions.Save(ctx, tx)
		})
	})
	require.NoError(t, err)

	got, err = accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7660), got.Balance)
	stored, err := transactions.FindByTransactionID(ctx, tx.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(7660), stored.BalanceSnapshot)
	assert.Equal(t, 1, countLedger())
}
