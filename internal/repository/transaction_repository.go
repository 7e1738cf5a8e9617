package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/models"
)

const transactionSelect = `
	SELECT t.id, t.transaction_id, t.account_id, a.account_number, t.type, t.result,
	       t.amount, t.balance_snapshot, t.transacted_at, t.created_at
	FROM transactions t
	JOIN accounts a ON a.id = t.account_id
`

// TransactionWriteRepository appends transaction records. Records are write-once.
type TransactionWriteRepository struct {
	db *sql.DB
}

func NewTransactionWriteRepository(db *sql.DB) *TransactionWriteRepository {
	return &TransactionWriteRepository{db: db}
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx             models.Transaction
		txType, result string
	)
	err := row.Scan(
		&tx.ID, &tx.TransactionID, &tx.AccountID, &tx.AccountNumber, &txType, &result,
		&tx.Amount, &tx.BalanceSnapshot, &tx.TransactedAt, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Type = models.TransactionType(txType)
	tx.Result = models.TransactionResult(result)
	return &tx, nil
}

func findTransaction(ctx context.Context, db querier, transactionID string) (*models.Transaction, error) {
	tx, err := scanTransaction(db.QueryRowContext(ctx, transactionSelect+` WHERE t.transaction_id = $1`, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.TransactionNotFound)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get transaction: %w", err))
	}
	return tx, nil
}

func (r *TransactionWriteRepository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return findTransaction(ctx, conn(ctx, r.db), transactionID)
}

// Save inserts the record and assigns its ID.
func (r *TransactionWriteRepository) Save(ctx context.Context, tx *models.Transaction) error {
	if tx.ID != 0 {
		return apperr.Newf(apperr.Internal, "transaction %s is already stored", tx.TransactionID)
	}
	query := `
		INSERT INTO transactions (transaction_id, account_id, type, result, amount, balance_snapshot, transacted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		tx.TransactionID, tx.AccountID, string(tx.Type), string(tx.Result),
		tx.Amount, tx.BalanceSnapshot, tx.TransactedAt, tx.CreatedAt,
	).Scan(&tx.ID)
	if err != nil {
		return classify(fmt.Errorf("failed to create transaction: %w", err))
	}
	return nil
}
