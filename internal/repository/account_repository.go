package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/models"
)

const accountColumns = `id, user_id, account_number, status, balance, registered_at, unregistered_at, created_at, updated_at`

// AccountWriteRepository handles all state-mutating operations for accounts.
// It operates exclusively against the PostgreSQL write store (source of truth).
type AccountWriteRepository struct {
	db *sql.DB
}

func NewAccountWriteRepository(db *sql.DB) *AccountWriteRepository {
	return &AccountWriteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		account        models.Account
		status         string
		unregisteredAt sql.NullTime
	)
	err := row.Scan(
		&account.ID, &account.UserID, &account.AccountNumber, &status, &account.Balance,
		&account.RegisteredAt, &unregisteredAt, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.Status = models.AccountStatus(status)
	if unregisteredAt.Valid {
		t := unregisteredAt.Time
		account.UnregisteredAt = &t
	}
	return &account, nil
}

func (r *AccountWriteRepository) findOne(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where
	account, err := scanAccount(conn(ctx, r.db).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.AccountNotFound)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get account: %w", err))
	}
	return account, nil
}

func (r *AccountWriteRepository) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *AccountWriteRepository) FindByNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	return r.findOne(ctx, "account_number = $1", accountNumber)
}

// FindLastIssuedNumber returns the highest account number issued so far. Numbers
// are fixed-width, so the lexical maximum is the numeric maximum.
func (r *AccountWriteRepository) FindLastIssuedNumber(ctx context.Context) (string, bool, error) {
	var number string
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT account_number FROM accounts ORDER BY account_number DESC LIMIT 1`).Scan(&number)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(fmt.Errorf("failed to get last account number: %w", err))
	}
	return number, true, nil
}

func (r *AccountWriteRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, classify(fmt.Errorf("failed to count accounts: %w", err))
	}
	return count, nil
}

func (r *AccountWriteRepository) FindAllByUser(ctx context.Context, userID int64) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list accounts: %w", err))
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, classify(fmt.Errorf("failed to scan account: %w", err))
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to list accounts: %w", err))
	}
	return accounts, nil
}

// Save inserts a new account (ID == 0) and assigns its ID, or updates the mutable
// columns of an existing one.
func (r *AccountWriteRepository) Save(ctx context.Context, account *models.Account) error {
	if account.ID == 0 {
		return r.create(ctx, account)
	}
	return r.update(ctx, account)
}

func (r *AccountWriteRepository) create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (user_id, account_number, status, balance, registered_at, unregistered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		account.UserID, account.AccountNumber, string(account.Status), account.Balance,
		account.RegisteredAt, account.UnregisteredAt, account.CreatedAt, account.UpdatedAt,
	).Scan(&account.ID)
	if err != nil {
		return classify(fmt.Errorf("failed to create account: %w", err))
	}
	return nil
}

func (r *AccountWriteRepository) update(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET status = $2, balance = $3, unregistered_at = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		account.ID, string(account.Status), account.Balance, account.UnregisteredAt, account.UpdatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to update account: %w", err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return classify(fmt.Errorf("failed to check rows affected: %w", err))
	}
	if rows == 0 {
		return apperr.New(apperr.AccountNotFound)
	}
	return nil
}
