package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/models"
)

// UserRepository looks up account owners. Users are registered elsewhere.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindUserByID(ctx context.Context, id int64) (*models.AccountUser, error) {
	query := `SELECT id, name, created_at, updated_at FROM account_users WHERE id = $1`

	var user models.AccountUser
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.UserNotFound)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get user: %w", err))
	}
	return &user, nil
}
