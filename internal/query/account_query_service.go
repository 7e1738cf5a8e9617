package query

import (
	"context"

	"github.com/eaglebank/ledger/internal/cqrs"
	"github.com/eaglebank/ledger/internal/models"
)

type AccountReader interface {
	GetByID(ctx context.Context, id int64) (*models.AccountView, error)
	ListByUserID(ctx context.Context, userID int64) ([]models.AccountSummary, error)
}

type UserFinder interface {
	FindUserByID(ctx context.Context, id int64) (*models.AccountUser, error)
}

// AccountQueryService serves account reads. Reads take no lock; a view may trail
// the latest mutation until the projector catches up.
type AccountQueryService struct {
	readRepo AccountReader
	users    UserFinder
}

func NewAccountQueryService(readRepo AccountReader, users UserFinder) *AccountQueryService {
	return &AccountQueryService{readRepo: readRepo, users: users}
}

func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	return s.readRepo.GetByID(ctx, q.AccountID)
}

// ListAccounts returns every account the user holds, closed ones included.
func (s *AccountQueryService) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.AccountSummary, error) {
	if _, err := s.users.FindUserByID(ctx, q.UserID); err != nil {
		return nil, err
	}
	return s.readRepo.ListByUserID(ctx, q.UserID)
}
