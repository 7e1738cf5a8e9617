package query

import (
	"context"

	"github.com/eaglebank/ledger/internal/cqrs"
	"github.com/eaglebank/ledger/internal/models"
)

type TransactionReader interface {
	GetByTransactionID(ctx context.Context, transactionID string) (*models.TransactionView, error)
}

type TransactionQueryService struct {
	readRepo TransactionReader
}

func NewTransactionQueryService(readRepo TransactionReader) *TransactionQueryService {
	return &TransactionQueryService{readRepo: readRepo}
}

func (s *TransactionQueryService) QueryTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	return s.readRepo.GetByTransactionID(ctx, q.TransactionID)
}
