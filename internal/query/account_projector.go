package query

import (
	"context"

	"github.com/eaglebank/ledger/internal/events"
	"go.uber.org/zap"
)

type AccountViewInvalidator interface {
	InvalidateAccountView(ctx context.Context, id int64)
}

// accountRef is the part every account-affecting payload shares.
type accountRef struct {
	AccountID int64 `json:"accountId"`
}

// AccountProjector keeps the cached account views in step with the write side.
// Every replica's mutations arrive on the ledger stream, so one consumer group
// covers them all. Dropping a view is idempotent, so redelivery is harmless.
type AccountProjector struct {
	views  AccountViewInvalidator
	logger *zap.Logger
}

func NewAccountProjector(views AccountViewInvalidator, logger *zap.Logger) *AccountProjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountProjector{views: views, logger: logger}
}

// HandleLedgerEvent is an events.Handler.
func (p *AccountProjector) HandleLedgerEvent(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.AccountCreated, events.AccountClosed, events.BalanceUsed, events.BalanceCancelled:
	default:
		// transaction.failed leaves the balance alone
		return nil
	}

	ref, err := events.Decode[accountRef](event)
	if err != nil {
		return err
	}
	p.views.InvalidateAccountView(ctx, ref.AccountID)
	p.logger.Debug("account view invalidated", zap.String("event", event.Type), zap.Int64("account_id", ref.AccountID))
	return nil
}
