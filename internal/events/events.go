package events

import "time"

// Event types
const (
	AccountCreated = "account.created"
	AccountClosed  = "account.closed"

	BalanceUsed       = "balance.used"
	BalanceCancelled  = "balance.cancelled"
	TransactionFailed = "transaction.failed"
)

// LedgerEventsStream carries every account and balance event.
const LedgerEventsStream = "ledger.events"

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Account events
type AccountCreatedEvent struct {
	AccountID     int64  `json:"accountId"`
	AccountNumber string `json:"accountNumber"`
	UserID        int64  `json:"userId"`
	Balance       int64  `json:"balance"`
}

type AccountClosedEvent struct {
	AccountID     int64  `json:"accountId"`
	AccountNumber string `json:"accountNumber"`
	UserID        int64  `json:"userId"`
}

// BalanceChangedEvent is published for balance.used, balance.cancelled and transaction.failed.
type BalanceChangedEvent struct {
	TransactionID   string `json:"transactionId"`
	AccountID       int64  `json:"accountId"`
	AccountNumber   string `json:"accountNumber"`
	Type            string `json:"type"`
	Result          string `json:"result"`
	Amount          int64  `json:"amount"`
	BalanceSnapshot int64  `json:"balanceSnapshot"`
}
