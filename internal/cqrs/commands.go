package cqrs

type CreateAccountCommand struct {
	UserID         int64
	InitialBalance int64
}

type CloseAccountCommand struct {
	UserID        int64
	AccountNumber string
}

type UseBalanceCommand struct {
	UserID        int64
	AccountNumber string
	Amount        int64
}

type CancelBalanceCommand struct {
	TransactionID string
	AccountNumber string
	Amount        int64
}

// RecordFailedTransactionCommand leaves a FAIL ledger entry for an attempt that did not go through.
type RecordFailedTransactionCommand struct {
	AccountNumber string
	Amount        int64
}
