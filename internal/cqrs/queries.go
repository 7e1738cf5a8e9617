package cqrs

// ---------- Account queries ----------

// GetAccountQuery fetches a single account by its internal ID.
type GetAccountQuery struct {
	AccountID int64
}

// ListAccountsQuery fetches all accounts belonging to a user.
type ListAccountsQuery struct {
	UserID int64
}

// ---------- Transaction queries ----------

// GetTransactionQuery fetches a single transaction by its public identifier.
type GetTransactionQuery struct {
	TransactionID string
}
