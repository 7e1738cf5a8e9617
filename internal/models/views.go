package models

import "time"

// AccountView is the read-optimised projection of an account.
// UserID is populated for ownership checks but never serialised to the API response.
type AccountView struct {
	ID             int64         `json:"id"`
	UserID         int64         `json:"-"`
	AccountNumber  string        `json:"accountNumber"`
	Status         AccountStatus `json:"accountStatus"`
	Balance        int64         `json:"balance"`
	RegisteredAt   time.Time     `json:"registeredAt"`
	UnregisteredAt *time.Time    `json:"unregisteredAt,omitempty"`
}

// AccountSummary is what the account listing returns per account.
type AccountSummary struct {
	AccountNumber string `json:"accountNumber"`
	Balance       int64  `json:"balance"`
}

// TransactionView is the read-optimised projection of a transaction.
type TransactionView struct {
	TransactionID   string            `json:"transactionId"`
	AccountNumber   string            `json:"accountNumber"`
	Type            TransactionType   `json:"transactionType"`
	Result          TransactionResult `json:"transactionResult"`
	Amount          int64             `json:"amount"`
	BalanceSnapshot int64             `json:"balanceSnapshot"`
	TransactedAt    time.Time         `json:"transactedAt"`
}

func AccountToView(a *Account) *AccountView {
	return &AccountView{
		ID:             a.ID,
		UserID:         a.UserID,
		AccountNumber:  a.AccountNumber,
		Status:         a.Status,
		Balance:        a.Balance,
		RegisteredAt:   a.RegisteredAt,
		UnregisteredAt: a.UnregisteredAt,
	}
}

func TransactionToView(t *Transaction) *TransactionView {
	return &TransactionView{
		TransactionID:   t.TransactionID,
		AccountNumber:   t.AccountNumber,
		Type:            t.Type,
		Result:          t.Result,
		Amount:          t.Amount,
		BalanceSnapshot: t.BalanceSnapshot,
		TransactedAt:    t.TransactedAt,
	}
}
