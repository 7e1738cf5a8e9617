package models

import (
	"strings"
	"time"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/google/uuid"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusClosed AccountStatus = "CLOSED"
)

type TransactionType string

const (
	TransactionTypeUse    TransactionType = "USE"
	TransactionTypeCancel TransactionType = "CANCEL"
)

type TransactionResult string

const (
	TransactionResultSuccess TransactionResult = "SUCCESS"
	TransactionResultFail    TransactionResult = "FAIL"
)

// MaxAccountsPerUser caps how many accounts (active or closed) a user may hold.
const MaxAccountsPerUser = 10

type AccountUser struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdTimestamp"`
	UpdatedAt time.Time `json:"updatedTimestamp"`
}

type Account struct {
	ID             int64         `json:"id"`
	UserID         int64         `json:"userId"`
	AccountNumber  string        `json:"accountNumber"`
	Status         AccountStatus `json:"accountStatus"`
	Balance        int64         `json:"balance"`
	RegisteredAt   time.Time     `json:"registeredAt"`
	UnregisteredAt *time.Time    `json:"unregisteredAt,omitempty"`
	CreatedAt      time.Time     `json:"createdTimestamp"`
	UpdatedAt      time.Time     `json:"updatedTimestamp"`
}

// NewAccount builds an ACTIVE account registered at the given instant.
func NewAccount(userID int64, accountNumber string, initialBalance int64, at time.Time) *Account {
	return &Account{
		UserID:        userID,
		AccountNumber: accountNumber,
		Status:        AccountStatusActive,
		Balance:       initialBalance,
		RegisteredAt:  at,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

func (a *Account) OwnedBy(userID int64) bool {
	return a.UserID == userID
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// Use debits amount from the balance. The balance never goes negative.
func (a *Account) Use(amount int64, at time.Time) error {
	if amount < 0 {
		return apperr.New(apperr.InvalidRequest)
	}
	if amount > a.Balance {
		return apperr.New(apperr.InsufficientBalance)
	}
	a.Balance -= amount
	a.UpdatedAt = at
	return nil
}

// Cancel credits amount back to the balance.
func (a *Account) Cancel(amount int64, at time.Time) error {
	if amount < 0 {
		return apperr.New(apperr.InvalidRequest)
	}
	a.Balance += amount
	a.UpdatedAt = at
	return nil
}

// Close moves the account to CLOSED. Both checks run before the transition.
func (a *Account) Close(at time.Time) error {
	if a.Status == AccountStatusClosed {
		return apperr.New(apperr.AlreadyClosed)
	}
	if a.Balance != 0 {
		return apperr.New(apperr.NonZeroBalance)
	}
	a.Status = AccountStatusClosed
	a.UnregisteredAt = &at
	a.UpdatedAt = at
	return nil
}

// Transaction is an audit record of one attempted balance mutation. It is never updated.
type Transaction struct {
	ID              int64             `json:"id"`
	TransactionID   string            `json:"transactionId"`
	AccountID       int64             `json:"accountId"`
	AccountNumber   string            `json:"accountNumber"`
	Type            TransactionType   `json:"transactionType"`
	Result          TransactionResult `json:"transactionResult"`
	Amount          int64             `json:"amount"`
	BalanceSnapshot int64             `json:"balanceSnapshot"`
	TransactedAt    time.Time         `json:"transactedAt"`
	CreatedAt       time.Time         `json:"createdTimestamp"`
}

// NewTransaction records the account's balance as it is right now, so callers must
// apply the mutation (or not, on failure) before building the record.
func NewTransaction(account *Account, txType TransactionType, result TransactionResult, amount int64, at time.Time) *Transaction {
	return &Transaction{
		TransactionID:   NewTransactionID(),
		AccountID:       account.ID,
		AccountNumber:   account.AccountNumber,
		Type:            txType,
		Result:          result,
		Amount:          amount,
		BalanceSnapshot: account.Balance,
		TransactedAt:    at,
		CreatedAt:       at,
	}
}

// NewTransactionID returns a random UUID as 32 lowercase hex characters.
func NewTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
