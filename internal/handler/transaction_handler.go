package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/eaglebank/ledger/internal/cqrs"
	"github.com/eaglebank/ledger/internal/models"
	"github.com/gin-gonic/gin"
)

// TransactionCommander defines the write-side operations used by TransactionHandler.
type TransactionCommander interface {
	UseBalance(context.Context, cqrs.UseBalanceCommand) (*models.Transaction, error)
	CancelBalance(context.Context, cqrs.CancelBalanceCommand) (*models.Transaction, error)
	RecordFailedUse(context.Context, cqrs.RecordFailedTransactionCommand) (*models.Transaction, error)
	RecordFailedCancel(context.Context, cqrs.RecordFailedTransactionCommand) (*models.Transaction, error)
}

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	QueryTransaction(context.Context, cqrs.GetTransactionQuery) (*models.TransactionView, error)
}

type TransactionHandler struct {
	commands TransactionCommander
	queries  TransactionQuerier
}

type UseBalanceRequest struct {
	UserID        int64  `json:"userId" validate:"required,min=1"`
	AccountNumber string `json:"accountNumber" validate:"required,len=10,numeric"`
	Amount        int64  `json:"amount" validate:"min=10,max=1000000000"`
}

type CancelBalanceRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
	AccountNumber string `json:"accountNumber" validate:"required,len=10,numeric"`
	Amount        int64  `json:"amount" validate:"min=10,max=1000000000"`
}

// TransactionResponse is returned by use and cancel.
type TransactionResponse struct {
	AccountNumber     string                   `json:"accountNumber"`
	TransactionResult models.TransactionResult `json:"transactionResult"`
	TransactionID     string                   `json:"transactionId"`
	Amount            int64                    `json:"amount"`
	TransactedAt      time.Time                `json:"transactedAt"`
}

func NewTransactionHandler(commands TransactionCommander, queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{commands: commands, queries: queries}
}

func toTransactionResponse(tx *models.Transaction) TransactionResponse {
	return TransactionResponse{
		AccountNumber:     tx.AccountNumber,
		TransactionResult: tx.Result,
		TransactionID:     tx.TransactionID,
		Amount:            tx.Amount,
		TransactedAt:      tx.TransactedAt,
	}
}

// UseBalance debits an account. A rejected debit is still written to the ledger
// as a FAIL entry before the error is returned.
func (h *TransactionHandler) UseBalance(c *gin.Context) {
	var req UseBalanceRequest
	if !bindAndValidate(c, &req) || !authorizeUser(c, req.UserID) {
		return
	}

	ctx := c.Request.Context()
	tx, err := h.commands.UseBalance(ctx, cqrs.UseBalanceCommand{
		UserID:        req.UserID,
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
	})
	if err != nil {
		failed := cqrs.RecordFailedTransactionCommand{AccountNumber: req.AccountNumber, Amount: req.Amount}
		if _, recordErr := h.commands.RecordFailedUse(ctx, failed); recordErr != nil {
			_ = c.Error(recordErr)
		}
		respondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTransactionResponse(tx))
}

// CancelBalance credits back a previous debit, recording a FAIL entry when refused.
func (h *TransactionHandler) CancelBalance(c *gin.Context) {
	var req CancelBalanceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	tx, err := h.commands.CancelBalance(ctx, cqrs.CancelBalanceCommand{
		TransactionID: req.TransactionID,
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
	})
	if err != nil {
		failed := cqrs.RecordFailedTransactionCommand{AccountNumber: req.AccountNumber, Amount: req.Amount}
		if _, recordErr := h.commands.RecordFailedCancel(ctx, failed); recordErr != nil {
			_ = c.Error(recordErr)
		}
		respondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTransactionResponse(tx))
}

func (h *TransactionHandler) QueryTransaction(c *gin.Context) {
	view, err := h.queries.QueryTransaction(c.Request.Context(), cqrs.GetTransactionQuery{
		TransactionID: c.Param("transactionId"),
	})
	if err != nil {
		respondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
