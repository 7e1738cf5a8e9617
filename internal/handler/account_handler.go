package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/cqrs"
	"github.com/eaglebank/ledger/internal/middleware"
	"github.com/eaglebank/ledger/internal/models"
	"github.com/gin-gonic/gin"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	CreateAccount(context.Context, cqrs.CreateAccountCommand) (*models.Account, error)
	CloseAccount(context.Context, cqrs.CloseAccountCommand) (*models.Account, error)
}

// AccountQuerier defines the read-side operations used by AccountHandler.
type AccountQuerier interface {
	GetAccount(context.Context, cqrs.GetAccountQuery) (*models.AccountView, error)
	ListAccounts(context.Context, cqrs.ListAccountsQuery) ([]models.AccountSummary, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	commands AccountCommander
	queries  AccountQuerier
}

type CreateAccountRequest struct {
	UserID         int64 `json:"userId" validate:"required,min=1"`
	InitialBalance int64 `json:"initialBalance" validate:"min=0"`
}

type CreateAccountResponse struct {
	UserID        int64     `json:"userId"`
	AccountNumber string    `json:"accountNumber"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

type CloseAccountRequest struct {
	UserID        int64  `json:"userId" validate:"required,min=1"`
	AccountNumber string `json:"accountNumber" validate:"required,len=10,numeric"`
}

type CloseAccountResponse struct {
	UserID         int64      `json:"userId"`
	AccountNumber  string     `json:"accountNumber"`
	UnregisteredAt *time.Time `json:"unregisteredAt"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if !bindAndValidate(c, &req) || !authorizeUser(c, req.UserID) {
		return
	}

	account, err := h.commands.CreateAccount(c.Request.Context(), cqrs.CreateAccountCommand{
		UserID:         req.UserID,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		respondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateAccountResponse{
		UserID:        account.UserID,
		AccountNumber: account.AccountNumber,
		RegisteredAt:  account.RegisteredAt,
	})
}

func (h *AccountHandler) CloseAccount(c *gin.Context) {
	var req CloseAccountRequest
	if !bindAndValidate(c, &req) || !authorizeUser(c, req.UserID) {
		return
	}

	account, err := h.commands.CloseAccount(c.Request.Context(), cqrs.CloseAccountCommand{
		UserID:        req.UserID,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		respondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, CloseAccountResponse{
		UserID:         account.UserID,
		AccountNumber:  account.AccountNumber,
		UnregisteredAt: account.UnregisteredAt,
	})
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID < 1 {
		middleware.RespondWithError(c, http.StatusBadRequest, apperr.InvalidRequest)
		return
	}
	if !authorizeUser(c, userID) {
		return
	}

	summaries, err := h.queries.ListAccounts(c.Request.Context(), cqrs.ListAccountsQuery{UserID: userID})
	if err != nil {
		respondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, summaries)
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		middleware.RespondWithError(c, http.StatusBadRequest, apperr.InvalidRequest)
		return
	}

	view, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetAccountQuery{AccountID: id})
	if err != nil {
		respondWithAppError(c, err)
		return
	}
	if !authorizeUser(c, view.UserID) {
		return
	}

	c.JSON(http.StatusOK, view)
}
