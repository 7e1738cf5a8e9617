package handler

import (
	"net/http"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

var statusByKind = map[apperr.Kind]int{
	apperr.UserNotFound:               http.StatusNotFound,
	apperr.AccountNotFound:            http.StatusNotFound,
	apperr.TransactionNotFound:        http.StatusNotFound,
	apperr.OwnerMismatch:              http.StatusForbidden,
	apperr.AccountClosed:              http.StatusUnprocessableEntity,
	apperr.AlreadyClosed:              http.StatusUnprocessableEntity,
	apperr.NonZeroBalance:             http.StatusUnprocessableEntity,
	apperr.InsufficientBalance:        http.StatusUnprocessableEntity,
	apperr.TooManyAccounts:            http.StatusUnprocessableEntity,
	apperr.PartialCancelNotAllowed:    http.StatusUnprocessableEntity,
	apperr.TransactionAccountMismatch: http.StatusUnprocessableEntity,
	apperr.CancelWindowExpired:        http.StatusUnprocessableEntity,
	apperr.LockBusy:                   http.StatusConflict,
	apperr.InfrastructureUnavailable:  http.StatusServiceUnavailable,
	apperr.InvalidRequest:             http.StatusBadRequest,
	apperr.Internal:                   http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondWithAppError writes the stable code and description for err. The cause is
// attached to the gin context for the request log and never sent to the client.
func respondWithAppError(c *gin.Context, err error) {
	_ = c.Error(err)
	kind := apperr.KindOf(err)
	middleware.RespondWithError(c, StatusFor(kind), kind)
}

// authorizeUser refuses requests whose body names a different user than the bearer
// token. Without auth configured every request is accepted.
func authorizeUser(c *gin.Context, userID int64) bool {
	authUserID, ok := middleware.GetUserID(c)
	if !ok || authUserID == userID {
		return true
	}
	middleware.RespondWithError(c, http.StatusForbidden, apperr.OwnerMismatch)
	return false
}

func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusBadRequest, apperr.InvalidRequest)
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}
