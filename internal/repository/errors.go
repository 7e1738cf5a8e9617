package repository

import (
	"errors"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// classify turns a driver error into an apperr. Constraint violations are the
// caller's fault; everything else means the database could not serve the request.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperr.Wrap(apperr.InvalidRequest, err)
	}
	return apperr.Wrap(apperr.InfrastructureUnavailable, err)
}
