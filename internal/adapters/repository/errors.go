package repository

import (
	"context"
	"errors"

	"github.com/okian/raceledger/internal/domain/apperr"
)

// Sentinel kinds for store errors.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrRaceNotFound    = errors.New("race not found")
	ErrRaceExists      = errors.New("race already exists")
	ErrReadOnly        = errors.New("write in read-only transaction")
	ErrConflict        = errors.New("transaction conflict")
	ErrUnknownDriver   = errors.New("unknown store driver")
)

// AsAppError maps a store failure onto the apperr taxonomy. Errors that
// already carry a code pass through untouched.
func AsAppError(op string, err error) error {
	var coded *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &coded):
		return err
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrRaceNotFound):
		return apperr.Wrap(apperr.NotFound, op, err)
	case errors.Is(err, ErrRaceExists):
		return apperr.Wrap(apperr.AlreadyExists, op, err)
	case errors.Is(err, ErrConflict), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.Aborted, op, err)
	default:
		return apperr.Wrap(apperr.Internal, op, err)
	}
}
