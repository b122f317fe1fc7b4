package service

import (
	"errors"

	"github.com/AdamBeresnev/championship-engine/internal/championship"
	"github.com/AdamBeresnev/championship-engine/internal/store"
)

// IsRetryable reports transaction-level failures the caller may simply retry.
func IsRetryable(err error) bool {
	return errors.Is(err, championship.ErrDuplicateRoundGeneration) ||
		errors.Is(err, store.ErrConflict) ||
		store.IsBusy(err)
}
