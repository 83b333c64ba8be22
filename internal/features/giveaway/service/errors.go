package service

import (
	"errors"

	apperrors "giveaway-core-backend/internal/common/errors"
	"giveaway-core-backend/internal/features/giveaway/repository"
)

// storeError maps repository sentinels to API errors. Conflicts carry the
// message of the operation that raced.
func storeError(err error, giveawayID int64, conflictMsg string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewGiveawayNotFoundError(giveawayID)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflictError("giveaway", conflictMsg).
			WithDetail("giveaway_id", giveawayID)
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "storage operation failed")
	}
}

func isUnknownOutcome(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	return ok && appErr.IsAmbiguous()
}
