package service

import (
	"errors"
	"fmt"

	"github.com/avvvet/matchvote-services/internal/matchsvc/store"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("game not found")
	ErrVotingClosed = errors.New("voting is not allowed for completed games")
	ErrConflict     = errors.New("game id was taken concurrently, retry the request")
)

// translate maps store errors onto the service taxonomy.
func translate(err error, action string, gameID int) error {
	switch {
	case errors.Is(err, store.ErrMatchNotFound):
		return fmt.Errorf("%w: %d", ErrNotFound, gameID)
	case errors.Is(err, store.ErrMatchCompleted):
		return fmt.Errorf("%w: %d", ErrVotingClosed, gameID)
	case errors.Is(err, store.ErrGameIDConflict):
		return ErrConflict
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}
