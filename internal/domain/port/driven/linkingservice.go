package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/johnnycage/internal/domain/model"
)

// ErrSessionGone is returned by PollSession when the linking service no longer
// knows the session (deleted or expired on its side).
var ErrSessionGone = errors.New("linking session no longer exists")

// LinkingService defines the driven port for the Plex PIN exchange.
type LinkingService interface {
	// CreateSession asks the service for a new PIN. Any error is terminal for
	// the linking attempt.
	CreateSession(ctx context.Context) (model.PinGrant, error)

	// PollSession checks whether the user has entered the PIN. Errors other
	// than ErrSessionGone are treated as transient by callers.
	PollSession(ctx context.Context, sessionID string) (model.PinStatus, error)
}
