package repositories

import (
	"context"
	"time"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
)

// PendingActionStore holds mutating tool calls awaiting confirmation.
type PendingActionStore interface {
	// Create stores action under a fresh unguessable id and returns it.
	// StateID and CreatedAt are set on action.
	Create(ctx context.Context, action *agent.PendingAction) (string, error)

	// Take removes and returns the action. Exactly one concurrent caller
	// receives it; everyone else, and any caller after the TTL, gets
	// domain.ErrActionExpired.
	Take(ctx context.Context, stateID string) (*agent.PendingAction, error)

	// Sweep deletes actions that expired before now and returns how many.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
