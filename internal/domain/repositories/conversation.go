package repositories

import (
	"context"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
)

// ConversationRepository persists conversation turns.
type ConversationRepository interface {
	// AppendTurns appends turns atomically in the given order.
	// CreatedAt is filled in when zero; ID is set from the store.
	AppendTurns(ctx context.Context, turns ...*agent.Turn) error

	// RecentTurns returns the last limit turns of a conversation, oldest first.
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]agent.Turn, error)

	// ListTurns returns every turn of a conversation, oldest first.
	// Returns an empty slice for an unknown conversation.
	ListTurns(ctx context.Context, conversationID string) ([]agent.Turn, error)

	// ClearConversation deletes all turns of a conversation and returns how many were removed.
	ClearConversation(ctx context.Context, conversationID string) (int64, error)

	// ListConversations returns the most recently active conversations.
	ListConversations(ctx context.Context, limit int) ([]agent.ConversationSummary, error)
}

// FavoriteRepository persists saved queries.
type FavoriteRepository interface {
	ListFavorites(ctx context.Context) ([]agent.Favorite, error)

	// CreateFavorite inserts fav and sets its ID and CreatedAt.
	CreateFavorite(ctx context.Context, fav *agent.Favorite) error

	// DeleteFavorite returns domain.ErrNotFound if no favorite has the id.
	DeleteFavorite(ctx context.Context, id int64) error
}
