package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
)

// PostgresConversationRepository implements ConversationRepository using PostgreSQL
type PostgresConversationRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	tx     repositories.TransactionManager
	logger *slog.Logger
}

// NewConversationRepository creates a new PostgresConversationRepository
func NewConversationRepository(config *RepositoryConfig) repositories.ConversationRepository {
	return &PostgresConversationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		tx:     NewTransactionManager(config.Pool, config.Logger),
		logger: config.Logger,
	}
}

// AppendTurns inserts all turns in one transaction
func (r *PostgresConversationRepository) AppendTurns(ctx context.Context, turns ...*agent.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (conversation_id, role, content, tool_calls, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, r.tables.History)

	return r.tx.ExecTx(ctx, func(ctx context.Context) error {
		executor := GetExecutor(ctx, r.pool)
		for _, turn := range turns {
			if turn.CreatedAt.IsZero() {
				turn.CreatedAt = time.Now().UTC()
			}

			var toolCalls []byte
			if len(turn.ToolCalls) > 0 {
				data, err := json.Marshal(turn.ToolCalls)
				if err != nil {
					return fmt.Errorf("encode tool calls: %w", err)
				}
				toolCalls = data
			}

			err := executor.QueryRow(ctx, query,
				turn.ConversationID,
				turn.Role,
				turn.Content,
				toolCalls,
				turn.CreatedAt,
			).Scan(&turn.ID)
			if err != nil {
				return fmt.Errorf("insert turn: %w", err)
			}
		}
		return nil
	})
}

// RecentTurns returns the last limit turns, oldest first
func (r *PostgresConversationRepository) RecentTurns(ctx context.Context, conversationID string, limit int) ([]agent.Turn, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, role, content, tool_calls, created_at FROM (
			SELECT * FROM %s WHERE conversation_id = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC
	`, r.tables.History)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	return scanTurns(rows)
}

// ListTurns returns the whole conversation, oldest first
func (r *PostgresConversationRepository) ListTurns(ctx context.Context, conversationID string) ([]agent.Turn, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, role, content, tool_calls, created_at
		FROM %s WHERE conversation_id = $1 ORDER BY id ASC
	`, r.tables.History)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	return scanTurns(rows)
}

// ClearConversation deletes every turn of the conversation
func (r *PostgresConversationRepository) ClearConversation(ctx context.Context, conversationID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = $1`, r.tables.History)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, conversationID)
	if err != nil {
		return 0, fmt.Errorf("delete turns: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListConversations returns the most recently active conversations
func (r *PostgresConversationRepository) ListConversations(ctx context.Context, limit int) ([]agent.ConversationSummary, error) {
	query := fmt.Sprintf(`
		SELECT h.conversation_id, MIN(h.created_at), MAX(h.created_at), COUNT(*),
			COALESCE((SELECT f.content FROM %[1]s f
				WHERE f.conversation_id = h.conversation_id AND f.role = 'user'
				ORDER BY f.id ASC LIMIT 1), '')
		FROM %[1]s h
		WHERE h.conversation_id <> 'default'
		GROUP BY h.conversation_id
		ORDER BY MAX(h.created_at) DESC
		LIMIT $1
	`, r.tables.History)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	summaries := make([]agent.ConversationSummary, 0)
	for rows.Next() {
		var c agent.ConversationSummary
		if err := rows.Scan(&c.ConversationID, &c.StartedAt, &c.LastMessageAt, &c.MessageCount, &c.FirstMessage); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		summaries = append(summaries, c)
	}
	return summaries, rows.Err()
}

func scanTurns(rows pgx.Rows) ([]agent.Turn, error) {
	defer rows.Close()

	turns := make([]agent.Turn, 0)
	for rows.Next() {
		var t agent.Turn
		var toolCalls []byte
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &toolCalls, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if len(toolCalls) > 0 {
			if err := json.Unmarshal(toolCalls, &t.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls of turn %d: %w", t.ID, err)
			}
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
