package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
)

// ConversationStore keeps conversation turns in the ai_history table.
type ConversationStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ repositories.ConversationRepository = (*ConversationStore)(nil)

// NewConversationStore creates the store and its schema.
func NewConversationStore(db *sql.DB) (*ConversationStore, error) {
	s := &ConversationStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate ai_history: %w", err)
	}
	return s, nil
}

func (s *ConversationStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS ai_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL DEFAULT 'default',
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_calls TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ai_history_conv ON ai_history(conversation_id, id);
	`)
	return err
}

func (s *ConversationStore) AppendTurns(ctx context.Context, turns ...*agent.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, turn := range turns {
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = s.now().UTC()
		}
		toolCalls, err := encodeToolCalls(turn.ToolCalls)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO ai_history (conversation_id, role, content, tool_calls, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, turn.ConversationID, turn.Role, turn.Content, toolCalls, toMillis(turn.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
		if turn.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("turn id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *ConversationStore) RecentTurns(ctx context.Context, conversationID string, limit int) ([]agent.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, tool_calls, created_at FROM (
			SELECT * FROM ai_history WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

func (s *ConversationStore) ListTurns(ctx context.Context, conversationID string) ([]agent.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, tool_calls, created_at
		FROM ai_history WHERE conversation_id = ? ORDER BY id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

func (s *ConversationStore) ClearConversation(ctx context.Context, conversationID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ai_history WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("delete turns: %w", err)
	}
	return res.RowsAffected()
}

func (s *ConversationStore) ListConversations(ctx context.Context, limit int) ([]agent.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.conversation_id, MIN(h.created_at), MAX(h.created_at), COUNT(*),
			COALESCE((SELECT f.content FROM ai_history f
				WHERE f.conversation_id = h.conversation_id AND f.role = 'user'
				ORDER BY f.id ASC LIMIT 1), '')
		FROM ai_history h
		WHERE h.conversation_id != 'default'
		GROUP BY h.conversation_id
		ORDER BY MAX(h.created_at) DESC, MAX(h.id) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	summaries := make([]agent.ConversationSummary, 0)
	for rows.Next() {
		var c agent.ConversationSummary
		var started, last int64
		if err := rows.Scan(&c.ConversationID, &started, &last, &c.MessageCount, &c.FirstMessage); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.StartedAt = fromMillis(started)
		c.LastMessageAt = fromMillis(last)
		summaries = append(summaries, c)
	}
	return summaries, rows.Err()
}

func scanTurns(rows *sql.Rows) ([]agent.Turn, error) {
	turns := make([]agent.Turn, 0)
	for rows.Next() {
		var t agent.Turn
		var toolCalls sql.NullString
		var created int64
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &toolCalls, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = fromMillis(created)
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &t.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls of turn %d: %w", t.ID, err)
			}
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func encodeToolCalls(calls []agent.ToolCallSummary) (sql.NullString, error) {
	if len(calls) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode tool calls: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
