package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
)

// PostgresPendingActionStore shares pending actions between instances.
// Take is a single DELETE ... RETURNING, so concurrent resolvers on any
// instance see the row at most once.
type PostgresPendingActionStore struct {
	pool   *pgxpool.Pool
	tables *TableNames
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

var _ repositories.PendingActionStore = (*PostgresPendingActionStore)(nil)

// NewPendingActionStore creates the store. now nil uses time.Now.
func NewPendingActionStore(config *RepositoryConfig, ttl time.Duration, now func() time.Time) *PostgresPendingActionStore {
	if now == nil {
		now = time.Now
	}
	return &PostgresPendingActionStore{
		pool:   config.Pool,
		tables: config.Tables,
		ttl:    ttl,
		now:    now,
		logger: config.Logger,
	}
}

func (s *PostgresPendingActionStore) Create(ctx context.Context, action *agent.PendingAction) (string, error) {
	action.StateID = uuid.NewString()
	action.CreatedAt = s.now().UTC()
	if action.TTL <= 0 {
		action.TTL = s.ttl
	}

	resume, err := json.Marshal(action.Resume)
	if err != nil {
		return "", fmt.Errorf("encode resume context: %w", err)
	}
	args := action.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (state_id, tool_name, arguments, resume, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.tables.PendingActions)

	_, err = GetExecutor(ctx, s.pool).Exec(ctx, query,
		action.StateID,
		action.ToolName,
		[]byte(args),
		resume,
		action.CreatedAt,
		action.ExpiresAt(),
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return "", &domain.ConflictError{
				Message:      "pending action id already exists",
				ResourceType: "pending_action",
				ResourceID:   action.StateID,
			}
		}
		return "", fmt.Errorf("insert pending action: %w", err)
	}
	return action.StateID, nil
}

func (s *PostgresPendingActionStore) Take(ctx context.Context, stateID string) (*agent.PendingAction, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s WHERE state_id = $1
		RETURNING tool_name, arguments, resume, created_at, expires_at
	`, s.tables.PendingActions)

	action := &agent.PendingAction{StateID: stateID}
	var args, resume []byte
	var expiresAt time.Time
	err := GetExecutor(ctx, s.pool).QueryRow(ctx, query, stateID).Scan(
		&action.ToolName,
		&args,
		&resume,
		&action.CreatedAt,
		&expiresAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, domain.ErrActionExpired
		}
		return nil, fmt.Errorf("take pending action: %w", err)
	}

	action.Arguments = json.RawMessage(args)
	action.TTL = expiresAt.Sub(action.CreatedAt)
	if action.Expired(s.now()) {
		return nil, domain.ErrActionExpired
	}
	if err := json.Unmarshal(resume, &action.Resume); err != nil {
		return nil, fmt.Errorf("decode resume context: %w", err)
	}
	return action, nil
}

func (s *PostgresPendingActionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, s.tables.PendingActions)

	tag, err := GetExecutor(ctx, s.pool).Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("sweep pending actions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
