package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
)

// PostgresFavoriteRepository implements FavoriteRepository using PostgreSQL
type PostgresFavoriteRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewFavoriteRepository creates a new PostgresFavoriteRepository
func NewFavoriteRepository(config *RepositoryConfig) repositories.FavoriteRepository {
	return &PostgresFavoriteRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

func (r *PostgresFavoriteRepository) ListFavorites(ctx context.Context) ([]agent.Favorite, error) {
	query := fmt.Sprintf(`
		SELECT id, query, label, created_at FROM %s ORDER BY created_at DESC, id DESC
	`, r.tables.Favorites)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	favorites := make([]agent.Favorite, 0)
	for rows.Next() {
		var f agent.Favorite
		if err := rows.Scan(&f.ID, &f.Query, &f.Label, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

func (r *PostgresFavoriteRepository) CreateFavorite(ctx context.Context, fav *agent.Favorite) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (query, label) VALUES ($1, $2)
		RETURNING id, created_at
	`, r.tables.Favorites)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, fav.Query, fav.Label).Scan(&fav.ID, &fav.CreatedAt)
	if err != nil {
		return fmt.Errorf("create favorite: %w", err)
	}
	return nil
}

func (r *PostgresFavoriteRepository) DeleteFavorite(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Favorites)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("favorite %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
