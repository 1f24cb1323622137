package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
)

// FavoriteStore keeps saved queries in the ai_favorites table.
type FavoriteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ repositories.FavoriteRepository = (*FavoriteStore)(nil)

// NewFavoriteStore creates the store and its schema.
func NewFavoriteStore(db *sql.DB) (*FavoriteStore, error) {
	s := &FavoriteStore{db: db, now: time.Now}
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS ai_favorites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		label TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`)
	if err != nil {
		return nil, fmt.Errorf("migrate ai_favorites: %w", err)
	}
	return s, nil
}

func (s *FavoriteStore) ListFavorites(ctx context.Context) ([]agent.Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, label, created_at FROM ai_favorites ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	favorites := make([]agent.Favorite, 0)
	for rows.Next() {
		var f agent.Favorite
		var created int64
		if err := rows.Scan(&f.ID, &f.Query, &f.Label, &created); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		f.CreatedAt = fromMillis(created)
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

func (s *FavoriteStore) CreateFavorite(ctx context.Context, fav *agent.Favorite) error {
	fav.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_favorites (query, label, created_at) VALUES (?, ?, ?)`,
		fav.Query, fav.Label, toMillis(fav.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	fav.ID, err = res.LastInsertId()
	return err
}

func (s *FavoriteStore) DeleteFavorite(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ai_favorites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("favorite %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
