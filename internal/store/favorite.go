package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/medialog/apiserver/types"
)

const favoriteColumns = `id, user_id, title, kind, description, external_id, poster_path, rating, status, notes, created_at, updated_at`

// FavoriteRepository handles persistence for favorite items. Every query is
// scoped to an owning user; rows belonging to other users are invisible.
type FavoriteRepository struct {
	db *sql.DB
}

func NewFavoriteRepository(db *sql.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

func (r *FavoriteRepository) ListByOwner(ctx context.Context, userID int) ([]types.FavoriteItem, error) {
	const query = `
		SELECT ` + favoriteColumns + `
		FROM favorite_items
		WHERE user_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.FavoriteItem, 0)
	for rows.Next() {
		item, err := scanFavorite(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *FavoriteRepository) GetByOwner(ctx context.Context, userID int, id int64) (types.FavoriteItem, error) {
	const query = `
		SELECT ` + favoriteColumns + `
		FROM favorite_items
		WHERE user_id = $1 AND id = $2`
	item, err := scanFavorite(r.db.QueryRowContext(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.FavoriteItem{}, ErrNotFound
		}
		return types.FavoriteItem{}, err
	}
	return item, nil
}

// GetByExternal looks up the owner's favorite matching an external catalog
// entry. Items without an external id are never matched.
func (r *FavoriteRepository) GetByExternal(ctx context.Context, userID int, externalID, kind string) (types.FavoriteItem, error) {
	if externalID == "" {
		return types.FavoriteItem{}, ErrNotFound
	}

	const query = `
		SELECT ` + favoriteColumns + `
		FROM favorite_items
		WHERE user_id = $1 AND external_id = $2 AND kind = $3`
	item, err := scanFavorite(r.db.QueryRowContext(ctx, query, userID, externalID, kind))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.FavoriteItem{}, ErrNotFound
		}
		return types.FavoriteItem{}, err
	}
	return item, nil
}

// Create inserts a new favorite. The partial unique index on
// (user_id, external_id, kind) is the authoritative duplicate check; a
// violation surfaces as ErrDuplicate so callers can fetch the existing row.
func (r *FavoriteRepository) Create(ctx context.Context, item types.FavoriteItem) (types.FavoriteItem, error) {
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	const query = `
		INSERT INTO favorite_items (user_id, title, kind, description, external_id, poster_path, rating, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		item.UserID,
		item.Title,
		item.Kind,
		item.Description,
		item.ExternalID,
		item.PosterPath,
		item.Rating,
		item.Status,
		item.Notes,
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&item.ID); err != nil {
		if isUniqueViolation(err) {
			return types.FavoriteItem{}, ErrDuplicate
		}
		return types.FavoriteItem{}, err
	}
	return item, nil
}

// Update overwrites the mutable columns of the owner's favorite inside a
// transaction, so the field changes and the updated_at refresh commit
// together or not at all.
func (r *FavoriteRepository) Update(ctx context.Context, item types.FavoriteItem) (types.FavoriteItem, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.FavoriteItem{}, err
	}
	defer tx.Rollback()

	item.UpdatedAt = time.Now()

	const query = `
		UPDATE favorite_items
		SET title = $1,
			kind = $2,
			description = $3,
			external_id = $4,
			poster_path = $5,
			rating = $6,
			status = $7,
			notes = $8,
			updated_at = $9
		WHERE user_id = $10 AND id = $11`
	result, err := tx.ExecContext(
		ctx,
		query,
		item.Title,
		item.Kind,
		item.Description,
		item.ExternalID,
		item.PosterPath,
		item.Rating,
		item.Status,
		item.Notes,
		item.UpdatedAt,
		item.UserID,
		item.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.FavoriteItem{}, ErrDuplicate
		}
		return types.FavoriteItem{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.FavoriteItem{}, err
	}
	if affected == 0 {
		return types.FavoriteItem{}, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return types.FavoriteItem{}, err
	}
	return item, nil
}

func (r *FavoriteRepository) Delete(ctx context.Context, userID int, id int64) error {
	const query = `DELETE FROM favorite_items WHERE user_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, userID, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFavorite(row rowScanner) (types.FavoriteItem, error) {
	var item types.FavoriteItem
	var rating sql.NullFloat64
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Title,
		&item.Kind,
		&item.Description,
		&item.ExternalID,
		&item.PosterPath,
		&rating,
		&item.Status,
		&item.Notes,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return types.FavoriteItem{}, err
	}
	if rating.Valid {
		item.Rating = &rating.Float64
	}
	return item, nil
}
