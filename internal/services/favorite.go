package services

import (
	"context"
	"errors"
	"strings"

	"github.com/medialog/apiserver/internal/store"
	"github.com/medialog/apiserver/types"
)

// ErrInvalidInput is returned when a favorite fails validation before any
// mutation happens.
var ErrInvalidInput = errors.New("invalid input")

// FavoriteRepository defines persistence operations for favorites.
type FavoriteRepository interface {
	ListByOwner(ctx context.Context, userID int) ([]types.FavoriteItem, error)
	GetByOwner(ctx context.Context, userID int, id int64) (types.FavoriteItem, error)
	GetByExternal(ctx context.Context, userID int, externalID, kind string) (types.FavoriteItem, error)
	Create(ctx context.Context, item types.FavoriteItem) (types.FavoriteItem, error)
	Update(ctx context.Context, item types.FavoriteItem) (types.FavoriteItem, error)
	Delete(ctx context.Context, userID int, id int64) error
}

// FavoritePatch carries the allow-listed mutable fields of a favorite.
// Nil fields are left untouched; anything else in a request payload is
// ignored by construction.
type FavoritePatch struct {
	Title       *string  `json:"title"`
	Kind        *string  `json:"kind"`
	Description *string  `json:"description"`
	ExternalID  *string  `json:"external_id"`
	PosterPath  *string  `json:"poster_path"`
	Status      *string  `json:"status"`
	Rating      *float64 `json:"rating"`
	Notes       *string  `json:"notes"`
}

// CreateResult reports whether Create inserted a new favorite or found an
// existing one for the same (owner, external_id, kind) triple.
type CreateResult struct {
	Item    types.FavoriteItem
	Existed bool
}

// FavoriteService encapsulates favorite use-cases. All operations are scoped
// to the authenticated owner passed by the caller.
type FavoriteService struct {
	repo FavoriteRepository
}

func NewFavoriteService(repo FavoriteRepository) *FavoriteService {
	return &FavoriteService{repo: repo}
}

func (s *FavoriteService) List(ctx context.Context, userID int) ([]types.FavoriteItem, error) {
	return s.repo.ListByOwner(ctx, userID)
}

func (s *FavoriteService) Get(ctx context.Context, userID int, id int64) (types.FavoriteItem, error) {
	return s.repo.GetByOwner(ctx, userID, id)
}

// Create persists a new favorite for the owner. Creation is idempotent with
// respect to (owner, external_id, kind): when a matching favorite already
// exists the stored one is returned with Existed set, whether the duplicate
// is seen before the insert or lost the insert race to a concurrent request.
func (s *FavoriteService) Create(ctx context.Context, userID int, item types.FavoriteItem) (CreateResult, error) {
	item.UserID = userID
	item.Title = strings.TrimSpace(item.Title)

	if item.Title == "" || !types.ValidKind(item.Kind) {
		return CreateResult{}, ErrInvalidInput
	}
	if item.Status == "" {
		item.Status = types.StatusPlanToWatch
	}
	if !types.ValidStatus(item.Status) {
		return CreateResult{}, ErrInvalidInput
	}

	existing, err := s.repo.GetByExternal(ctx, userID, item.ExternalID, item.Kind)
	if err == nil {
		return CreateResult{Item: existing, Existed: true}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return CreateResult{}, err
	}

	created, err := s.repo.Create(ctx, item)
	if err != nil {
		// Lost the insert race: the unique index caught a concurrent
		// create with the same triple.
		if errors.Is(err, store.ErrDuplicate) {
			existing, lookupErr := s.repo.GetByExternal(ctx, userID, item.ExternalID, item.Kind)
			if lookupErr != nil {
				return CreateResult{}, lookupErr
			}
			return CreateResult{Item: existing, Existed: true}, nil
		}
		return CreateResult{}, err
	}
	return CreateResult{Item: created}, nil
}

// Update applies the non-nil fields of patch to the owner's favorite and
// refreshes updated_at. The repository commits the whole write
// transactionally.
func (s *FavoriteService) Update(ctx context.Context, userID int, id int64, patch FavoritePatch) (types.FavoriteItem, error) {
	item, err := s.repo.GetByOwner(ctx, userID, id)
	if err != nil {
		return types.FavoriteItem{}, err
	}

	if patch.Title != nil {
		item.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Kind != nil {
		item.Kind = *patch.Kind
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.ExternalID != nil {
		item.ExternalID = *patch.ExternalID
	}
	if patch.PosterPath != nil {
		item.PosterPath = *patch.PosterPath
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.Rating != nil {
		item.Rating = patch.Rating
	}
	if patch.Notes != nil {
		item.Notes = *patch.Notes
	}

	if item.Title == "" || !types.ValidKind(item.Kind) || !types.ValidStatus(item.Status) {
		return types.FavoriteItem{}, ErrInvalidInput
	}

	return s.repo.Update(ctx, item)
}

func (s *FavoriteService) Delete(ctx context.Context, userID int, id int64) error {
	return s.repo.Delete(ctx, userID, id)
}
