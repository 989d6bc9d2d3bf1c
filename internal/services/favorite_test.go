package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medialog/apiserver/internal/store"
	"github.com/medialog/apiserver/types"
)

// fakeFavoriteRepo is an in-memory FavoriteRepository enforcing the same
// ownership scoping and uniqueness rules as the SQL store.
type fakeFavoriteRepo struct {
	items  map[int64]types.FavoriteItem
	nextID int64

	// hideFromLookupOnce makes the next GetByExternal miss, simulating
	// the window between the service's pre-check and a concurrent
	// insert committing first.
	hideFromLookupOnce bool
}

func newFakeFavoriteRepo() *fakeFavoriteRepo {
	return &fakeFavoriteRepo{
		items:  make(map[int64]types.FavoriteItem),
		nextID: 1,
	}
}

func (r *fakeFavoriteRepo) ListByOwner(ctx context.Context, userID int) ([]types.FavoriteItem, error) {
	items := make([]types.FavoriteItem, 0)
	for id := int64(1); id < r.nextID; id++ {
		if item, ok := r.items[id]; ok && item.UserID == userID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (r *fakeFavoriteRepo) GetByOwner(ctx context.Context, userID int, id int64) (types.FavoriteItem, error) {
	item, ok := r.items[id]
	if !ok || item.UserID != userID {
		return types.FavoriteItem{}, store.ErrNotFound
	}
	return item, nil
}

func (r *fakeFavoriteRepo) GetByExternal(ctx context.Context, userID int, externalID, kind string) (types.FavoriteItem, error) {
	if externalID == "" {
		return types.FavoriteItem{}, store.ErrNotFound
	}
	if r.hideFromLookupOnce {
		r.hideFromLookupOnce = false
		return types.FavoriteItem{}, store.ErrNotFound
	}
	for _, item := range r.items {
		if item.UserID == userID && item.ExternalID == externalID && item.Kind == kind {
			return item, nil
		}
	}
	return types.FavoriteItem{}, store.ErrNotFound
}

func (r *fakeFavoriteRepo) Create(ctx context.Context, item types.FavoriteItem) (types.FavoriteItem, error) {
	if item.ExternalID != "" {
		if _, err := r.GetByExternal(ctx, item.UserID, item.ExternalID, item.Kind); err == nil {
			return types.FavoriteItem{}, store.ErrDuplicate
		}
	}
	now := time.Now()
	item.ID = r.nextID
	item.CreatedAt = now
	item.UpdatedAt = now
	r.nextID++
	r.items[item.ID] = item
	return item, nil
}

func (r *fakeFavoriteRepo) Update(ctx context.Context, item types.FavoriteItem) (types.FavoriteItem, error) {
	existing, ok := r.items[item.ID]
	if !ok || existing.UserID != item.UserID {
		return types.FavoriteItem{}, store.ErrNotFound
	}
	item.UpdatedAt = time.Now()
	r.items[item.ID] = item
	return item, nil
}

func (r *fakeFavoriteRepo) Delete(ctx context.Context, userID int, id int64) error {
	item, ok := r.items[id]
	if !ok || item.UserID != userID {
		return store.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func TestCreateRequiresTitleAndKind(t *testing.T) {
	svc := NewFavoriteService(newFakeFavoriteRepo())

	_, err := svc.Create(context.Background(), 1, types.FavoriteItem{Kind: types.KindBook})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing title, got %v", err)
	}

	_, err = svc.Create(context.Background(), 1, types.FavoriteItem{Title: "Dune", Kind: "vinyl"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown kind, got %v", err)
	}
}

func TestCreateDefaultsStatus(t *testing.T) {
	svc := NewFavoriteService(newFakeFavoriteRepo())

	result, err := svc.Create(context.Background(), 1, types.FavoriteItem{
		Title: "Dune",
		Kind:  types.KindBook,
	})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if result.Existed {
		t.Fatalf("expected a fresh insert")
	}
	if result.Item.Status != types.StatusPlanToWatch {
		t.Fatalf("expected default status %q, got %q", types.StatusPlanToWatch, result.Item.Status)
	}
	if result.Item.UserID != 1 {
		t.Fatalf("expected owner to be set from the caller, got %d", result.Item.UserID)
	}
}

func TestCreateIsIdempotentOnExternalID(t *testing.T) {
	svc := NewFavoriteService(newFakeFavoriteRepo())

	first, err := svc.Create(context.Background(), 1, types.FavoriteItem{
		Title:      "Dune",
		Kind:       types.KindBook,
		ExternalID: "b1",
	})
	if err != nil {
		t.Fatalf("first create returned error: %v", err)
	}

	second, err := svc.Create(context.Background(), 1, types.FavoriteItem{
		Title:      "Dune (again)",
		Kind:       types.KindBook,
		ExternalID: "b1",
	})
	if err != nil {
		t.Fatalf("second create returned error: %v", err)
	}
	if !second.Existed {
		t.Fatalf("expected second create to report an existing favorite")
	}
	if second.Item.ID != first.Item.ID {
		t.Fatalf("expected the original favorite back, got id %d want %d", second.Item.ID, first.Item.ID)
	}
	if second.Item.Title != "Dune" {
		t.Fatalf("expected stored title to win, got %q", second.Item.Title)
	}
}

func TestCreateResolvesInsertRace(t *testing.T) {
	repo := newFakeFavoriteRepo()
	svc := NewFavoriteService(repo)

	// Seed the row that won the race and hide it from the pre-check, so
	// the service's insert trips over the unique constraint.
	winner, err := repo.Create(context.Background(), types.FavoriteItem{
		UserID:     1,
		Title:      "Dune",
		Kind:       types.KindBook,
		ExternalID: "b1",
		Status:     types.StatusPlanToWatch,
	})
	if err != nil {
		t.Fatalf("seed create returned error: %v", err)
	}
	repo.hideFromLookupOnce = true

	result, err := svc.Create(context.Background(), 1, types.FavoriteItem{
		Title:      "Dune",
		Kind:       types.KindBook,
		ExternalID: "b1",
	})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if !result.Existed {
		t.Fatalf("expected the race loser to report an existing favorite")
	}
	if result.Item.ID != winner.ID {
		t.Fatalf("expected the winning row back, got id %d want %d", result.Item.ID, winner.ID)
	}
}

func TestCreateWithoutExternalIDNeverDedupes(t *testing.T) {
	svc := NewFavoriteService(newFakeFavoriteRepo())

	first, err := svc.Create(context.Background(), 1, types.FavoriteItem{Title: "Notes", Kind: types.KindBook})
	if err != nil {
		t.Fatalf("first create returned error: %v", err)
	}
	second, err := svc.Create(context.Background(), 1, types.FavoriteItem{Title: "Notes", Kind: types.KindBook})
	if err != nil {
		t.Fatalf("second create returned error: %v", err)
	}
	if second.Existed || second.Item.ID == first.Item.ID {
		t.Fatalf("expected two distinct favorites for items without external ids")
	}
}

func TestCreateScopesDedupeToOwner(t *testing.T) {
	svc := NewFavoriteService(newFakeFavoriteRepo())

	if _, err := svc.Create(context.Background(), 1, types.FavoriteItem{
		Title: "Dune", Kind: types.KindBook, ExternalID: "b1",
	}); err != nil {
		t.Fatalf("create for first user returned error: %v", err)
	}

	result, err := svc.Create(context.Background(), 2, types.FavoriteItem{
		Title: "Dune", Kind: types.KindBook, ExternalID: "b1",
	})
	if err != nil {
		t.Fatalf("create for second user returned error: %v", err)
	}
	if result.Existed {
		t.Fatalf("expected another user's favorite to be invisible for dedupe")
	}
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	repo := newFakeFavoriteRepo()
	svc := NewFavoriteService(repo)

	created, err := svc.Create(context.Background(), 1, types.FavoriteItem{
		Title:       "Dune",
		Kind:        types.KindBook,
		Description: "Desert planet",
		Notes:       "start with this one",
	})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	rating := 4.5
	status := types.StatusCompleted
	updated, err := svc.Update(context.Background(), 1, created.Item.ID, FavoritePatch{
		Rating: &rating,
		Status: &status,
	})
	if err != nil {
		t.Fatalf("update returned error: %v", err)
	}

	if updated.Rating == nil || *updated.Rating != 4.5 {
		t.Fatalf("expected rating 4.5, got %v", updated.Rating)
	}
	if updated.Status != types.StatusCompleted {
		t.Fatalf("expected status updated, got %q", updated.Status)
	}
	if updated.Title != "Dune" || updated.Description != "Desert planet" || updated.Notes != "start with this one" {
		t.Fatalf("expected untouched fields to survive, got %+v", updated)
	}
	if !updated.UpdatedAt.After(created.Item.UpdatedAt) && !updated.UpdatedAt.Equal(created.Item.UpdatedAt) {
		t.Fatalf("expected updated_at to be refreshed")
	}
}

func TestUpdateRejectsInvalidFields(t *testing.T) {
	svc := NewFavoriteService(newFakeFavoriteRepo())

	created, err := svc.Create(context.Background(), 1, types.FavoriteItem{Title: "Dune", Kind: types.KindBook})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	empty := "  "
	if _, err := svc.Update(context.Background(), 1, created.Item.ID, FavoritePatch{Title: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank title, got %v", err)
	}

	badStatus := "abandoned"
	if _, err := svc.Update(context.Background(), 1, created.Item.ID, FavoritePatch{Status: &badStatus}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown status, got %v", err)
	}
}

func TestUpdateIsOwnerScoped(t *testing.T) {
	svc := NewFavoriteService(newFakeFavoriteRepo())

	created, err := svc.Create(context.Background(), 1, types.FavoriteItem{Title: "Dune", Kind: types.KindBook})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	title := "Hijacked"
	if _, err := svc.Update(context.Background(), 2, created.Item.ID, FavoritePatch{Title: &title}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-owner update, got %v", err)
	}
}

func TestDeleteIsOwnerScoped(t *testing.T) {
	svc := NewFavoriteService(newFakeFavoriteRepo())

	created, err := svc.Create(context.Background(), 1, types.FavoriteItem{Title: "Dune", Kind: types.KindBook})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	if err := svc.Delete(context.Background(), 2, created.Item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-owner delete, got %v", err)
	}

	if err := svc.Delete(context.Background(), 1, created.Item.ID); err != nil {
		t.Fatalf("owner delete returned error: %v", err)
	}

	items, err := svc.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty list after delete, got %d items", len(items))
	}
}
