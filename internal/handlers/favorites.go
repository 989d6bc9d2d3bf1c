package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medialog/apiserver/internal/artwork"
	"github.com/medialog/apiserver/internal/events"
	"github.com/medialog/apiserver/internal/services"
	"github.com/medialog/apiserver/internal/store"
	"github.com/medialog/apiserver/types"
)

// FavoritesHandler provides HTTP handlers for a user's favorites. Every
// route requires an authenticated subject; the owner is always taken from
// the token, never from the payload.
type FavoritesHandler struct {
	favoriteService *services.FavoriteService
	events          *events.Events
	artwork         *artwork.Service
}

// NewFavoritesHandler constructs a handler with the provided dependencies.
// events and artwork may be nil when those subsystems are disabled.
func NewFavoritesHandler(favoriteService *services.FavoriteService, ev *events.Events, aw *artwork.Service) *FavoritesHandler {
	return &FavoritesHandler{
		favoriteService: favoriteService,
		events:          ev,
		artwork:         aw,
	}
}

// FavoritesRouter registers favorites routes on the given router.
func FavoritesRouter(r chi.Router, favoriteService *services.FavoriteService, ev *events.Events, aw *artwork.Service) {
	handler := NewFavoritesHandler(favoriteService, ev, aw)

	r.Get("/", handler.ListFavorites)
	r.Post("/", handler.CreateFavorite)
	r.Route("/{favoriteID}", func(r chi.Router) {
		r.Put("/", handler.UpdateFavorite)
		r.Delete("/", handler.DeleteFavorite)
		r.Get("/artwork", handler.GetArtwork)
	})
}

func (h *FavoritesHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.favoriteService.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list favorites")
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// CreateFavorite persists a new favorite, or returns the existing one when
// the owner already tracks the same external catalog entry. A fresh insert
// answers 201; the idempotent replay answers 200 so clients can tell the
// two apart.
func (h *FavoritesHandler) CreateFavorite(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := h.favoriteService.Create(r.Context(), userID, types.FavoriteItem{
		Title:       req.Title,
		Kind:        req.Kind,
		Description: req.Description,
		ExternalID:  req.ExternalID,
		PosterPath:  req.PosterPath,
		Rating:      req.Rating,
		Status:      req.Status,
		Notes:       req.Notes,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "title and a valid kind are required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create favorite")
		return
	}

	if result.Existed {
		writeJSON(w, http.StatusOK, result.Item)
		return
	}

	h.events.FavoriteCreated(r.Context(), result.Item)
	if h.artwork != nil {
		h.artwork.CachePoster(r.Context(), result.Item)
	}

	writeJSON(w, http.StatusCreated, result.Item)
}

func (h *FavoritesHandler) UpdateFavorite(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseFavoriteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch services.FavoritePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.favoriteService.Update(r.Context(), userID, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "favorite not found")
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid favorite fields")
		case errors.Is(err, store.ErrDuplicate):
			writeError(w, http.StatusConflict, "favorite already tracks that item")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update favorite")
		}
		return
	}

	h.events.FavoriteUpdated(r.Context(), updated)

	writeJSON(w, http.StatusOK, updated)
}

func (h *FavoritesHandler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseFavoriteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.favoriteService.Get(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "favorite not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete favorite")
		return
	}

	if err := h.favoriteService.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "favorite not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete favorite")
		return
	}

	h.events.FavoriteDeleted(r.Context(), item)
	if h.artwork != nil {
		h.artwork.Remove(r.Context(), userID, id)
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetArtwork streams the cached poster for the owner's favorite.
func (h *FavoritesHandler) GetArtwork(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseFavoriteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.artwork == nil {
		writeError(w, http.StatusNotFound, "artwork not found")
		return
	}

	if _, err := h.favoriteService.Get(r.Context(), userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "favorite not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load favorite")
		return
	}

	reader, err := h.artwork.Open(r.Context(), userID, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "artwork not found")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

type CreateFavoriteRequest struct {
	Title       string   `json:"title"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	ExternalID  string   `json:"external_id"`
	PosterPath  string   `json:"poster_path"`
	Rating      *float64 `json:"rating"`
	Status      string   `json:"status"`
	Notes       string   `json:"notes"`
}

func parseFavoriteID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "favoriteID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid favorite id")
	}
	return id, nil
}
