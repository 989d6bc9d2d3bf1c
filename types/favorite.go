package types

import "time"

// Kinds of media a favorite can track.
const (
	KindMovie = "movie"
	KindBook  = "book"
	KindGame  = "game"
)

// Consumption statuses of a favorite.
const (
	StatusPlanToWatch = "plan_to_watch"
	StatusWatching    = "watching"
	StatusCompleted   = "completed"
)

// FavoriteItem is a user's tracked entry for an external media item.
type FavoriteItem struct {
	// ID is the unique identifier of the favorite, assigned on creation.
	ID int64 `json:"id" db:"id"`

	// UserID references the owning user. Every operation on a favorite
	// is scoped to its owner.
	UserID int `json:"user_id" db:"user_id"`

	// Title is the display title of the tracked item.
	Title string `json:"title" db:"title"`

	// Kind is one of KindMovie, KindBook, KindGame.
	Kind string `json:"kind" db:"kind"`

	// Description is an optional summary of the item.
	Description string `json:"description" db:"description"`

	// ExternalID identifies the item in its origin catalog. Empty for
	// manually entered items.
	ExternalID string `json:"external_id" db:"external_id"`

	// PosterPath is an optional URL to the item's artwork.
	PosterPath string `json:"poster_path" db:"poster_path"`

	// Rating is the user's rating. Nil when unrated; the scale is not
	// validated.
	Rating *float64 `json:"rating" db:"rating"`

	// Status is one of StatusPlanToWatch, StatusWatching, StatusCompleted.
	Status string `json:"status" db:"status"`

	// Notes is optional free text.
	Notes string `json:"notes" db:"notes"`

	// CreatedAt is the timestamp when the favorite was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent mutation.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidKind reports whether kind names a supported media kind.
func ValidKind(kind string) bool {
	switch kind {
	case KindMovie, KindBook, KindGame:
		return true
	}
	return false
}

// ValidStatus reports whether status names a supported consumption status.
func ValidStatus(status string) bool {
	switch status {
	case StatusPlanToWatch, StatusWatching, StatusCompleted:
		return true
	}
	return false
}
