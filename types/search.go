package types

// CandidateItem is a search result from an external catalog. It is not yet
// persisted; clients submit one as a new favorite.
type CandidateItem struct {
	// ExternalID identifies the item in its origin catalog.
	ExternalID string `json:"external_id"`

	// Title is the item's title as reported by the catalog.
	Title string `json:"title"`

	// Kind is the media kind the providing catalog serves.
	Kind string `json:"kind"`

	// Description is the catalog's summary, when available.
	Description string `json:"description"`

	// PosterPath is a URL to the item's artwork, when available.
	PosterPath string `json:"poster_path"`

	// Rating is the catalog's aggregate rating. Nil when the catalog
	// reports none.
	Rating *float64 `json:"rating"`
}
