package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medialog/apiserver/internal/search"
	"github.com/medialog/apiserver/types"
)

// SearchHandler exposes the catalog search gateway.
type SearchHandler struct {
	gateway *search.Gateway
}

// NewSearchHandler constructs a handler over the given gateway.
func NewSearchHandler(gateway *search.Gateway) *SearchHandler {
	return &SearchHandler{gateway: gateway}
}

// SearchRouter registers the search route on the given router.
func SearchRouter(r chi.Router, gateway *search.Gateway) {
	handler := NewSearchHandler(gateway)

	r.Get("/", handler.Search)
}

// Search fans the query out to the external catalogs. An empty query yields
// an empty result set; an unknown type filter yields one as well, since no
// provider matches it.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	kind := r.URL.Query().Get("type")

	results := h.gateway.Search(r.Context(), query, kind)

	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

type SearchResponse struct {
	Results []types.CandidateItem `json:"results"`
}
