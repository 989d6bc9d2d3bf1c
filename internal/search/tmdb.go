package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/medialog/apiserver/types"
	"golang.org/x/time/rate"
)

const (
	tmdbBaseURL     = "https://api.themoviedb.org/3"
	tmdbImageBase   = "https://image.tmdb.org/t/p/w500"
	tmdbRatePerSec  = 4
	providerTimeout = 10 * time.Second
)

// TMDBClient searches The Movie Database for movies.
type TMDBClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTMDBClient constructs a TMDB provider with the given API key.
func NewTMDBClient(apiKey string) *TMDBClient {
	return &TMDBClient{
		apiKey:     apiKey,
		baseURL:    tmdbBaseURL,
		httpClient: &http.Client{Timeout: providerTimeout},
		limiter:    rate.NewLimiter(tmdbRatePerSec, tmdbRatePerSec),
	}
}

func (c *TMDBClient) Kind() string {
	return types.KindMovie
}

type tmdbSearchResponse struct {
	Results []struct {
		ID          int      `json:"id"`
		Title       string   `json:"title"`
		Overview    string   `json:"overview"`
		PosterPath  string   `json:"poster_path"`
		VoteAverage *float64 `json:"vote_average"`
	} `json:"results"`
}

func (c *TMDBClient) Search(ctx context.Context, query string) ([]types.CandidateItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", query)

	endpoint := fmt.Sprintf("%s/search/movie?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tmdb search returned status %d", resp.StatusCode)
	}

	var payload tmdbSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	items := make([]types.CandidateItem, 0, len(payload.Results))
	for _, result := range payload.Results {
		posterPath := ""
		if result.PosterPath != "" {
			posterPath = tmdbImageBase + result.PosterPath
		}
		items = append(items, types.CandidateItem{
			ExternalID:  strconv.Itoa(result.ID),
			Title:       result.Title,
			Kind:        types.KindMovie,
			Description: result.Overview,
			PosterPath:  posterPath,
			Rating:      result.VoteAverage,
		})
	}
	return items, nil
}
