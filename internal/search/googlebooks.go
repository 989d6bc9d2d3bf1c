package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/medialog/apiserver/types"
	"golang.org/x/time/rate"
)

const (
	googleBooksBaseURL    = "https://www.googleapis.com/books/v1"
	googleBooksRatePerSec = 2
	googleBooksMaxResults = "20"
)

// GoogleBooksClient searches the Google Books volumes API. The API works
// without a key at a lower quota.
type GoogleBooksClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGoogleBooksClient constructs a Google Books provider. apiKey may be
// empty.
func NewGoogleBooksClient(apiKey string) *GoogleBooksClient {
	return &GoogleBooksClient{
		apiKey:     apiKey,
		baseURL:    googleBooksBaseURL,
		httpClient: &http.Client{Timeout: providerTimeout},
		limiter:    rate.NewLimiter(googleBooksRatePerSec, googleBooksRatePerSec),
	}
}

func (c *GoogleBooksClient) Kind() string {
	return types.KindBook
}

type googleBooksResponse struct {
	Items []struct {
		ID         string `json:"id"`
		VolumeInfo struct {
			Title         string   `json:"title"`
			Description   string   `json:"description"`
			AverageRating *float64 `json:"averageRating"`
			ImageLinks    struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (c *GoogleBooksClient) Search(ctx context.Context, query string) ([]types.CandidateItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", googleBooksMaxResults)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	endpoint := fmt.Sprintf("%s/volumes?%s", c.baseURL, params.Encode())
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
		return nil, fmt.Errorf("google books search returned status %d", resp.StatusCode)
	}

	var payload googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	items := make([]types.CandidateItem, 0, len(payload.Items))
	for _, volume := range payload.Items {
		items = append(items, types.CandidateItem{
			ExternalID:  volume.ID,
			Title:       volume.VolumeInfo.Title,
			Kind:        types.KindBook,
			Description: volume.VolumeInfo.Description,
			PosterPath:  volume.VolumeInfo.ImageLinks.Thumbnail,
			Rating:      volume.VolumeInfo.AverageRating,
		})
	}
	return items, nil
}
