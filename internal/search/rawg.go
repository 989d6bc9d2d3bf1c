package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/medialog/apiserver/types"
	"golang.org/x/time/rate"
)

const (
	rawgBaseURL    = "https://api.rawg.io/api"
	rawgRatePerSec = 2
)

// RAWGClient searches the RAWG video game database.
type RAWGClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewRAWGClient constructs a RAWG provider with the given API key.
func NewRAWGClient(apiKey string) *RAWGClient {
	return &RAWGClient{
		apiKey:     apiKey,
		baseURL:    rawgBaseURL,
		httpClient: &http.Client{Timeout: providerTimeout},
		limiter:    rate.NewLimiter(rawgRatePerSec, rawgRatePerSec),
	}
}

func (c *RAWGClient) Kind() string {
	return types.KindGame
}

type rawgSearchResponse struct {
	Results []struct {
		ID              int      `json:"id"`
		Name            string   `json:"name"`
		BackgroundImage string   `json:"background_image"`
		Rating          *float64 `json:"rating"`
	} `json:"results"`
}

func (c *RAWGClient) Search(ctx context.Context, query string) ([]types.CandidateItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("search", query)

	endpoint := fmt.Sprintf("%s/games?%s", c.baseURL, params.Encode())
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
		return nil, fmt.Errorf("rawg search returned status %d", resp.StatusCode)
	}

	var payload rawgSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	items := make([]types.CandidateItem, 0, len(payload.Results))
	for _, result := range payload.Results {
		items = append(items, types.CandidateItem{
			ExternalID: strconv.Itoa(result.ID),
			Title:      result.Name,
			Kind:       types.KindGame,
			PosterPath: result.BackgroundImage,
			Rating:     result.Rating,
		})
	}
	return items, nil
}
