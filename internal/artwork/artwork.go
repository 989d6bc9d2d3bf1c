package artwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/medialog/apiserver/types"
)

const (
	fetchTimeout   = 15 * time.Second
	maxPosterBytes = 5 << 20

	// A poster key is only ever written once, so clients may cache the
	// served bytes for a day.
	posterCacheControl = "public, max-age=86400"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Service caches favorite poster images in object storage so artwork stays
// available after the origin catalog moves or drops it. Caching is
// best-effort: a fetch or store failure is logged and the favorite is left
// without cached artwork.
type Service struct {
	storage    ObjectStorage
	httpClient *http.Client
	logger     *log.Logger
}

// NewService constructs a Service over the given storage backend.
func NewService(storage ObjectStorage, logger *log.Logger) *Service {
	return &Service{
		storage:    storage,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger,
	}
}

// EnsureBucket ensures the configured bucket exists.
func (s *Service) EnsureBucket(ctx context.Context) error {
	return s.storage.EnsureBucket(ctx)
}

// CachePoster fetches the favorite's poster URL and stores it under the
// owner-scoped key. Favorites without an http(s) poster URL are skipped.
func (s *Service) CachePoster(ctx context.Context, item types.FavoriteItem) {
	posterURL := strings.TrimSpace(item.PosterPath)
	if !strings.HasPrefix(posterURL, "http://") && !strings.HasPrefix(posterURL, "https://") {
		return
	}

	data, contentType, err := s.fetchPoster(ctx, posterURL)
	if err != nil {
		s.logger.Warn("failed to fetch poster",
			"favorite_id", item.ID, "url", posterURL, "err", err)
		return
	}

	key := posterKey(item.UserID, item.ID)
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		s.logger.Warn("failed to store poster", "favorite_id", item.ID, "err", err)
	}
}

// Open streams the cached poster for the owner's favorite.
func (s *Service) Open(ctx context.Context, userID int, favoriteID int64) (io.ReadCloser, error) {
	return s.storage.Get(ctx, posterKey(userID, favoriteID))
}

// Remove deletes the cached poster for the owner's favorite, if any.
func (s *Service) Remove(ctx context.Context, userID int, favoriteID int64) {
	if err := s.storage.Delete(ctx, posterKey(userID, favoriteID)); err != nil {
		s.logger.Debug("failed to delete poster",
			"favorite_id", favoriteID, "err", err)
	}
}

func (s *Service) fetchPoster(ctx context.Context, posterURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, posterURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("poster fetch returned status %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxPosterBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxPosterBytes {
		return nil, "", errors.New("poster too large")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

func posterKey(userID int, favoriteID int64) string {
	return fmt.Sprintf("posters/%d/%d", userID, favoriteID)
}
