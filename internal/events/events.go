package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/medialog/apiserver/types"
)

// ActivityChannel is the queue/topic favorite activity is published to.
const ActivityChannel = "favorites.activity"

// Activity event names.
const (
	EventCreated = "favorite.created"
	EventUpdated = "favorite.updated"
	EventDeleted = "favorite.deleted"
)

// Publisher defines the broker-agnostic publish operation.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Activity is the payload published for every favorite mutation.
type Activity struct {
	Event  string    `json:"event"`
	ID     int64     `json:"id"`
	UserID int       `json:"user_id"`
	Kind   string    `json:"kind"`
	Title  string    `json:"title"`
	At     time.Time `json:"at"`
}

// Events publishes favorite activity to a broker. Publishing is best-effort:
// failures are logged and never propagate to the request. A nil *Events is
// valid and publishes nothing.
type Events struct {
	publisher Publisher
	logger    *log.Logger
}

// New constructs an Events publisher over the given backend.
func New(publisher Publisher, logger *log.Logger) *Events {
	return &Events{
		publisher: publisher,
		logger:    logger,
	}
}

// FavoriteCreated publishes a created event for item.
func (e *Events) FavoriteCreated(ctx context.Context, item types.FavoriteItem) {
	e.publish(ctx, EventCreated, item)
}

// FavoriteUpdated publishes an updated event for item.
func (e *Events) FavoriteUpdated(ctx context.Context, item types.FavoriteItem) {
	e.publish(ctx, EventUpdated, item)
}

// FavoriteDeleted publishes a deleted event for item.
func (e *Events) FavoriteDeleted(ctx context.Context, item types.FavoriteItem) {
	e.publish(ctx, EventDeleted, item)
}

// Close closes the underlying backend.
func (e *Events) Close() error {
	if e == nil || e.publisher == nil {
		return nil
	}
	return e.publisher.Close()
}

func (e *Events) publish(ctx context.Context, event string, item types.FavoriteItem) {
	if e == nil || e.publisher == nil {
		return
	}

	payload, err := json.Marshal(Activity{
		Event:  event,
		ID:     item.ID,
		UserID: item.UserID,
		Kind:   item.Kind,
		Title:  item.Title,
		At:     time.Now(),
	})
	if err != nil {
		e.logger.Warn("failed to encode activity event", "event", event, "err", err)
		return
	}

	attrs := map[string]string{"event": event}
	if _, err := e.publisher.Publish(ctx, ActivityChannel, payload, attrs); err != nil {
		e.logger.Warn("failed to publish activity event",
			"event", event, "favorite_id", item.ID, "err", err)
	}
}
