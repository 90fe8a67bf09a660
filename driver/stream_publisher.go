// ABOUTME: Redis Streams publisher for session completion events
// ABOUTME: Downstream consumers read the stream through a consumer group

package driver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"reader-sync/models"
)

// defaultStreamMaxLen bounds the session stream; old entries are trimmed
// approximately so XADD stays O(1).
const defaultStreamMaxLen = 4096

// StreamPublisher publishes session completion events to a Redis stream.
type StreamPublisher struct {
	client *redis.Client
	maxLen int64
	logger *slog.Logger
}

// NewStreamPublisher creates a publisher connected to the given Redis address.
func NewStreamPublisher(addr string, logger *slog.Logger) *StreamPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	return &StreamPublisher{
		client: client,
		maxLen: defaultStreamMaxLen,
		logger: logger,
	}
}

// NewStreamPublisherFromURL creates a publisher from a redis:// URL.
func NewStreamPublisherFromURL(rawURL string, logger *slog.Logger) (*StreamPublisher, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &StreamPublisher{
		client: redis.NewClient(opts),
		maxLen: defaultStreamMaxLen,
		logger: logger,
	}, nil
}

// Close closes the Redis connection.
func (p *StreamPublisher) Close() error {
	return p.client.Close()
}

// Publish appends one event to the session stream and returns the message ID.
func (p *StreamPublisher) Publish(ctx context.Context, event *models.SyncEvent) (string, error) {
	if event == nil {
		return "", errors.New("event is nil")
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: models.StreamKeySessions,
		MaxLen: p.maxLen,
		Approx: true,
		Values: eventToValues(event),
	}).Result()
	if err != nil {
		return "", err
	}

	p.logger.Debug("published sync event",
		"stream", models.StreamKeySessions,
		"message_id", id,
		"sync_id", event.SyncID)

	return id, nil
}

// PublishBatch appends multiple events in one pipeline and returns their
// message IDs.
func (p *StreamPublisher) PublishBatch(ctx context.Context, events []*models.SyncEvent) ([]string, error) {
	if len(events) == 0 {
		return []string{}, nil
	}

	pipe := p.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(events))

	for i, event := range events {
		if event == nil {
			continue
		}
		cmds[i] = pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: models.StreamKeySessions,
			MaxLen: p.maxLen,
			Approx: true,
			Values: eventToValues(event),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(events))
	for _, cmd := range cmds {
		if cmd != nil {
			ids = append(ids, cmd.Val())
		}
	}

	return ids, nil
}

// EnsureConsumerGroup creates a consumer group on the session stream,
// creating the stream itself if needed. An already existing group is not an
// error.
func (p *StreamPublisher) EnsureConsumerGroup(ctx context.Context, group, startID string) error {
	err := p.client.XGroupCreateMkStream(ctx, models.StreamKeySessions, group, startID).Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return err
	}
	return nil
}

// Ping checks if Redis is reachable.
func (p *StreamPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// eventToValues converts an event to the field map for XADD.
func eventToValues(event *models.SyncEvent) map[string]interface{} {
	return map[string]interface{}{
		"event_id":         event.EventID,
		"sync_id":          event.SyncID,
		"kind":             string(event.Kind),
		"status":           string(event.Status),
		"new_articles":     event.NewArticles,
		"deleted_articles": event.DeletedArticles,
		"failed_feeds":     event.FailedFeeds,
		"finished_at":      event.FinishedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
