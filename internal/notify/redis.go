package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultChannelPrefix is used when no prefix is configured.
	DefaultChannelPrefix = "scry:notifications"

	// seqTTL bounds how long a sequence key outlives a task that was never cleaned up.
	seqTTL = 24 * time.Hour
)

// RedisSink publishes notifications as JSON on a Redis channel per project:
// "<prefix>:<projectID>". Per-task sequence numbers are kept in Redis so that
// subscribers on other processes can order and deduplicate messages.
type RedisSink struct {
	client redis.Cmdable
	prefix string
	logger *slog.Logger
}

var _ Sink = (*RedisSink)(nil)

// NewRedisSink creates a sink publishing through client.
func NewRedisSink(client redis.Cmdable, prefix string, logger *slog.Logger) (*RedisSink, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSink{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "redis_sink"),
	}, nil
}

// Channel returns the channel notifications for projectID are published on.
func (s *RedisSink) Channel(projectID uuid.UUID) string {
	return s.prefix + ":" + projectID.String()
}

func (s *RedisSink) seqKey(taskID uuid.UUID) string {
	return s.prefix + ":seq:" + taskID.String()
}

// NotifyStarted implements Sink.
func (s *RedisSink) NotifyStarted(ctx context.Context, task Task) error {
	return s.publish(ctx, TypeStarted, task, func(n *Notification) {})
}

// NotifyEvent implements Sink.
func (s *RedisSink) NotifyEvent(ctx context.Context, task Task, event generation.Event) error {
	return s.publish(ctx, TypeEvent, task, func(n *Notification) { n.Event = &event })
}

// NotifyComplete implements Sink.
func (s *RedisSink) NotifyComplete(ctx context.Context, task Task, summary string) error {
	return s.publish(ctx, TypeComplete, task, func(n *Notification) { n.Message = summary })
}

// NotifyError implements Sink.
func (s *RedisSink) NotifyError(ctx context.Context, task Task, message string) error {
	return s.publish(ctx, TypeError, task, func(n *Notification) { n.Message = message })
}

// CleanupTask implements Sink. It deletes the task's sequence key.
func (s *RedisSink) CleanupTask(ctx context.Context, taskID uuid.UUID) error {
	if err := s.client.Del(ctx, s.seqKey(taskID)).Err(); err != nil {
		return fmt.Errorf("failed to delete sequence key: %w", err)
	}
	return nil
}

func (s *RedisSink) publish(ctx context.Context, typ Type, task Task, fill func(*Notification)) error {
	key := s.seqKey(task.ID)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, seqTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to advance sequence: %w", err)
	}

	n := newNotification(typ, task, incr.Val())
	fill(&n)

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := s.client.Publish(ctx, s.Channel(task.ProjectID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	s.logger.Debug("published notification",
		"task_id", task.ID,
		"type", typ,
		"seq", n.Seq)
	return nil
}
