// Package notify delivers notifications handed over by the engine.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
)

// Notifier delivers a single notification.
type Notifier interface {
	Send(ctx context.Context, n domain.Notification) error
}

// RedisNotifier publishes notifications as JSON on a Redis channel for the
// delivery workers subscribed to it.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier builds a publisher on channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// Send publishes the notification.
func (r *RedisNotifier) Send(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when Redis is not
// configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the notification.
func (l *LogNotifier) Send(_ context.Context, n domain.Notification) error {
	l.logger.Info("notification",
		zap.String("type", string(n.Type)),
		zap.String("ticket_id", n.TicketID),
		zap.String("recipient", n.Recipient),
		zap.String("subject", n.Subject),
	)
	return nil
}
