package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const maxDialDelay = 30 * time.Second

type DialConfig struct {
	URL         string
	MaxAttempts int
	BaseDelay   time.Duration
}

// Dial connects to the broker, retrying with exponential backoff so the
// service can start before the broker is ready.
func Dial(ctx context.Context, cfg DialConfig, logger *zap.Logger) (*amqp.Connection, error) {
	attempts := max(cfg.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := amqp.Dial(cfg.URL)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		delay := backoff(cfg.BaseDelay, attempt)
		logger.Warn("rabbitmq not reachable, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("dial rabbitmq: %w", lastErr)
}

func backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt && delay < maxDialDelay; i++ {
		delay *= 2
	}
	return min(delay, maxDialDelay)
}
