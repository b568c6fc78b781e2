package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	StatusRoutingKey   = "scan.status"
	ProgressRoutingKey = "scan.progress"

	progressPublishTimeout = 2 * time.Second
)

type Publisher struct {
	channel  *amqp.Channel
	exchange string
}

// NewPublisher opens a channel and declares the durable topic exchange scan
// events are sent to.
func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, body []byte, mode uint8) error {
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: mode,
			Timestamp:    time.Now().UTC(),
		},
	)
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

type StatusPublisher struct {
	pub *Publisher
}

func NewStatusPublisher(pub *Publisher) *StatusPublisher {
	return &StatusPublisher{pub: pub}
}

func (sp *StatusPublisher) PublishStatus(ctx context.Context, msg []byte) error {
	return sp.pub.publish(ctx, StatusRoutingKey, msg, amqp.Persistent)
}

// ProgressPublisher sends per-frame progress as transient messages. Publish
// failures are logged and dropped.
type ProgressPublisher struct {
	pub    *Publisher
	logger *zap.Logger
}

func NewProgressPublisher(pub *Publisher, logger *zap.Logger) *ProgressPublisher {
	return &ProgressPublisher{pub: pub, logger: logger}
}

func (pp *ProgressPublisher) ReportProgress(ctx context.Context, p entity.Progress) {
	body, err := json.Marshal(entity.NewScanProgressMessage(p))
	if err != nil {
		pp.logger.Error("failed to marshal progress", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), progressPublishTimeout)
	defer cancel()
	if err := pp.pub.publish(ctx, ProgressRoutingKey, body, amqp.Transient); err != nil {
		pp.logger.Warn("failed to publish progress",
			zap.String("run_id", p.RunID.String()),
			zap.Error(err),
		)
	}
}
