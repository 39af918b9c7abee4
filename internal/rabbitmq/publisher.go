package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingKey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Publisher ставит задания на загрузку в очередь.
type Publisher struct {
	mu         sync.Mutex
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

// NewPublisher создаёт Publisher поверх открытого канала.
func NewPublisher(ch *amqp.Channel, exchange, routingKey string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, routingKey: routingKey}
}

// Dispatch публикует сообщение с идентификатором задания.
func (p *Publisher) Dispatch(ctx context.Context, jobID string) error {
	const op = "rabbitmq.Dispatch"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := PublishMessage(p.ch, p.exchange, p.routingKey, models.JobMessage{JobID: jobID}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
