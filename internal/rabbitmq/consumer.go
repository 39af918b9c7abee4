package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
)

// ConsumerMessage создает потребителя сообщений из очереди RabbitMQ.
// Сообщения обрабатываются параллельно, не более concurrency одновременно.
// Ошибка handler возвращает сообщение в очередь, успех подтверждает его.
// Возвращённая функция ждёт завершения уже запущенных обработчиков.
func ConsumerMessage(
	ctx context.Context,
	log *slog.Logger,
	ch *amqp.Channel,
	queueName string,
	concurrency int,
	handler func(context.Context, []byte) error,
) (wait func(), err error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if concurrency < 1 {
		concurrency = 1
	}
	log = log.With(slog.String("op", op), slog.String("queue", queueName))

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					log.Info("delivery channel closed")
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer wg.Done()
					defer func() { <-sem }()
					if err := handler(ctx, d.Body); err != nil {
						log.Warn("handler failed, requeue", sl.Err(err))
						if nackErr := d.Nack(false, true); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := d.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return wg.Wait, nil
}
