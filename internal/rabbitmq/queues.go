package rabbitmq

import "github.com/magabrotheeeer/video-downloader/internal/config"

// QueueConfig очередь и ключ, по которому она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// DownloadQueues очереди заданий на загрузку.
func DownloadQueues(cfg config.RabbitMQ) []QueueConfig {
	return []QueueConfig{
		{QueueName: cfg.Queue, RoutingKey: cfg.RoutingKey},
	}
}
