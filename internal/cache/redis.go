// Package cache кэш снимков статуса заданий в Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/video-downloader/internal/config"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// Cache клиент Redis.
type Cache struct {
	Db  *redis.Client
	ttl time.Duration
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ttl := cfg.StatusTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{Db: db, ttl: ttl}, nil
}

// Get читает значение по ключу в result. false, если ключа нет.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err = json.Unmarshal([]byte(val), result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение в JSON.
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = c.Db.Set(ctx, key, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate удаляет ключ.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	const op = "cache.Invalidate"
	if err := c.Db.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает соединение.
func (c *Cache) Close() error {
	return c.Db.Close()
}

func jobKey(jobID string) string {
	return "job:" + jobID
}

// GetJob снимок задания из кэша.
func (c *Cache) GetJob(ctx context.Context, jobID string) (*models.Job, bool, error) {
	var job models.Job
	found, err := c.Get(ctx, jobKey(jobID), &job)
	if err != nil || !found {
		return nil, false, err
	}
	return &job, true, nil
}

// SetJob кэширует снимок задания. TTL не превышает оставшегося срока жизни задания.
func (c *Cache) SetJob(ctx context.Context, job *models.Job) error {
	ttl := c.ttl
	if left := time.Until(job.ExpiresAt); left < ttl {
		ttl = left
	}
	if ttl <= 0 {
		return nil
	}
	return c.Set(ctx, jobKey(job.ID), job, ttl)
}

// InvalidateJob удаляет снимок задания.
func (c *Cache) InvalidateJob(ctx context.Context, jobID string) error {
	return c.Invalidate(ctx, jobKey(jobID))
}
