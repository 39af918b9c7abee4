// Package objectstore архивирует готовые файлы в S3-совместимое хранилище
// и выдаёт на них временные ссылки.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/magabrotheeeer/video-downloader/internal/config"
)

// Client обёртка над S3 клиентом.
type Client struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	linkTTL       time.Duration
}

// NewClient создаёт клиент по настройкам object_storage.
func NewClient(ctx context.Context, cfg config.ObjectStorage) (*Client, error) {
	const op = "objectstore.NewClient"
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%s: %w", op, errors.New("credentials and bucket must be set"))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load aws config: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	linkTTL := cfg.LinkTTL
	if linkTTL <= 0 {
		linkTTL = time.Hour
	}
	return &Client{
		s3Client:      client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		linkTTL:       linkTTL,
	}, nil
}

// Upload загружает локальный файл под ключом key.
func (c *Client) Upload(ctx context.Context, key, path, contentType string) error {
	const op = "objectstore.Upload"
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PresignDownload временная ссылка на скачивание с заданным именем файла.
func (c *Client) PresignDownload(ctx context.Context, key, filename string) (string, error) {
	const op = "objectstore.PresignDownload"
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}
	if filename != "" {
		input.ResponseContentDisposition = aws.String(fmt.Sprintf("attachment; filename=%q", filename))
	}
	req, err := c.presignClient.PresignGetObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = c.linkTTL
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return req.URL, nil
}

// Delete удаляет объект.
func (c *Client) Delete(ctx context.Context, key string) error {
	const op = "objectstore.Delete"
	if key == "" {
		return nil
	}
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
