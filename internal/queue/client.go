package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/rodneygagnon/qckstrt/internal/config"
)

type Client struct {
	client *asynq.Client
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// DispatchExtraction enqueues the extraction stage for a document.
func (c *Client) DispatchExtraction(ctx context.Context, documentID uuid.UUID) error {
	return c.enqueue(ctx, TypeDocumentExtract, DocumentPayload{DocumentID: documentID.String()},
		asynq.MaxRetry(3), asynq.Timeout(10*time.Minute))
}

// DispatchEmbedding enqueues an embedding retry for a document.
func (c *Client) DispatchEmbedding(ctx context.Context, documentID uuid.UUID) error {
	return c.enqueue(ctx, TypeDocumentEmbed, DocumentPayload{DocumentID: documentID.String()},
		asynq.MaxRetry(3), asynq.Timeout(5*time.Minute))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	opts = append(opts, asynq.Queue(QueueIngestion))
	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
