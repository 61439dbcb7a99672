package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"permit_ingest_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueue      = "default"
	defaultRunTimeout = 10 * time.Minute
	ingestMaxRetry    = 3
)

type Client struct {
	client  *asynq.Client
	queue   string
	timeout time.Duration
}

// IngestEnqueuer queues ingest runs for the worker.
type IngestEnqueuer interface {
	EnqueueIngest(ctx context.Context, payload IngestPayload) (string, error)
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:  asynq.NewClient(opt),
		queue:   queueName(cfg),
		timeout: runTimeout(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueIngest queues one run and returns the task id.
func (c *Client) EnqueueIngest(ctx context.Context, payload IngestPayload) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("scheduler client not configured")
	}

	task, err := NewIngestTask(payload)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task, ingestOptions(c.queue, c.timeout)...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func ingestOptions(queue string, timeout time.Duration) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.Timeout(timeout),
		asynq.MaxRetry(ingestMaxRetry),
	}
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return defaultQueue
}

func runTimeout(cfg config.SchedulerConfig) time.Duration {
	if timeout := cfg.GetIngestRunTimeout(); timeout > 0 {
		return timeout
	}
	return defaultRunTimeout
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
