package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/netpad/api/pkg/domain/execution"
	"github.com/netpad/api/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client  *asynq.Client
	logger  *logger.Logger
	timeout time.Duration
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TaskTimeout is the per-execution processing deadline.
	TaskTimeout time.Duration
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) (*Client, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	timeout := cfg.TaskTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &Client{
		client:  asynq.NewClient(redisOpt),
		logger:  log.With("component", "job_client"),
		timeout: timeout,
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueExecution enqueues a workflow execution job. The retry budget
// comes from the workflow's retry policy at admission time.
func (c *Client) EnqueueExecution(ctx context.Context, e *execution.Execution) error {
	payload := ExecutionPayload{
		ExecutionID:    e.ID.String(),
		WorkflowID:     e.WorkflowID.String(),
		OrganizationID: e.OrganizationID.String(),
	}

	// MaxAttempts includes the first attempt; asynq counts retries only.
	task, err := NewExecutionTask(payload, e.MaxAttempts-1, c.timeout)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue execution",
			"execution_id", payload.ExecutionID,
			"workflow_id", payload.WorkflowID,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("execution queued",
		"task_id", info.ID,
		"execution_id", payload.ExecutionID,
		"workflow_id", payload.WorkflowID,
		"queue", info.Queue,
		"max_retry", info.MaxRetry,
	)
	return nil
}
