package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/netpad/api/pkg/logger"
)

// ExecutionProcessor runs a single workflow execution to a terminal state.
type ExecutionProcessor interface {
	Process(ctx context.Context, executionID string) error
}

// WorkerConfig holds the configuration for the job worker.
type WorkerConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
}

// Worker processes background jobs.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	logger    *logger.Logger
	processor ExecutionProcessor
}

// NewWorker creates a new background job worker.
func NewWorker(cfg WorkerConfig, processor ExecutionProcessor, log *logger.Logger) (*Worker, error) {
	if processor == nil {
		return nil, fmt.Errorf("execution processor is required")
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				QueueExecutions: 10,
				QueueDefault:    2,
			},
		},
	)

	w := &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		logger:    log.With("component", "job_worker"),
		processor: processor,
	}
	w.mux.HandleFunc(TypeWorkflowExecution, w.handleExecution)

	return w, nil
}

// handleExecution unpacks the payload and hands the execution to the processor.
func (w *Worker) handleExecution(ctx context.Context, task *asynq.Task) error {
	var payload ExecutionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Malformed payloads will never succeed; skip retries.
		return fmt.Errorf("unmarshal execution payload: %v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("processing execution",
		"execution_id", payload.ExecutionID,
		"workflow_id", payload.WorkflowID,
	)

	if err := w.processor.Process(ctx, payload.ExecutionID); err != nil {
		w.logger.Error("execution processing failed",
			"execution_id", payload.ExecutionID,
			"error", err,
		)
		return err
	}
	return nil
}

// Start starts the worker.
func (w *Worker) Start() error {
	w.logger.Info("starting job worker")
	return w.server.Start(w.mux)
}

// Stop stops the worker gracefully.
func (w *Worker) Stop() {
	w.logger.Info("stopping job worker")
	w.server.Shutdown()
}

// Run runs the worker until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Start(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker error: %w", err)
		}
		return nil
	}
}
