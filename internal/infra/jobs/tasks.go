// Package jobs wires the execution pipeline to the Asynq job queue.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names.
const (
	TypeWorkflowExecution = "workflow:execute"
)

// Queue names.
const (
	QueueExecutions = "executions"
	QueueDefault    = "default"
)

// ExecutionPayload is the payload for a workflow execution task.
type ExecutionPayload struct {
	ExecutionID    string `json:"execution_id"`
	WorkflowID     string `json:"workflow_id"`
	OrganizationID string `json:"organization_id"`
}

// NewExecutionTask creates a workflow execution task.
//
// maxRetries is the queue retry budget: the task runs maxRetries+1 times
// in total before it is moved to the archive.
func NewExecutionTask(payload ExecutionPayload, maxRetries int, timeout time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal execution payload: %w", err)
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	return asynq.NewTask(TypeWorkflowExecution, data,
		asynq.MaxRetry(maxRetries),
		asynq.Timeout(timeout),
		asynq.Queue(QueueExecutions),
	), nil
}
