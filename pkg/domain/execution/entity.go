// Package execution defines the execution record domain: the durable
// representation of a single workflow run, from admission to terminal state.
package execution

import (
	"time"

	"github.com/netpad/api/pkg/domain/shared"
)

// Status represents the lifecycle status of an execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the execution has finished.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// AllStatuses returns all valid execution statuses.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}
}

// Trigger describes what started the execution.
type Trigger struct {
	Type    string         `json:"type"`
	Source  string         `json:"source,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Progress summarizes node outcomes observed so far. Total counts only
// nodes that have reached an outcome, not the size of the canvas, so a
// pending execution reports zero across the board.
type Progress struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Total     int `json:"total"`
}

// Execution represents a single run of a workflow.
type Execution struct {
	ID             shared.ID
	WorkflowID     shared.ID
	OrganizationID shared.ID

	// WorkflowVersion pins the canvas version this run executed against.
	WorkflowVersion int

	Status  Status
	Trigger Trigger

	// Node outcomes by node key. A key appears in at most one list.
	CompletedNodes []string
	FailedNodes    []string
	SkippedNodes   []string

	// Error holds the failure reason for failed executions.
	Error string

	// MaxAttempts is the total attempt budget handed to the queue,
	// derived from the workflow retry policy at admission time.
	MaxAttempts int

	RequestedBy *shared.ID
	RemoteAddr  string

	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// New creates a pending execution for a workflow.
func New(workflowID, orgID shared.ID, workflowVersion int, trigger Trigger) (*Execution, error) {
	if workflowID.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "workflow_id is required", shared.ErrValidation)
	}
	if orgID.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "organization_id is required", shared.ErrValidation)
	}
	if trigger.Type == "" {
		trigger.Type = "manual"
	}

	now := time.Now()
	return &Execution{
		ID:              shared.NewID(),
		WorkflowID:      workflowID,
		OrganizationID:  orgID,
		WorkflowVersion: workflowVersion,
		Status:          StatusPending,
		Trigger:         trigger,
		CompletedNodes:  []string{},
		FailedNodes:     []string{},
		SkippedNodes:    []string{},
		MaxAttempts:     1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Start marks the execution as running.
func (e *Execution) Start() error {
	if e.Status != StatusPending {
		return shared.NewDomainError("INVALID_TRANSITION", "only pending executions can start", shared.ErrValidation)
	}
	now := time.Now()
	e.Status = StatusRunning
	e.StartedAt = &now
	e.UpdatedAt = now
	return nil
}

// Complete marks the execution as successfully finished.
func (e *Execution) Complete() error {
	if e.Status != StatusRunning {
		return shared.NewDomainError("INVALID_TRANSITION", "only running executions can complete", shared.ErrValidation)
	}
	now := time.Now()
	e.Status = StatusCompleted
	e.FinishedAt = &now
	e.UpdatedAt = now
	return nil
}

// Fail marks the execution as failed with a reason.
func (e *Execution) Fail(reason string) error {
	if e.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_TRANSITION", "execution already finished", shared.ErrValidation)
	}
	now := time.Now()
	e.Status = StatusFailed
	e.Error = reason
	e.FinishedAt = &now
	e.UpdatedAt = now
	return nil
}

// Cancel marks the execution as cancelled.
func (e *Execution) Cancel() error {
	if e.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_TRANSITION", "execution already finished", shared.ErrValidation)
	}
	now := time.Now()
	e.Status = StatusCancelled
	e.FinishedAt = &now
	e.UpdatedAt = now
	return nil
}

// MarkNodeCompleted records a successful node outcome.
func (e *Execution) MarkNodeCompleted(nodeKey string) {
	e.CompletedNodes = appendUnique(e.CompletedNodes, nodeKey)
	e.UpdatedAt = time.Now()
}

// MarkNodeFailed records a failed node outcome.
func (e *Execution) MarkNodeFailed(nodeKey string) {
	e.FailedNodes = appendUnique(e.FailedNodes, nodeKey)
	e.UpdatedAt = time.Now()
}

// MarkNodeSkipped records a skipped node outcome.
func (e *Execution) MarkNodeSkipped(nodeKey string) {
	e.SkippedNodes = appendUnique(e.SkippedNodes, nodeKey)
	e.UpdatedAt = time.Now()
}

// Progress returns the observed node outcome counts.
func (e *Execution) Progress() Progress {
	p := Progress{
		Completed: len(e.CompletedNodes),
		Failed:    len(e.FailedNodes),
		Skipped:   len(e.SkippedNodes),
	}
	p.Total = p.Completed + p.Failed + p.Skipped
	return p
}

// Duration returns the wall-clock run time, or zero when not finished.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(*e.StartedAt)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
