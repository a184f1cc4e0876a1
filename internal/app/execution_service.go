// Package app contains the application services that implement the
// platform's business operations on top of the domain repositories.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/netpad/api/internal/metrics"
	"github.com/netpad/api/pkg/domain/execution"
	"github.com/netpad/api/pkg/domain/organization"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/pagination"
)

// DefaultMaxPendingPerOrg caps queued executions per organization when no
// explicit limit is configured.
const DefaultMaxPendingPerOrg = 100

// maxLogsPerExecution caps the log entries attached to a single execution
// in API responses.
const maxLogsPerExecution = 500

// maxLogsPerListItem caps per-execution logs on list responses, which fan
// out one log query per row.
const maxLogsPerListItem = 100

// logFanOutConcurrency bounds the concurrent log queries per list request.
const logFanOutConcurrency = 5

// UsageLimiter tracks monthly execution usage against plan quotas.
type UsageLimiter interface {
	// Increment counts an attempt and reports the resulting usage and
	// whether it is within the limit. Rejected attempts stay counted.
	Increment(ctx context.Context, orgID shared.ID, limit int64) (current int64, allowed bool, err error)

	// Decrement compensates an increment whose execution was never admitted.
	Decrement(ctx context.Context, orgID shared.ID) error

	// Current returns this month's usage counter.
	Current(ctx context.Context, orgID shared.ID) (int64, error)
}

// ExecutionEnqueuer hands admitted executions to the job queue.
type ExecutionEnqueuer interface {
	EnqueueExecution(ctx context.Context, e *execution.Execution) error
}

// ExecutionService handles execution admission and retrieval.
type ExecutionService struct {
	workflowRepo  workflow.Repository
	executionRepo execution.Repository
	logRepo       execution.LogRepository
	orgRepo       organization.Repository
	usageLimiter  UsageLimiter
	enqueuer      ExecutionEnqueuer
	logger        *logger.Logger

	maxPendingPerOrg  int64
	defaultMaxRetries int
}

// ExecutionServiceOption is a functional option for ExecutionService.
type ExecutionServiceOption func(*ExecutionService)

// WithMaxPendingPerOrg overrides the per-organization queue depth ceiling.
func WithMaxPendingPerOrg(limit int64) ExecutionServiceOption {
	return func(s *ExecutionService) {
		if limit > 0 {
			s.maxPendingPerOrg = limit
		}
	}
}

// WithDefaultMaxRetries overrides the retry budget for workflows without
// an explicit retry policy.
func WithDefaultMaxRetries(retries int) ExecutionServiceOption {
	return func(s *ExecutionService) {
		if retries >= 0 {
			s.defaultMaxRetries = retries
		}
	}
}

// NewExecutionService creates a new ExecutionService.
func NewExecutionService(
	workflowRepo workflow.Repository,
	executionRepo execution.Repository,
	logRepo execution.LogRepository,
	orgRepo organization.Repository,
	usageLimiter UsageLimiter,
	enqueuer ExecutionEnqueuer,
	log *logger.Logger,
	opts ...ExecutionServiceOption,
) *ExecutionService {
	s := &ExecutionService{
		workflowRepo:      workflowRepo,
		executionRepo:     executionRepo,
		logRepo:           logRepo,
		orgRepo:           orgRepo,
		usageLimiter:      usageLimiter,
		enqueuer:          enqueuer,
		logger:            log.With("service", "execution"),
		maxPendingPerOrg:  DefaultMaxPendingPerOrg,
		defaultMaxRetries: 2,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExecuteWorkflowInput represents input for triggering a workflow execution.
type ExecuteWorkflowInput struct {
	OrganizationID shared.ID
	WorkflowID     shared.ID
	UserID         shared.ID
	TriggerType    string
	TriggerSource  string
	Payload        map[string]any
	RemoteAddr     string
}

// Execute admits a workflow execution through two gates and enqueues it.
//
// Gate order matters: the queue depth check runs before the usage counter
// is touched, so a full queue never consumes quota. The usage gate counts
// the attempt first and then decides, so rejected attempts remain visible
// in the usage report.
func (s *ExecutionService) Execute(ctx context.Context, input ExecuteWorkflowInput) (*execution.Execution, error) {
	w, err := s.workflowRepo.GetByOrgAndID(ctx, input.OrganizationID, input.WorkflowID)
	if err != nil {
		return nil, err
	}

	if !w.Status.IsExecutable() {
		return nil, shared.NewDomainError(
			"WORKFLOW_NOT_EXECUTABLE",
			fmt.Sprintf("workflow in status %q cannot be executed", w.Status),
			shared.ErrValidation,
		)
	}

	// Gate 1: queue depth.
	pending, err := s.executionRepo.CountPendingByOrg(ctx, input.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("count pending executions: %w", err)
	}
	if pending >= s.maxPendingPerOrg {
		metrics.ExecutionsRejectedTotal.WithLabelValues(input.OrganizationID.String(), "queue_full").Inc()
		s.logger.Warn("execution rejected, queue full",
			"org_id", input.OrganizationID.String(),
			"pending", pending,
			"limit", s.maxPendingPerOrg,
		)
		return nil, &execution.QueueFullError{Pending: pending, Limit: s.maxPendingPerOrg}
	}

	// Gate 2: monthly usage quota.
	org, err := s.orgRepo.GetByID(ctx, input.OrganizationID)
	if err != nil {
		return nil, err
	}
	limit := org.Plan.MonthlyExecutionLimit()

	current, allowed, err := s.usageLimiter.Increment(ctx, input.OrganizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("check usage quota: %w", err)
	}
	if !allowed {
		metrics.ExecutionsRejectedTotal.WithLabelValues(input.OrganizationID.String(), "limit_exceeded").Inc()
		s.logger.Warn("execution rejected, quota exceeded",
			"org_id", input.OrganizationID.String(),
			"current", current,
			"limit", limit,
		)
		return nil, &organization.QuotaError{Current: current, Limit: limit}
	}

	e, err := execution.New(w.ID, w.OrganizationID, w.Version, execution.Trigger{
		Type:    input.TriggerType,
		Source:  input.TriggerSource,
		Payload: input.Payload,
	})
	if err != nil {
		s.compensateUsage(ctx, input.OrganizationID)
		return nil, err
	}

	maxRetries := w.Settings.RetryPolicy.MaxRetries
	if maxRetries < 0 {
		maxRetries = s.defaultMaxRetries
	}
	e.MaxAttempts = maxRetries + 1

	if !input.UserID.IsZero() {
		e.RequestedBy = &input.UserID
	}
	e.RemoteAddr = input.RemoteAddr

	if err := s.executionRepo.Create(ctx, e); err != nil {
		s.compensateUsage(ctx, input.OrganizationID)
		return nil, fmt.Errorf("create execution: %w", err)
	}

	if err := s.enqueuer.EnqueueExecution(ctx, e); err != nil {
		s.compensateUsage(ctx, input.OrganizationID)
		if failErr := e.Fail("failed to enqueue execution"); failErr == nil {
			if updateErr := s.executionRepo.Update(ctx, e); updateErr != nil {
				s.logger.Error("failed to mark unenqueued execution as failed",
					"execution_id", e.ID.String(), "error", updateErr)
			}
		}
		return nil, fmt.Errorf("enqueue execution: %w", err)
	}

	metrics.ExecutionsTotal.WithLabelValues(input.OrganizationID.String(), string(e.Status)).Inc()
	metrics.ExecutionsPending.WithLabelValues(input.OrganizationID.String()).Inc()

	s.logger.Info("execution admitted",
		"execution_id", e.ID.String(),
		"workflow_id", w.ID.String(),
		"org_id", input.OrganizationID.String(),
		"max_attempts", e.MaxAttempts,
	)
	return e, nil
}

// compensateUsage undoes a counted attempt whose execution could not be
// admitted due to an internal failure. Quota rejections are not
// compensated; those attempts stay counted.
func (s *ExecutionService) compensateUsage(ctx context.Context, orgID shared.ID) {
	if err := s.usageLimiter.Decrement(ctx, orgID); err != nil {
		s.logger.Error("failed to compensate usage counter",
			"org_id", orgID.String(), "error", err)
	}
}

// ExecutionDetail pairs an execution with its optionally loaded logs.
type ExecutionDetail struct {
	Execution *execution.Execution
	Logs      []*execution.Log
}

// GetExecutionInput represents input for fetching a single execution.
type GetExecutionInput struct {
	ExecutionID shared.ID
	UserID      shared.ID
	IncludeLogs bool
	LogLevel    execution.LogLevel
}

// GetExecution returns an execution the requesting user is allowed to see.
// The execution is looked up by id and the caller's membership in its
// organization is verified; non-members get not found rather than a hint
// that the id exists.
func (s *ExecutionService) GetExecution(ctx context.Context, input GetExecutionInput) (*ExecutionDetail, error) {
	e, err := s.executionRepo.GetByID(ctx, input.ExecutionID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.orgRepo.IsMember(ctx, e.OrganizationID, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !isMember {
		return nil, shared.NewDomainError("NOT_FOUND", "execution not found", shared.ErrNotFound)
	}

	detail := &ExecutionDetail{Execution: e}
	if input.IncludeLogs {
		logs, err := s.logRepo.ListByExecution(ctx, e.ID, input.LogLevel, maxLogsPerExecution)
		if err != nil {
			return nil, fmt.Errorf("load execution logs: %w", err)
		}
		detail.Logs = logs
	}
	return detail, nil
}

// ListExecutionsInput represents input for listing a workflow's executions.
type ListExecutionsInput struct {
	OrganizationID shared.ID
	WorkflowID     shared.ID
	Status         execution.Status
	Page           pagination.Page
	IncludeLogs    bool
	LogLevel       execution.LogLevel
}

// ListExecutions returns a workflow's executions, newest first.
func (s *ExecutionService) ListExecutions(ctx context.Context, input ListExecutionsInput) (pagination.Result[*ExecutionDetail], error) {
	var empty pagination.Result[*ExecutionDetail]

	// Scope check: the workflow must belong to the caller's organization.
	w, err := s.workflowRepo.GetByOrgAndID(ctx, input.OrganizationID, input.WorkflowID)
	if err != nil {
		return empty, err
	}

	result, err := s.executionRepo.ListByWorkflow(ctx, w.ID, execution.Filter{Status: input.Status}, input.Page)
	if err != nil {
		return empty, fmt.Errorf("list executions: %w", err)
	}

	details := make([]*ExecutionDetail, len(result.Data))
	for i, e := range result.Data {
		details[i] = &ExecutionDetail{Execution: e}
	}

	if input.IncludeLogs {
		// Load log slices for the page concurrently. List responses carry a
		// tighter per-execution bound than the single-execution endpoint.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(logFanOutConcurrency)
		for _, detail := range details {
			detail := detail
			g.Go(func() error {
				logs, err := s.logRepo.ListByExecution(gctx, detail.Execution.ID, input.LogLevel, maxLogsPerListItem)
				if err != nil {
					return fmt.Errorf("load execution logs: %w", err)
				}
				detail.Logs = logs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return empty, err
		}
	}

	return pagination.Result[*ExecutionDetail]{
		Data:    details,
		Total:   result.Total,
		Limit:   result.Limit,
		Offset:  result.Offset,
		HasMore: result.HasMore,
	}, nil
}

// Usage returns the organization's execution usage for the current month.
type Usage struct {
	Current   int64
	Limit     int64
	Unlimited bool
}

// GetUsage returns the current month's execution usage for an organization.
func (s *ExecutionService) GetUsage(ctx context.Context, orgID shared.ID) (*Usage, error) {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	current, err := s.usageLimiter.Current(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("get usage: %w", err)
	}

	limit := org.Plan.MonthlyExecutionLimit()
	return &Usage{
		Current:   current,
		Limit:     limit,
		Unlimited: limit < 0,
	}, nil
}
