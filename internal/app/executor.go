package app

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/netpad/api/internal/metrics"
	"github.com/netpad/api/pkg/domain/execution"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/logger"
)

// Executor runs admitted executions to a terminal state. It walks the
// workflow canvas from its trigger nodes, evaluating condition nodes and
// recording a completed, failed, or skipped outcome for every node it
// reaches. Nodes never reached stay out of the record entirely: the
// progress report counts observed outcomes, not canvas size.
type Executor struct {
	workflowRepo  workflow.Repository
	executionRepo execution.Repository
	logRepo       execution.LogRepository
	logger        *logger.Logger
}

// NewExecutor creates a new Executor.
func NewExecutor(
	workflowRepo workflow.Repository,
	executionRepo execution.Repository,
	logRepo execution.LogRepository,
	log *logger.Logger,
) *Executor {
	return &Executor{
		workflowRepo:  workflowRepo,
		executionRepo: executionRepo,
		logRepo:       logRepo,
		logger:        log.With("service", "executor"),
	}
}

// Process runs a single execution to a terminal state. It is safe to call
// again for the same execution: finished executions are left untouched, so
// queue retries after a crash do not double-run a workflow.
func (x *Executor) Process(ctx context.Context, executionID string) error {
	id, err := shared.IDFromString(executionID)
	if err != nil {
		return fmt.Errorf("invalid execution id: %w", err)
	}

	e, err := x.executionRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e.Status.IsTerminal() {
		x.logger.Info("execution already finished, skipping",
			"execution_id", e.ID.String(), "status", string(e.Status))
		return nil
	}

	w, err := x.workflowRepo.GetByID(ctx, e.WorkflowID)
	if err != nil {
		return err
	}

	if e.Status == execution.StatusPending {
		if err := e.Start(); err != nil {
			return err
		}
		if err := x.executionRepo.Update(ctx, e); err != nil {
			return fmt.Errorf("mark execution running: %w", err)
		}
		metrics.ExecutionsPending.WithLabelValues(e.OrganizationID.String()).Dec()
	}

	run := &executionRun{
		execution: e,
		workflow:  w,
		results:   map[string]any{},
	}
	run.log(execution.LogLevelInfo, "", "execution started")

	walkErr := x.walk(ctx, run)

	if walkErr != nil {
		if err := e.Fail(walkErr.Error()); err != nil {
			x.logger.Error("failed to mark execution failed",
				"execution_id", e.ID.String(), "error", err)
		}
		run.log(execution.LogLevelError, "", "execution failed: "+walkErr.Error())
	} else {
		if err := e.Complete(); err != nil {
			x.logger.Error("failed to mark execution completed",
				"execution_id", e.ID.String(), "error", err)
		}
		run.log(execution.LogLevelInfo, "", "execution completed")
	}

	if err := x.executionRepo.Update(ctx, e); err != nil {
		return fmt.Errorf("persist execution outcome: %w", err)
	}
	if err := x.logRepo.Append(ctx, run.logs...); err != nil {
		x.logger.Error("failed to persist execution logs",
			"execution_id", e.ID.String(), "error", err)
	}

	orgID := e.OrganizationID.String()
	metrics.ExecutionsTotal.WithLabelValues(orgID, string(e.Status)).Inc()
	metrics.ExecutionDuration.WithLabelValues(orgID).Observe(e.Duration().Seconds())

	x.logger.Info("execution finished",
		"execution_id", e.ID.String(),
		"status", string(e.Status),
		"completed", len(e.CompletedNodes),
		"failed", len(e.FailedNodes),
		"skipped", len(e.SkippedNodes),
	)
	return nil
}

// executionRun holds the per-run state of a canvas walk.
type executionRun struct {
	execution *execution.Execution
	workflow  *workflow.Workflow

	// results holds node outputs by node key, exposed to condition
	// expressions as "results".
	results map[string]any

	logs []*execution.Log
}

func (r *executionRun) log(level execution.LogLevel, nodeKey, message string) {
	r.logs = append(r.logs, execution.NewLog(r.execution.ID, level, message, nodeKey))
}

// walk traverses the canvas breadth-first from the trigger nodes. A node
// failure stops the run: the failing node is recorded as failed, every
// reached-but-unprocessed node as skipped, and the walk returns an error.
func (x *Executor) walk(ctx context.Context, run *executionRun) error {
	triggers := run.workflow.TriggerNodes()
	if len(triggers) == 0 {
		return fmt.Errorf("workflow has no trigger node")
	}

	queue := make([]*workflow.Node, 0, len(triggers))
	enqueued := map[string]bool{}
	skipped := map[string]bool{}

	for _, t := range triggers {
		queue = append(queue, t)
		enqueued[t.NodeKey] = true
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		node := queue[0]
		queue = queue[1:]

		if skipped[node.NodeKey] {
			run.execution.MarkNodeSkipped(node.NodeKey)
			run.log(execution.LogLevelInfo, node.NodeKey, "node skipped")
			metrics.NodeOutcomesTotal.WithLabelValues(run.execution.OrganizationID.String(), "skipped").Inc()
			// Skips propagate: a node with any skipped parent is
			// skipped, even when a completed branch also reaches it.
			x.propagateSkip(run, node, skipped, enqueued, &queue)
			continue
		}

		if err := x.runNode(run, node, skipped); err != nil {
			run.execution.MarkNodeFailed(node.NodeKey)
			run.log(execution.LogLevelError, node.NodeKey, "node failed: "+err.Error())
			metrics.NodeOutcomesTotal.WithLabelValues(run.execution.OrganizationID.String(), "failed").Inc()

			for _, pending := range queue {
				run.execution.MarkNodeSkipped(pending.NodeKey)
				run.log(execution.LogLevelWarn, pending.NodeKey, "node skipped after upstream failure")
			}
			return fmt.Errorf("node %s failed: %w", node.NodeKey, err)
		}

		run.execution.MarkNodeCompleted(node.NodeKey)
		metrics.NodeOutcomesTotal.WithLabelValues(run.execution.OrganizationID.String(), "completed").Inc()

		for _, next := range run.workflow.DownstreamNodes(node.NodeKey) {
			if !enqueued[next.NodeKey] {
				enqueued[next.NodeKey] = true
				queue = append(queue, next)
			}
		}
	}

	return nil
}

// propagateSkip marks downstream nodes of a skipped node for skipping and
// enqueues them so their outcome gets recorded.
func (x *Executor) propagateSkip(run *executionRun, node *workflow.Node, skipped, enqueued map[string]bool, queue *[]*workflow.Node) {
	for _, next := range run.workflow.DownstreamNodes(node.NodeKey) {
		skipped[next.NodeKey] = true
		if !enqueued[next.NodeKey] {
			enqueued[next.NodeKey] = true
			*queue = append(*queue, next)
		}
	}
}

// runNode executes a single node. Condition nodes evaluate their
// expression and mark the untaken branch for skipping; other node types
// record their configuration as output.
func (x *Executor) runNode(run *executionRun, node *workflow.Node, skipped map[string]bool) error {
	switch node.Type {
	case workflow.NodeTypeCondition:
		return x.runCondition(run, node, skipped)
	default:
		// Trigger and action nodes succeed with their config echoed as
		// output for downstream expressions.
		run.results[node.NodeKey] = node.Config
		run.log(execution.LogLevelInfo, node.NodeKey, "node completed")
		return nil
	}
}

// runCondition evaluates the node's boolean expression against the trigger
// payload and prior node results, then marks the untaken branch skipped.
// Branches are selected by edge label ("true"/"false"); unlabeled edges
// follow the true branch.
func (x *Executor) runCondition(run *executionRun, node *workflow.Node, skipped map[string]bool) error {
	exprSrc := node.Expression()
	if exprSrc == "" {
		return fmt.Errorf("condition node has no expression")
	}

	env := map[string]any{
		"trigger": run.execution.Trigger.Payload,
		"results": run.results,
	}

	program, err := expr.Compile(exprSrc, expr.Env(env), expr.AsBool())
	if err != nil {
		return fmt.Errorf("compile expression: %w", err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("evaluate expression: %w", err)
	}
	result, ok := output.(bool)
	if !ok {
		return fmt.Errorf("expression did not evaluate to a boolean")
	}

	run.results[node.NodeKey] = result
	run.log(execution.LogLevelInfo, node.NodeKey, fmt.Sprintf("condition evaluated to %t", result))

	untaken := "true"
	if result {
		untaken = "false"
	}
	for _, edge := range run.workflow.Edges {
		if edge.SourceNodeKey != node.NodeKey {
			continue
		}
		label := edge.Label
		if label == "" {
			label = "true"
		}
		if label == untaken {
			skipped[edge.TargetNodeKey] = true
		}
	}

	return nil
}
