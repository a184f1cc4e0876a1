package app_test

import (
	"context"
	"testing"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/pkg/domain/execution"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/logger"
)

// executorFixture wires an Executor with in-memory repositories.
type executorFixture struct {
	executor      *app.Executor
	workflowRepo  *mockWorkflowRepo
	executionRepo *mockExecutionRepo
	logRepo       *mockLogRepo
}

func newExecutorFixture() *executorFixture {
	f := &executorFixture{
		workflowRepo:  newMockWorkflowRepo(),
		executionRepo: newMockExecutionRepo(),
		logRepo:       newMockLogRepo(),
	}
	f.executor = app.NewExecutor(f.workflowRepo, f.executionRepo, f.logRepo, logger.NewNop())
	return f
}

// addCanvas stores a workflow built from node specs and labeled edges.
func (f *executorFixture) addCanvas(t *testing.T, nodes map[string]workflow.NodeType, configs map[string]map[string]any, edges [][3]string) *workflow.Workflow {
	t.Helper()

	w, err := workflow.NewWorkflow(shared.NewID(), "Test Canvas", "")
	if err != nil {
		t.Fatalf("failed to create workflow: %v", err)
	}
	for key, nodeType := range nodes {
		n, err := workflow.NewNode(key, nodeType, key)
		if err != nil {
			t.Fatalf("failed to create node %s: %v", key, err)
		}
		if cfg, ok := configs[key]; ok {
			n.Config = cfg
		}
		w.AddNode(n)
	}
	for _, e := range edges {
		edge, err := workflow.NewEdge(e[0], e[1])
		if err != nil {
			t.Fatalf("failed to create edge %s->%s: %v", e[0], e[1], err)
		}
		edge.Label = e[2]
		w.AddEdge(edge)
	}
	if err := f.workflowRepo.Create(context.Background(), w); err != nil {
		t.Fatalf("failed to store workflow: %v", err)
	}
	return w
}

func (f *executorFixture) addExecution(t *testing.T, w *workflow.Workflow, payload map[string]any) *execution.Execution {
	t.Helper()

	e, err := execution.New(w.ID, w.OrganizationID, w.Version, execution.Trigger{
		Type:    "manual",
		Payload: payload,
	})
	if err != nil {
		t.Fatalf("failed to create execution: %v", err)
	}
	if err := f.executionRepo.Create(context.Background(), e); err != nil {
		t.Fatalf("failed to store execution: %v", err)
	}
	return e
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func TestExecutor_Process_LinearCanvas(t *testing.T) {
	f := newExecutorFixture()
	w := f.addCanvas(t,
		map[string]workflow.NodeType{
			"start": workflow.NodeTypeManualStart,
			"a":     workflow.NodeTypeAction,
			"b":     workflow.NodeTypeAction,
		},
		nil,
		[][3]string{{"start", "a", ""}, {"a", "b", ""}},
	)
	e := f.addExecution(t, w, nil)

	if err := f.executor.Process(context.Background(), e.ID.String()); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if e.Status != execution.StatusCompleted {
		t.Errorf("expected completed, got %s", e.Status)
	}
	if e.StartedAt == nil || e.FinishedAt == nil {
		t.Error("expected start and finish timestamps")
	}

	p := e.Progress()
	if p.Completed != 3 || p.Failed != 0 || p.Skipped != 0 || p.Total != 3 {
		t.Errorf("unexpected progress %+v", p)
	}
	if len(f.logRepo.logs) == 0 {
		t.Error("expected execution logs persisted")
	}
}

func TestExecutor_Process_ConditionTrueBranch(t *testing.T) {
	f := newExecutorFixture()
	w := f.addCanvas(t,
		map[string]workflow.NodeType{
			"start": workflow.NodeTypeManualStart,
			"check": workflow.NodeTypeCondition,
			"big":   workflow.NodeTypeAction,
			"small": workflow.NodeTypeAction,
		},
		map[string]map[string]any{
			"check": {"expression": "trigger.amount > 100"},
		},
		[][3]string{
			{"start", "check", ""},
			{"check", "big", "true"},
			{"check", "small", "false"},
		},
	)
	e := f.addExecution(t, w, map[string]any{"amount": 150})

	if err := f.executor.Process(context.Background(), e.ID.String()); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if e.Status != execution.StatusCompleted {
		t.Errorf("expected completed, got %s", e.Status)
	}
	if !contains(e.CompletedNodes, "big") {
		t.Error("expected true branch completed")
	}
	if !contains(e.SkippedNodes, "small") {
		t.Error("expected false branch skipped")
	}

	// Total counts observed outcomes: start, check, big completed plus
	// small skipped.
	p := e.Progress()
	if p.Total != 4 {
		t.Errorf("expected total 4, got %d", p.Total)
	}
}

func TestExecutor_Process_ConditionFalseBranch(t *testing.T) {
	f := newExecutorFixture()
	w := f.addCanvas(t,
		map[string]workflow.NodeType{
			"start": workflow.NodeTypeManualStart,
			"check": workflow.NodeTypeCondition,
			"big":   workflow.NodeTypeAction,
			"small": workflow.NodeTypeAction,
			"after": workflow.NodeTypeAction,
		},
		map[string]map[string]any{
			"check": {"expression": "trigger.amount > 100"},
		},
		[][3]string{
			{"start", "check", ""},
			{"check", "big", "true"},
			{"check", "small", "false"},
			{"big", "after", ""},
		},
	)
	e := f.addExecution(t, w, map[string]any{"amount": 10})

	if err := f.executor.Process(context.Background(), e.ID.String()); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if !contains(e.CompletedNodes, "small") {
		t.Error("expected false branch completed")
	}
	if !contains(e.SkippedNodes, "big") {
		t.Error("expected true branch skipped")
	}
	// Skips propagate downstream of the untaken branch.
	if !contains(e.SkippedNodes, "after") {
		t.Error("expected downstream of skipped branch skipped")
	}
}

func TestExecutor_Process_SkipWinsAtRejoin(t *testing.T) {
	f := newExecutorFixture()
	w := f.addCanvas(t,
		map[string]workflow.NodeType{
			"start":  workflow.NodeTypeManualStart,
			"check":  workflow.NodeTypeCondition,
			"big":    workflow.NodeTypeAction,
			"small":  workflow.NodeTypeAction,
			"notify": workflow.NodeTypeAction,
		},
		map[string]map[string]any{
			"check": {"expression": "trigger.amount > 100"},
		},
		[][3]string{
			{"start", "check", ""},
			{"check", "big", "true"},
			{"check", "small", "false"},
			{"big", "notify", ""},
			{"small", "notify", ""},
		},
	)
	e := f.addExecution(t, w, map[string]any{"amount": 10})

	if err := f.executor.Process(context.Background(), e.ID.String()); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if !contains(e.CompletedNodes, "small") {
		t.Error("expected false branch completed")
	}
	if !contains(e.SkippedNodes, "big") {
		t.Error("expected true branch skipped")
	}
	// The rejoin node has a skipped parent, so it is skipped even though
	// the completed branch reaches it too.
	if !contains(e.SkippedNodes, "notify") {
		t.Error("expected rejoin node skipped")
	}
	if contains(e.CompletedNodes, "notify") {
		t.Error("rejoin node must not complete with a skipped parent")
	}
}

func TestExecutor_Process_NodeFailureSkipsPending(t *testing.T) {
	f := newExecutorFixture()
	w := f.addCanvas(t,
		map[string]workflow.NodeType{
			"start":  workflow.NodeTypeManualStart,
			"broken": workflow.NodeTypeCondition, // no expression configured
			"other":  workflow.NodeTypeAction,
		},
		nil,
		[][3]string{
			{"start", "broken", ""},
			{"start", "other", ""},
		},
	)
	e := f.addExecution(t, w, nil)

	if err := f.executor.Process(context.Background(), e.ID.String()); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if e.Status != execution.StatusFailed {
		t.Errorf("expected failed, got %s", e.Status)
	}
	if e.Error == "" {
		t.Error("expected failure reason recorded")
	}
	if !contains(e.CompletedNodes, "start") {
		t.Error("expected start completed before the failure")
	}
	if !contains(e.FailedNodes, "broken") {
		t.Error("expected broken node recorded as failed")
	}
	if !contains(e.SkippedNodes, "other") {
		t.Error("expected queued node skipped after failure")
	}
}

func TestExecutor_Process_InvalidExpression(t *testing.T) {
	f := newExecutorFixture()
	w := f.addCanvas(t,
		map[string]workflow.NodeType{
			"start": workflow.NodeTypeManualStart,
			"check": workflow.NodeTypeCondition,
		},
		map[string]map[string]any{
			"check": {"expression": "this is not an expression ((("},
		},
		[][3]string{{"start", "check", ""}},
	)
	e := f.addExecution(t, w, nil)

	if err := f.executor.Process(context.Background(), e.ID.String()); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if e.Status != execution.StatusFailed {
		t.Errorf("expected failed for invalid expression, got %s", e.Status)
	}
}

func TestExecutor_Process_TerminalIsIdempotent(t *testing.T) {
	f := newExecutorFixture()
	w := f.addCanvas(t,
		map[string]workflow.NodeType{"start": workflow.NodeTypeManualStart},
		nil, nil,
	)
	e := f.addExecution(t, w, nil)

	if err := f.executor.Process(context.Background(), e.ID.String()); err != nil {
		t.Fatalf("first process failed: %v", err)
	}
	finishedAt := e.FinishedAt
	logCount := len(f.logRepo.logs)

	// A queue retry after the run finished must not re-run the canvas.
	if err := f.executor.Process(context.Background(), e.ID.String()); err != nil {
		t.Fatalf("second process failed: %v", err)
	}
	if e.FinishedAt != finishedAt {
		t.Error("expected finished execution left untouched")
	}
	if len(f.logRepo.logs) != logCount {
		t.Error("expected no new logs for finished execution")
	}
}

func TestExecutor_Process_InvalidID(t *testing.T) {
	f := newExecutorFixture()
	if err := f.executor.Process(context.Background(), "not-a-uuid"); err == nil {
		t.Error("expected error for malformed execution id")
	}
}

func TestExecutor_Process_MissingExecution(t *testing.T) {
	f := newExecutorFixture()
	if err := f.executor.Process(context.Background(), shared.NewID().String()); err == nil {
		t.Error("expected error for unknown execution")
	}
}
