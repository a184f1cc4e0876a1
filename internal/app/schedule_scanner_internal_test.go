package app

import (
	"context"
	"testing"

	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/logger"
)

// scheduleRepoStub serves a fixed set of scheduled workflows.
type scheduleRepoStub struct {
	workflow.Repository
	workflows []*workflow.Workflow
}

func (s *scheduleRepoStub) ListActiveWithScheduleTriggers(ctx context.Context) ([]*workflow.Workflow, error) {
	return s.workflows, nil
}

func scheduledWorkflow(t *testing.T, spec string) *workflow.Workflow {
	t.Helper()
	w, err := workflow.NewWorkflow(shared.NewID(), "Scheduled", "")
	if err != nil {
		t.Fatalf("failed to create workflow: %v", err)
	}
	n, err := workflow.NewNode("cron", workflow.NodeTypeScheduleTrigger, "Cron")
	if err != nil {
		t.Fatalf("failed to create node: %v", err)
	}
	n.Config = map[string]any{"schedule": spec}
	w.AddNode(n)
	w.Status = workflow.StatusActive
	return w
}

func TestScheduleScanner_RefreshRegistersEntries(t *testing.T) {
	repo := &scheduleRepoStub{}
	s := NewScheduleScanner(repo, nil, logger.NewNop())

	w := scheduledWorkflow(t, "0 * * * *")
	repo.workflows = []*workflow.Workflow{w}

	s.refresh(context.Background())

	key := w.ID.String() + "/cron"
	if _, ok := s.entries[key]; !ok {
		t.Fatal("expected cron entry registered")
	}
	if s.specs[key] != "0 * * * *" {
		t.Errorf("expected spec recorded, got %q", s.specs[key])
	}
}

func TestScheduleScanner_RefreshSkipsInvalidSpec(t *testing.T) {
	repo := &scheduleRepoStub{}
	s := NewScheduleScanner(repo, nil, logger.NewNop())

	repo.workflows = []*workflow.Workflow{scheduledWorkflow(t, "not a cron spec")}
	s.refresh(context.Background())

	if len(s.entries) != 0 {
		t.Errorf("expected no entries for invalid spec, got %d", len(s.entries))
	}
}

func TestScheduleScanner_RefreshReplacesChangedSpec(t *testing.T) {
	repo := &scheduleRepoStub{}
	s := NewScheduleScanner(repo, nil, logger.NewNop())

	w := scheduledWorkflow(t, "0 * * * *")
	repo.workflows = []*workflow.Workflow{w}
	s.refresh(context.Background())

	key := w.ID.String() + "/cron"
	first := s.entries[key]

	w.Nodes[0].Config["schedule"] = "30 * * * *"
	s.refresh(context.Background())

	if s.specs[key] != "30 * * * *" {
		t.Errorf("expected updated spec, got %q", s.specs[key])
	}
	if s.entries[key] == first {
		t.Error("expected entry replaced after spec change")
	}
}

func TestScheduleScanner_RefreshDropsRemovedWorkflows(t *testing.T) {
	repo := &scheduleRepoStub{}
	s := NewScheduleScanner(repo, nil, logger.NewNop())

	w := scheduledWorkflow(t, "0 * * * *")
	repo.workflows = []*workflow.Workflow{w}
	s.refresh(context.Background())

	repo.workflows = nil
	s.refresh(context.Background())

	if len(s.entries) != 0 {
		t.Errorf("expected entries cleared after workflow removal, got %d", len(s.entries))
	}
}
