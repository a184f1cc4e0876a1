package app_test

import (
	"context"
	"testing"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/pagination"
)

func newWorkflowService() (*app.WorkflowService, *mockWorkflowRepo) {
	repo := newMockWorkflowRepo()
	return app.NewWorkflowService(repo, logger.NewNop()), repo
}

func canvasInput(orgID shared.ID) app.CreateWorkflowInput {
	return app.CreateWorkflowInput{
		OrganizationID: orgID,
		Name:           "Order Sync",
		Description:    "syncs orders",
		Nodes: []app.CreateNodeInput{
			{NodeKey: "start", Type: workflow.NodeTypeWebhookTrigger, Name: "Start"},
			{NodeKey: "fetch", Type: workflow.NodeTypeHTTPRequest, Name: "Fetch"},
		},
		Edges: []app.CreateEdgeInput{
			{SourceNodeKey: "start", TargetNodeKey: "fetch"},
		},
	}
}

func TestWorkflowService_CreateWorkflow(t *testing.T) {
	svc, repo := newWorkflowService()
	orgID := shared.NewID()
	userID := shared.NewID()

	input := canvasInput(orgID)
	input.UserID = userID

	w, err := svc.CreateWorkflow(context.Background(), input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if w.Status != workflow.StatusDraft {
		t.Errorf("expected draft status, got %s", w.Status)
	}
	if len(w.Nodes) != 2 || len(w.Edges) != 1 {
		t.Errorf("expected 2 nodes and 1 edge, got %d and %d", len(w.Nodes), len(w.Edges))
	}
	if w.CreatedBy == nil || !w.CreatedBy.Equals(userID) {
		t.Error("expected creator recorded")
	}
	if _, err := repo.GetByID(context.Background(), w.ID); err != nil {
		t.Errorf("expected workflow persisted, got %v", err)
	}
}

func TestWorkflowService_CreateWorkflow_InvalidGraph(t *testing.T) {
	svc, _ := newWorkflowService()

	input := canvasInput(shared.NewID())
	input.Edges = append(input.Edges, app.CreateEdgeInput{SourceNodeKey: "fetch", TargetNodeKey: "missing"})

	if _, err := svc.CreateWorkflow(context.Background(), input); err == nil {
		t.Error("expected error for edge to unknown node")
	}
}

func TestWorkflowService_UpdateWorkflow_CanvasBumpsVersion(t *testing.T) {
	svc, _ := newWorkflowService()
	orgID := shared.NewID()

	w, err := svc.CreateWorkflow(context.Background(), canvasInput(orgID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := svc.UpdateWorkflow(context.Background(), app.UpdateWorkflowInput{
		OrganizationID: orgID,
		WorkflowID:     w.ID,
		Nodes: []app.CreateNodeInput{
			{NodeKey: "start", Type: workflow.NodeTypeWebhookTrigger, Name: "Start"},
		},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("canvas change must bump version, got %d", updated.Version)
	}
	if len(updated.Nodes) != 1 {
		t.Errorf("expected canvas replaced, got %d nodes", len(updated.Nodes))
	}
}

func TestWorkflowService_UpdateWorkflow_MetadataKeepsVersion(t *testing.T) {
	svc, _ := newWorkflowService()
	orgID := shared.NewID()

	w, err := svc.CreateWorkflow(context.Background(), canvasInput(orgID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	desc := "new description"
	updated, err := svc.UpdateWorkflow(context.Background(), app.UpdateWorkflowInput{
		OrganizationID: orgID,
		WorkflowID:     w.ID,
		Name:           "Renamed",
		Description:    &desc,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Version != 1 {
		t.Errorf("metadata-only update must not bump version, got %d", updated.Version)
	}
	if updated.Name != "Renamed" || updated.Description != desc {
		t.Error("expected metadata updated")
	}
	if len(updated.Nodes) != 2 {
		t.Errorf("expected canvas untouched, got %d nodes", len(updated.Nodes))
	}
}

func TestWorkflowService_ChangeStatus(t *testing.T) {
	svc, _ := newWorkflowService()
	orgID := shared.NewID()
	userID := shared.NewID()

	w, err := svc.CreateWorkflow(context.Background(), canvasInput(orgID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	activated, err := svc.ChangeStatus(context.Background(), app.ChangeStatusInput{
		OrganizationID: orgID,
		WorkflowID:     w.ID,
		UserID:         userID,
		Status:         workflow.StatusActive,
	})
	if err != nil {
		t.Fatalf("activation failed: %v", err)
	}
	if activated.Status != workflow.StatusActive {
		t.Errorf("expected active, got %s", activated.Status)
	}
	if activated.StatusChangedBy == nil || !activated.StatusChangedBy.Equals(userID) {
		t.Error("expected actor recorded")
	}
}

func TestWorkflowService_ChangeStatus_ArchivedToActive(t *testing.T) {
	svc, _ := newWorkflowService()
	orgID := shared.NewID()

	w, err := svc.CreateWorkflow(context.Background(), canvasInput(orgID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	w.Status = workflow.StatusArchived

	_, err = svc.ChangeStatus(context.Background(), app.ChangeStatusInput{
		OrganizationID: orgID,
		WorkflowID:     w.ID,
		UserID:         shared.NewID(),
		Status:         workflow.StatusActive,
	})
	if err == nil {
		t.Fatal("expected archived -> active to be rejected")
	}
	if shared.ErrorCode(err) != "INVALID_TRANSITION" {
		t.Errorf("expected INVALID_TRANSITION, got %s", shared.ErrorCode(err))
	}
}

func TestWorkflowService_ChangeStatus_EmptyCanvasActivation(t *testing.T) {
	svc, _ := newWorkflowService()
	orgID := shared.NewID()

	w, err := svc.CreateWorkflow(context.Background(), app.CreateWorkflowInput{
		OrganizationID: orgID,
		Name:           "Empty",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = svc.ChangeStatus(context.Background(), app.ChangeStatusInput{
		OrganizationID: orgID,
		WorkflowID:     w.ID,
		Status:         workflow.StatusActive,
	})
	if shared.ErrorCode(err) != "EMPTY_CANVAS" {
		t.Errorf("expected EMPTY_CANVAS, got %v", err)
	}
}

func TestWorkflowService_GetPublicWorkflow(t *testing.T) {
	svc, _ := newWorkflowService()

	input := canvasInput(shared.NewID())
	input.EmbedSettings = &workflow.EmbedSettings{AllowPublicViewing: true}
	w, err := svc.CreateWorkflow(context.Background(), input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := svc.GetPublicWorkflow(context.Background(), w.Slug)
	if err != nil {
		t.Fatalf("expected public workflow, got %v", err)
	}
	if !got.ID.Equals(w.ID) {
		t.Error("unexpected workflow returned")
	}
}

func TestWorkflowService_GetPublicWorkflow_NotOptedIn(t *testing.T) {
	svc, _ := newWorkflowService()

	w, err := svc.CreateWorkflow(context.Background(), canvasInput(shared.NewID()))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Private workflows are indistinguishable from missing ones.
	_, err = svc.GetPublicWorkflow(context.Background(), w.Slug)
	if !shared.IsNotFound(err) {
		t.Errorf("expected not found for private workflow, got %v", err)
	}
	if code := shared.ErrorCode(err); code != "WORKFLOW_NOT_FOUND" {
		t.Errorf("expected WORKFLOW_NOT_FOUND, got %q", code)
	}

	_, err = svc.GetPublicWorkflow(context.Background(), "no-such-slug")
	if !shared.IsNotFound(err) {
		t.Errorf("expected not found for missing slug, got %v", err)
	}
	if code := shared.ErrorCode(err); code != "WORKFLOW_NOT_FOUND" {
		t.Errorf("expected WORKFLOW_NOT_FOUND, got %q", code)
	}
}

// mapProjectionCache is an in-memory app.ProjectionCache.
type mapProjectionCache struct {
	entries map[string]*workflow.Workflow
	sets    int
}

func (c *mapProjectionCache) GetWorkflow(ctx context.Context, slug string) (*workflow.Workflow, bool) {
	w, ok := c.entries[slug]
	return w, ok
}

func (c *mapProjectionCache) SetWorkflow(ctx context.Context, slug string, w *workflow.Workflow) {
	c.entries[slug] = w
	c.sets++
}

func TestWorkflowService_GetPublicWorkflow_CachesProjection(t *testing.T) {
	repo := newMockWorkflowRepo()
	cache := &mapProjectionCache{entries: make(map[string]*workflow.Workflow)}
	svc := app.NewWorkflowService(repo, logger.NewNop(), app.WithProjectionCache(cache))

	input := canvasInput(shared.NewID())
	input.EmbedSettings = &workflow.EmbedSettings{AllowPublicViewing: true}
	w, err := svc.CreateWorkflow(context.Background(), input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.GetPublicWorkflow(context.Background(), w.Slug); err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected projection cached, got %d sets", cache.sets)
	}

	// A second read is served from the cache even if the row disappears.
	delete(repo.workflows, w.ID.String())
	got, err := svc.GetPublicWorkflow(context.Background(), w.Slug)
	if err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if !got.ID.Equals(w.ID) {
		t.Error("unexpected workflow returned from cache")
	}
}

func TestWorkflowService_GetPublicWorkflow_PrivateNotCached(t *testing.T) {
	repo := newMockWorkflowRepo()
	cache := &mapProjectionCache{entries: make(map[string]*workflow.Workflow)}
	svc := app.NewWorkflowService(repo, logger.NewNop(), app.WithProjectionCache(cache))

	w, err := svc.CreateWorkflow(context.Background(), canvasInput(shared.NewID()))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.GetPublicWorkflow(context.Background(), w.Slug); !shared.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if cache.sets != 0 {
		t.Errorf("private workflow must not be cached, got %d sets", cache.sets)
	}
}

func TestWorkflowService_ListWorkflows(t *testing.T) {
	svc, _ := newWorkflowService()
	orgID := shared.NewID()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateWorkflow(context.Background(), canvasInput(orgID)); err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
	}
	// A workflow in another organization must not leak into the listing.
	if _, err := svc.CreateWorkflow(context.Background(), canvasInput(shared.NewID())); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	result, err := svc.ListWorkflows(context.Background(), app.ListWorkflowsInput{
		OrganizationID: orgID,
		Page:           pagination.New(20, 0),
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Total != 3 {
		t.Errorf("expected 3 workflows, got %d", result.Total)
	}
}

func TestWorkflowService_DeleteWorkflow(t *testing.T) {
	svc, repo := newWorkflowService()
	orgID := shared.NewID()

	w, err := svc.CreateWorkflow(context.Background(), canvasInput(orgID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.DeleteWorkflow(context.Background(), orgID, w.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), w.ID); !shared.IsNotFound(err) {
		t.Error("expected workflow removed")
	}

	if err := svc.DeleteWorkflow(context.Background(), shared.NewID(), w.ID); !shared.IsNotFound(err) {
		t.Errorf("expected not found for foreign delete, got %v", err)
	}
}
