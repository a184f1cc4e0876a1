package app_test

import (
	"context"
	"testing"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/pkg/domain/form"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/pagination"
)

// mockFormRepo implements form.Repository in memory.
type mockFormRepo struct {
	forms map[string]*form.Form
}

func newMockFormRepo() *mockFormRepo {
	return &mockFormRepo{forms: make(map[string]*form.Form)}
}

func (m *mockFormRepo) Create(ctx context.Context, f *form.Form) error {
	m.forms[f.ID.String()] = f
	return nil
}

func (m *mockFormRepo) GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*form.Form, error) {
	f, ok := m.forms[id.String()]
	if !ok || !f.OrganizationID.Equals(orgID) {
		return nil, notFound("form")
	}
	return f, nil
}

func (m *mockFormRepo) GetBySlug(ctx context.Context, slug string) (*form.Form, error) {
	for _, f := range m.forms {
		if f.Slug == slug {
			return f, nil
		}
	}
	return nil, notFound("form")
}

func (m *mockFormRepo) List(ctx context.Context, orgID shared.ID, page pagination.Page) (pagination.Result[*form.Form], error) {
	var all []*form.Form
	for _, f := range m.forms {
		if f.OrganizationID.Equals(orgID) {
			all = append(all, f)
		}
	}
	return pagination.NewResult(all, int64(len(all)), page), nil
}

func (m *mockFormRepo) Update(ctx context.Context, f *form.Form) error {
	if _, ok := m.forms[f.ID.String()]; !ok {
		return notFound("form")
	}
	m.forms[f.ID.String()] = f
	return nil
}

func (m *mockFormRepo) Delete(ctx context.Context, orgID, id shared.ID) error {
	f, ok := m.forms[id.String()]
	if !ok || !f.OrganizationID.Equals(orgID) {
		return notFound("form")
	}
	delete(m.forms, id.String())
	return nil
}

func newFormService() (*app.FormService, *mockFormRepo, *mockWorkflowRepo) {
	formRepo := newMockFormRepo()
	workflowRepo := newMockWorkflowRepo()
	return app.NewFormService(formRepo, workflowRepo, logger.NewNop()), formRepo, workflowRepo
}

func testFields() []form.Field {
	return []form.Field{
		{Key: "email", Type: form.FieldTypeEmail, Label: "Email", Required: true},
		{Key: "amount", Type: form.FieldTypeNumber, Label: "Amount"},
	}
}

func TestFormService_CreateForm(t *testing.T) {
	svc, repo, _ := newFormService()
	orgID := shared.NewID()

	f, err := svc.CreateForm(context.Background(), app.CreateFormInput{
		OrganizationID: orgID,
		Name:           "Contact Form",
		Fields:         testFields(),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if f.Status != form.StatusDraft {
		t.Errorf("expected draft, got %s", f.Status)
	}
	if f.Version != 1 {
		t.Errorf("expected version 1 on creation, got %d", f.Version)
	}
	if f.Slug == "" {
		t.Error("expected slug derived from name")
	}
	if len(f.Fields) != 2 {
		t.Errorf("expected 2 fields, got %d", len(f.Fields))
	}
	if _, ok := repo.forms[f.ID.String()]; !ok {
		t.Error("expected form persisted")
	}
}

func TestFormService_CreateForm_ForeignWorkflow(t *testing.T) {
	svc, _, workflowRepo := newFormService()
	orgID := shared.NewID()

	// Workflow owned by another organization.
	other, err := app.NewWorkflowService(workflowRepo, logger.NewNop()).
		CreateWorkflow(context.Background(), canvasInput(shared.NewID()))
	if err != nil {
		t.Fatalf("create workflow failed: %v", err)
	}

	_, err = svc.CreateForm(context.Background(), app.CreateFormInput{
		OrganizationID: orgID,
		Name:           "Contact Form",
		WorkflowID:     &other.ID,
	})
	if !shared.IsNotFound(err) {
		t.Errorf("expected not found for foreign workflow link, got %v", err)
	}
}

func TestFormService_CreateForm_DuplicateFieldKey(t *testing.T) {
	svc, _, _ := newFormService()

	_, err := svc.CreateForm(context.Background(), app.CreateFormInput{
		OrganizationID: shared.NewID(),
		Name:           "Broken",
		Fields: []form.Field{
			{Key: "email", Type: form.FieldTypeEmail},
			{Key: "email", Type: form.FieldTypeText},
		},
	})
	if err == nil {
		t.Error("expected error for duplicate field key")
	}
}

func TestFormService_PublishForm(t *testing.T) {
	svc, _, _ := newFormService()
	orgID := shared.NewID()

	f, err := svc.CreateForm(context.Background(), app.CreateFormInput{
		OrganizationID: orgID,
		Name:           "Contact Form",
		Fields:         testFields(),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	published, err := svc.PublishForm(context.Background(), orgID, f.ID)
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if published.Status != form.StatusPublished {
		t.Errorf("expected published, got %s", published.Status)
	}
}

func TestFormService_PublishForm_Empty(t *testing.T) {
	svc, _, _ := newFormService()
	orgID := shared.NewID()

	f, err := svc.CreateForm(context.Background(), app.CreateFormInput{
		OrganizationID: orgID,
		Name:           "Empty Form",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = svc.PublishForm(context.Background(), orgID, f.ID)
	if shared.ErrorCode(err) != "EMPTY_FORM" {
		t.Errorf("expected EMPTY_FORM, got %v", err)
	}
}

func TestFormService_PublishForm_Archived(t *testing.T) {
	svc, _, _ := newFormService()
	orgID := shared.NewID()

	f, err := svc.CreateForm(context.Background(), app.CreateFormInput{
		OrganizationID: orgID,
		Name:           "Old Form",
		Fields:         testFields(),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.ArchiveForm(context.Background(), orgID, f.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	if _, err := svc.PublishForm(context.Background(), orgID, f.ID); err == nil {
		t.Error("expected archived form to reject publishing")
	}
}

func TestFormService_GetPublicForm(t *testing.T) {
	svc, _, _ := newFormService()
	orgID := shared.NewID()

	f, err := svc.CreateForm(context.Background(), app.CreateFormInput{
		OrganizationID: orgID,
		Name:           "Contact Form",
		Slug:           "contact",
		Fields:         testFields(),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Draft forms are indistinguishable from missing ones.
	if _, err := svc.GetPublicForm(context.Background(), "contact"); !shared.IsNotFound(err) {
		t.Errorf("expected not found for draft form, got %v", err)
	}

	if _, err := svc.PublishForm(context.Background(), orgID, f.ID); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	got, err := svc.GetPublicForm(context.Background(), "contact")
	if err != nil {
		t.Fatalf("expected published form, got %v", err)
	}
	if !got.ID.Equals(f.ID) {
		t.Error("unexpected form returned")
	}
}

func TestFormService_UpdateForm_FieldsBumpVersion(t *testing.T) {
	svc, _, _ := newFormService()
	orgID := shared.NewID()

	f, err := svc.CreateForm(context.Background(), app.CreateFormInput{
		OrganizationID: orgID,
		Name:           "Contact Form",
		Fields:         testFields(),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := svc.UpdateForm(context.Background(), app.UpdateFormInput{
		OrganizationID: orgID,
		FormID:         f.ID,
		Fields: []form.Field{
			{Key: "name", Type: form.FieldTypeText, Label: "Name"},
		},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected field change to bump version to 2, got %d", updated.Version)
	}
	if len(updated.Fields) != 1 {
		t.Errorf("expected fields replaced, got %d", len(updated.Fields))
	}
}
