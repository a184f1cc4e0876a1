package app_test

import (
	"context"
	"testing"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/pkg/domain/organization"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/logger"
)

func newOrganizationService() (*app.OrganizationService, *mockOrgRepo) {
	repo := newMockOrgRepo()
	return app.NewOrganizationService(repo, logger.NewNop()), repo
}

func TestOrganizationService_CreateOrganization(t *testing.T) {
	svc, repo := newOrganizationService()
	ownerID := shared.NewID()

	org, err := svc.CreateOrganization(context.Background(), app.CreateOrganizationInput{
		Name:    "Acme",
		Slug:    "acme",
		Plan:    organization.PlanPro,
		OwnerID: ownerID,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if org.Plan != organization.PlanPro {
		t.Errorf("expected pro plan, got %s", org.Plan)
	}

	member, err := repo.GetMember(context.Background(), org.ID, ownerID)
	if err != nil {
		t.Fatalf("expected owner membership, got %v", err)
	}
	if member.Role != organization.RoleOwner {
		t.Errorf("expected owner role, got %s", member.Role)
	}
}

func TestOrganizationService_CreateOrganization_DefaultsToFree(t *testing.T) {
	svc, _ := newOrganizationService()

	org, err := svc.CreateOrganization(context.Background(), app.CreateOrganizationInput{
		Name: "Acme",
		Slug: "acme",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if org.Plan != organization.PlanFree {
		t.Errorf("expected free plan by default, got %s", org.Plan)
	}
}

func TestOrganizationService_CreateOrganization_DuplicateSlug(t *testing.T) {
	svc, _ := newOrganizationService()

	if _, err := svc.CreateOrganization(context.Background(), app.CreateOrganizationInput{
		Name: "Acme", Slug: "acme",
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.CreateOrganization(context.Background(), app.CreateOrganizationInput{
		Name: "Acme Two", Slug: "acme",
	}); err == nil {
		t.Error("expected error for duplicate slug")
	}
}

func TestOrganizationService_ChangePlan(t *testing.T) {
	svc, _ := newOrganizationService()

	org, err := svc.CreateOrganization(context.Background(), app.CreateOrganizationInput{
		Name: "Acme", Slug: "acme",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	changed, err := svc.ChangePlan(context.Background(), org.ID, organization.PlanEnterprise)
	if err != nil {
		t.Fatalf("change plan failed: %v", err)
	}
	if changed.Plan != organization.PlanEnterprise {
		t.Errorf("expected enterprise, got %s", changed.Plan)
	}

	if _, err := svc.ChangePlan(context.Background(), org.ID, organization.Plan("bogus")); err == nil {
		t.Error("expected error for unknown plan")
	}
	if _, err := svc.ChangePlan(context.Background(), shared.NewID(), organization.PlanPro); !shared.IsNotFound(err) {
		t.Errorf("expected not found for unknown org, got %v", err)
	}
}

func TestOrganizationService_AddMember(t *testing.T) {
	svc, repo := newOrganizationService()

	org, err := svc.CreateOrganization(context.Background(), app.CreateOrganizationInput{
		Name: "Acme", Slug: "acme",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	userID := shared.NewID()
	if err := svc.AddMember(context.Background(), app.AddMemberInput{
		OrganizationID: org.ID,
		UserID:         userID,
		Role:           organization.RoleViewer,
	}); err != nil {
		t.Fatalf("add member failed: %v", err)
	}

	isMember, err := repo.IsMember(context.Background(), org.ID, userID)
	if err != nil || !isMember {
		t.Errorf("expected membership recorded, got %t, %v", isMember, err)
	}

	if err := svc.AddMember(context.Background(), app.AddMemberInput{
		OrganizationID: org.ID,
		UserID:         shared.NewID(),
		Role:           organization.Role("superuser"),
	}); err == nil {
		t.Error("expected error for unknown role")
	}
}
