package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/internal/infra/postgres"
	"github.com/netpad/api/pkg/domain/organization"
	"github.com/netpad/api/pkg/domain/shared"
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage organizations",
}

var (
	orgName    string
	orgSlug    string
	orgPlan    string
	orgOwnerID string
)

var orgCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an organization",
	RunE: func(cmd *cobra.Command, _ []string) error {
		admin, err := newAdminContext()
		if err != nil {
			return err
		}
		defer admin.Close()

		input := app.CreateOrganizationInput{
			Name: orgName,
			Slug: orgSlug,
			Plan: organization.Plan(orgPlan),
		}
		if orgOwnerID != "" {
			ownerID, err := shared.IDFromString(orgOwnerID)
			if err != nil {
				return fmt.Errorf("invalid owner id: %w", err)
			}
			input.OwnerID = ownerID
		}

		orgService := app.NewOrganizationService(postgres.NewOrganizationRepository(admin.db), admin.log)
		org, err := orgService.CreateOrganization(cmd.Context(), input)
		if err != nil {
			return err
		}

		fmt.Printf("Organization created\n  ID:   %s\n  Slug: %s\n  Plan: %s\n", org.ID, org.Slug, org.Plan)
		return nil
	},
}

var orgPlanCmd = &cobra.Command{
	Use:   "plan <org-id>",
	Short: "Change an organization's plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, err := shared.IDFromString(args[0])
		if err != nil {
			return fmt.Errorf("invalid organization id: %w", err)
		}

		admin, err := newAdminContext()
		if err != nil {
			return err
		}
		defer admin.Close()

		orgService := app.NewOrganizationService(postgres.NewOrganizationRepository(admin.db), admin.log)
		org, err := orgService.ChangePlan(cmd.Context(), orgID, organization.Plan(orgPlan))
		if err != nil {
			return err
		}

		fmt.Printf("Organization %s moved to plan %s\n", org.Slug, org.Plan)
		return nil
	},
}

var orgAddMemberCmd = &cobra.Command{
	Use:   "add-member <org-id> <user-id>",
	Short: "Add a member to an organization",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, err := shared.IDFromString(args[0])
		if err != nil {
			return fmt.Errorf("invalid organization id: %w", err)
		}
		userID, err := shared.IDFromString(args[1])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}

		admin, err := newAdminContext()
		if err != nil {
			return err
		}
		defer admin.Close()

		orgService := app.NewOrganizationService(postgres.NewOrganizationRepository(admin.db), admin.log)
		if err := orgService.AddMember(cmd.Context(), app.AddMemberInput{
			OrganizationID: orgID,
			UserID:         userID,
			Role:           organization.Role(memberRole),
		}); err != nil {
			return err
		}

		fmt.Printf("User %s added to organization as %s\n", userID, memberRole)
		return nil
	},
}

var memberRole string

func init() {
	orgCreateCmd.Flags().StringVar(&orgName, "name", "", "Organization name (required)")
	orgCreateCmd.Flags().StringVar(&orgSlug, "slug", "", "URL slug (required)")
	orgCreateCmd.Flags().StringVar(&orgPlan, "plan", "free", "Plan: free, pro, enterprise")
	orgCreateCmd.Flags().StringVar(&orgOwnerID, "owner", "", "Owner user ID")
	_ = orgCreateCmd.MarkFlagRequired("name")
	_ = orgCreateCmd.MarkFlagRequired("slug")

	orgPlanCmd.Flags().StringVar(&orgPlan, "plan", "", "Plan: free, pro, enterprise (required)")
	_ = orgPlanCmd.MarkFlagRequired("plan")

	orgAddMemberCmd.Flags().StringVar(&memberRole, "role", "member", "Role: owner, admin, member, viewer")

	orgCmd.AddCommand(orgCreateCmd)
	orgCmd.AddCommand(orgPlanCmd)
	orgCmd.AddCommand(orgAddMemberCmd)
}
