package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/internal/infra/postgres"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/pagination"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage workflows",
}

var (
	workflowOrgID string
	workflowFile  string
)

// workflowSpec is the YAML import format.
type workflowSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Settings    struct {
		ExecutionMode string `yaml:"execution_mode"`
		MaxRetries    int    `yaml:"max_retries"`
	} `yaml:"settings"`
	Embed struct {
		AllowPublicViewing bool `yaml:"allow_public_viewing"`
	} `yaml:"embed"`
	Nodes []struct {
		Key    string         `yaml:"key"`
		Type   string         `yaml:"type"`
		Name   string         `yaml:"name"`
		Config map[string]any `yaml:"config"`
	} `yaml:"nodes"`
	Edges []struct {
		Source string `yaml:"source"`
		Target string `yaml:"target"`
		Label  string `yaml:"label"`
	} `yaml:"edges"`
}

var workflowImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a workflow from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		orgID, err := shared.IDFromString(workflowOrgID)
		if err != nil {
			return fmt.Errorf("invalid organization id: %w", err)
		}

		data, err := os.ReadFile(workflowFile)
		if err != nil {
			return fmt.Errorf("read workflow file: %w", err)
		}

		var spec workflowSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return fmt.Errorf("parse workflow file: %w", err)
		}

		input := app.CreateWorkflowInput{
			OrganizationID: orgID,
			Name:           spec.Name,
			Description:    spec.Description,
		}

		settings := workflow.DefaultSettings()
		if spec.Settings.ExecutionMode != "" {
			settings.ExecutionMode = workflow.ExecutionMode(spec.Settings.ExecutionMode)
		}
		settings.RetryPolicy.MaxRetries = spec.Settings.MaxRetries
		input.Settings = &settings
		input.EmbedSettings = &workflow.EmbedSettings{AllowPublicViewing: spec.Embed.AllowPublicViewing}

		for _, n := range spec.Nodes {
			input.Nodes = append(input.Nodes, app.CreateNodeInput{
				NodeKey: n.Key,
				Type:    workflow.NodeType(n.Type),
				Name:    n.Name,
				Config:  n.Config,
			})
		}
		for _, e := range spec.Edges {
			input.Edges = append(input.Edges, app.CreateEdgeInput{
				SourceNodeKey: e.Source,
				TargetNodeKey: e.Target,
				Label:         e.Label,
			})
		}

		admin, err := newAdminContext()
		if err != nil {
			return err
		}
		defer admin.Close()

		workflowService := app.NewWorkflowService(postgres.NewWorkflowRepository(admin.db), admin.log)
		created, err := workflowService.CreateWorkflow(cmd.Context(), input)
		if err != nil {
			return err
		}

		fmt.Printf("Workflow imported\n  ID:    %s\n  Slug:  %s\n  Nodes: %d\n  Edges: %d\n",
			created.ID, created.Slug, len(created.Nodes), len(created.Edges))
		return nil
	},
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an organization's workflows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		orgID, err := shared.IDFromString(workflowOrgID)
		if err != nil {
			return fmt.Errorf("invalid organization id: %w", err)
		}

		admin, err := newAdminContext()
		if err != nil {
			return err
		}
		defer admin.Close()

		workflowService := app.NewWorkflowService(postgres.NewWorkflowRepository(admin.db), admin.log)
		result, err := workflowService.ListWorkflows(cmd.Context(), app.ListWorkflowsInput{
			OrganizationID: orgID,
			Page:           pagination.New(pagination.MaxLimit, 0),
		})
		if err != nil {
			return err
		}

		fmt.Printf("%-38s %-10s %-8s %s\n", "ID", "STATUS", "VERSION", "NAME")
		for _, w := range result.Data {
			fmt.Printf("%-38s %-10s %-8d %s\n", w.ID, w.Status, w.Version, w.Name)
		}
		fmt.Printf("\n%d of %d workflows\n", len(result.Data), result.Total)
		return nil
	},
}

func init() {
	workflowImportCmd.Flags().StringVar(&workflowOrgID, "org", "", "Organization ID (required)")
	workflowImportCmd.Flags().StringVarP(&workflowFile, "file", "f", "", "Workflow YAML file (required)")
	_ = workflowImportCmd.MarkFlagRequired("org")
	_ = workflowImportCmd.MarkFlagRequired("file")

	workflowListCmd.Flags().StringVar(&workflowOrgID, "org", "", "Organization ID (required)")
	_ = workflowListCmd.MarkFlagRequired("org")

	workflowCmd.AddCommand(workflowImportCmd)
	workflowCmd.AddCommand(workflowListCmd)
}
