// Package cmd implements the netpad-admin command line tool.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netpad/api/internal/config"
	"github.com/netpad/api/internal/infra/postgres"
	"github.com/netpad/api/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "netpad-admin",
	Short: "Administrative tool for NetPad",
	Long: `netpad-admin manages NetPad organizations and workflows directly
against the database. It reads the same environment configuration as the
server (DB_*, REDIS_*).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(orgCmd)
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(keygenCmd)
}

// adminContext bundles the dependencies admin commands need.
type adminContext struct {
	cfg *config.Config
	db  *postgres.DB
	log *logger.Logger
}

// newAdminContext loads configuration and connects to the database.
// Callers must Close the returned context.
func newAdminContext() (*adminContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  "warn",
		Format: "text",
		Output: os.Stderr,
	})

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &adminContext{cfg: cfg, db: db, log: log}, nil
}

func (a *adminContext) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Error("failed to close database", "error", err)
	}
}
