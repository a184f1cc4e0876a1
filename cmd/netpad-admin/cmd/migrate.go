package cmd

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/netpad/api/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrationsDir string

// migrationSource returns the embedded migrations unless --dir points at
// a local directory.
func migrationSource() fs.FS {
	if migrationsDir != "" {
		return os.DirFS(migrationsDir)
	}
	return migrations.Default()
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		admin, err := newAdminContext()
		if err != nil {
			return err
		}
		defer admin.Close()

		runner := migrations.NewRunner(admin.db.DB, migrationSource())
		applied, err := runner.Up(cmd.Context())
		for _, m := range applied {
			fmt.Printf("Applied: %s_%s\n", m.Version, m.Name)
		}
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("No pending migrations")
		}
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		admin, err := newAdminContext()
		if err != nil {
			return err
		}
		defer admin.Close()

		runner := migrations.NewRunner(admin.db.DB, migrationSource())
		rolled, err := runner.Down(cmd.Context())
		if err != nil {
			return err
		}
		if rolled == nil {
			fmt.Println("No migrations to roll back")
			return nil
		}
		fmt.Printf("Rolled back: %s_%s\n", rolled.Version, rolled.Name)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		admin, err := newAdminContext()
		if err != nil {
			return err
		}
		defer admin.Close()

		runner := migrations.NewRunner(admin.db.DB, migrationSource())
		if err := runner.EnsureTable(cmd.Context()); err != nil {
			return err
		}

		applied, err := runner.Applied(cmd.Context())
		if err != nil {
			return err
		}
		appliedAt := make(map[string]string, len(applied))
		for _, rec := range applied {
			appliedAt[rec.Version] = rec.AppliedAt.Format("2006-01-02 15:04")
		}

		available, err := migrations.Load(migrationSource(), "up")
		if err != nil {
			return err
		}

		fmt.Printf("%-8s %-30s %s\n", "VERSION", "NAME", "APPLIED")
		for _, m := range available {
			status := "pending"
			if at, ok := appliedAt[m.Version]; ok {
				status = at
			}
			fmt.Printf("%-8s %-30s %s\n", m.Version, m.Name, status)
		}
		return nil
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "", "Load migrations from a directory instead of the embedded set")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
