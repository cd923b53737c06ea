package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check connectivity to stores and AI providers",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Long:  `Creates the tables and vector indexes for the configured embedding dimensions. Safe to run repeatedly.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(migrateCmd)
}

type healthStatus struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func runHealth(cmd *cobra.Command, _ []string) error {
	if deps == nil || deps.Health == nil {
		return errors.New("health checks not configured")
	}

	results := deps.Health.HealthCheck(cmd.Context())
	statuses := make([]healthStatus, 0, len(results))
	failed := 0
	for _, r := range results {
		s := healthStatus{Name: r.Name, OK: r.Err == nil}
		if r.Err != nil {
			s.Reason = r.Err.Error()
			failed++
		}
		statuses = append(statuses, s)
	}

	if jsonOutput {
		if err := printJSON(cmd, statuses); err != nil {
			return err
		}
	} else {
		for _, s := range statuses {
			if s.OK {
				cmd.Printf("  %-12s ok\n", s.Name)
			} else {
				cmd.Printf("  %-12s FAIL  %s\n", s.Name, s.Reason)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(statuses))
	}
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if deps == nil || deps.Migrator == nil {
		return errors.New("database not configured")
	}

	if err := deps.Migrator.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	cmd.Println("Schema is up to date")
	return nil
}
