package main

import (
	"github.com/spf13/cobra"
)

var migrateLegacy bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the payment request tables",
	Long: `Create or update the payment request tables.

With --legacy the read-only project source tables (construction_projects,
contractor_estimates and the layout tables) are created too. Use it for
local development databases only.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(false)
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(cmd.Context(), migrateLegacy || cfg.Database.MigrateLegacy); err != nil {
			return err
		}
		logger.Info("migration complete", "dialect", db.Dialect())
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateLegacy, "legacy", false, "Also create the legacy project tables")
	rootCmd.AddCommand(migrateCmd)
}
