package main

import (
	"log/slog"

	"github.com/harry-2401/reddit/internal/migrate"
	"github.com/harry-2401/reddit/internal/shared/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := db.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := migrate.AutoMigrateAll(store); err != nil {
			return err
		}
		slog.Info("schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
