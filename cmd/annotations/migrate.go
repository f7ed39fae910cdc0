package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deppfellow/annotations/internal/config"
	"github.com/deppfellow/annotations/internal/database"
	"github.com/deppfellow/annotations/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := logger.NewLogger(cfg.Observability)

			if err := database.Migrate(cmd.Context(), &log, cfg); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			return nil
		},
	}
}
