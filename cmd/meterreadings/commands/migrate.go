package commands

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var log *zap.Logger
			app := fx.New(infra(), fx.Populate(&log), fx.NopLogger)

			return runOnce(app, func(context.Context) error {
				log.Info("migrations applied")
				return nil
			})
		},
	}
}
