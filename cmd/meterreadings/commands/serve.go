package commands

import (
	"github.com/smallbiznis/meterreadings/internal/clock"
	"github.com/smallbiznis/meterreadings/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				infra(),
				clock.Module,
				server.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
