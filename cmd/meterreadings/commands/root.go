package commands

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meterreadings/internal/config"
	"github.com/smallbiznis/meterreadings/internal/migration"
	"github.com/smallbiznis/meterreadings/internal/observability"
	"github.com/smallbiznis/meterreadings/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const startStopTimeout = 30 * time.Second

var nodeID int64

func Execute() error {
	root := &cobra.Command{
		Use:           "meterreadings",
		Short:         "Meter reading upload service",
		SilenceUsage: true,
	}

	root.PersistentFlags().Int64Var(&nodeID, "node", 1, "snowflake node id used for reading ids")

	root.AddCommand(serveCmd(), migrateCmd(), seedCmd(), ingestCmd())
	return root.Execute()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(nodeID)
}

// infra is the set of modules every command needs: configuration, logging,
// the database handle and a migrated schema.
func infra() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
	)
}

// runOnce starts the app, runs fn and stops the app again.
func runOnce(app *fx.App, fn func(ctx context.Context) error) error {
	startCtx, cancel := context.WithTimeout(context.Background(), startStopTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(context.Background())

	stopCtx, cancelStop := context.WithTimeout(context.Background(), startStopTimeout)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}
