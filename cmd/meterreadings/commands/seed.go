package commands

import (
	"context"
	"errors"

	"github.com/smallbiznis/meterreadings/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the account directory from a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}

			var (
				conn *gorm.DB
				log  *zap.Logger
			)
			app := fx.New(infra(), fx.Populate(&conn, &log), fx.NopLogger)

			return runOnce(app, func(ctx context.Context) error {
				n, err := seed.EnsureAccountsFromFile(ctx, conn, file)
				if err != nil {
					return err
				}
				log.Info("accounts seeded", zap.String("file", file), zap.Int64("inserted", n))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "accounts CSV (AccountId,FirstName,LastName)")
	return cmd
}
