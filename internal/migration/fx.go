package migration

import (
	"context"

	"github.com/smallbiznis/meterreadings/internal/config"
	"github.com/smallbiznis/meterreadings/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Run(conn, cfg.DBType); err != nil {
			return err
		}

		if cfg.Seed.AccountsFile == "" {
			return nil
		}
		n, err := seed.EnsureAccountsFromFile(context.Background(), conn, cfg.Seed.AccountsFile)
		if err != nil {
			return err
		}
		log.Info("account directory seeded",
			zap.String("file", cfg.Seed.AccountsFile),
			zap.Int64("inserted", n),
		)
		return nil
	}),
)
