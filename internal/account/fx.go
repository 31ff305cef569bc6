package account

import (
	"github.com/smallbiznis/meterreadings/internal/account/repository"
	"github.com/smallbiznis/meterreadings/internal/account/service"
	"github.com/smallbiznis/meterreadings/internal/cache"
	"go.uber.org/fx"
)

func provideDirectoryCache() cache.AccountDirectoryCache {
	return cache.NewAccountDirectoryCache(0)
}

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(provideDirectoryCache),
	fx.Provide(service.New),
)
