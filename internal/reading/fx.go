package reading

import (
	"github.com/smallbiznis/meterreadings/internal/reading/repository"
	"github.com/smallbiznis/meterreadings/internal/reading/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reading.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
