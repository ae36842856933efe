package warehouse

import (
	"github.com/smallbiznis/opinionetl/internal/warehouse/repository"
	"github.com/smallbiznis/opinionetl/internal/warehouse/service"
	"go.uber.org/fx"
)

var Module = fx.Module("warehouse.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewFactory),
	fx.Provide(service.NewDimensionLoader),
)
