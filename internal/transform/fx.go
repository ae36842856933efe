package transform

import (
	"github.com/smallbiznis/opinionetl/internal/transform/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transform.service",
	fx.Provide(service.New),
)
