package metricsexport

import "go.uber.org/fx"

var Module = fx.Module("metrics.export",
	fx.Provide(NewPusher),
)
