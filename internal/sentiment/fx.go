package sentiment

import (
	"github.com/smallbiznis/opinionetl/internal/sentiment/domain"
	"github.com/smallbiznis/opinionetl/internal/sentiment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sentiment.service",
	fx.Provide(service.New),
	fx.Provide(func(s *service.Service) domain.Analyzer { return s }),
)
