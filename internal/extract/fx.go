package extract

import (
	"github.com/smallbiznis/opinionetl/internal/extract/api"
	"github.com/smallbiznis/opinionetl/internal/extract/csvfile"
	"github.com/smallbiznis/opinionetl/internal/extract/database"
	"github.com/smallbiznis/opinionetl/internal/extract/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("extract",
	fx.Provide(database.ProvideSourceDB),
	fx.Provide(csvfile.New),
	fx.Provide(database.New),
	fx.Provide(api.New),
	fx.Provide(NewExtractors),
)

// NewExtractors lists the sources in the order their results are reported.
func NewExtractors(csvSource *csvfile.Extractor, dbSource *database.Extractor, apiSource *api.Extractor) []domain.Extractor {
	return []domain.Extractor{csvSource, dbSource, apiSource}
}
