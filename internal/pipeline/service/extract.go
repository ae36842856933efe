package service

import (
	"context"

	"github.com/smallbiznis/opinionetl/internal/observability/metrics"
	"github.com/smallbiznis/opinionetl/internal/observability/tracing"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	"github.com/smallbiznis/opinionetl/internal/pipeline/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// extract runs every extractor concurrently. Results keep extractor order, and a failed
// source never stops the others.
func (o *Orchestrator) extract(ctx context.Context) ([]domain.ExtractionResult, []opinion.RawOpinion) {
	ctx, start := o.phaseStart(ctx, metrics.PhaseExtract)
	ctx, span := tracing.StartSpan(ctx, "pipeline.extract")
	defer span.End()

	results := make([]domain.ExtractionResult, len(o.extractors))
	records := make([][]opinion.RawOpinion, len(o.extractors))

	var g errgroup.Group
	for i, extractor := range o.extractors {
		results[i] = domain.ExtractionResult{
			SourceName: extractor.SourceName(),
			Origin:     extractor.Origin(),
		}
		if err := ctx.Err(); err != nil {
			now := o.clock.Now()
			results[i].Start, results[i].End = now, now
			results[i].Error = err.Error()
			continue
		}

		g.Go(func() error {
			results[i].Start = o.clock.Now()
			raws, err := o.runExtractor(ctx, i)
			results[i].End = o.clock.Now()
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Success = true
			results[i].RecordsExtracted = len(raws)
			records[i] = raws
			return nil
		})
	}
	_ = g.Wait()

	var (
		all    []opinion.RawOpinion
		failed int
	)
	log := o.logger(ctx)
	for i, res := range results {
		all = append(all, records[i]...)
		o.metrics.AddSourceRecords(res.SourceName, res.RecordsExtracted)
		if res.Success {
			log.Info("pipeline.source.extracted",
				zap.String("source", res.SourceName),
				zap.Int("records", res.RecordsExtracted),
				zap.Int64("duration_ms", res.Duration().Milliseconds()),
			)
			continue
		}
		failed++
		log.Error("pipeline.source.failed",
			zap.String("source", res.SourceName),
			zap.String("error", res.Error),
		)
	}
	if failed > 0 {
		span.SetAttributes(attribute.Int("failed_sources", failed))
	}

	o.metrics.AddRecords(metrics.PhaseExtract, metrics.OutcomeExtracted, len(all))
	o.phaseFinish(ctx, metrics.PhaseExtract, start, o.clock.Now(),
		zap.Int("records_extracted", len(all)),
		zap.Int("failed_sources", failed),
	)
	return results, all
}

// runExtractor isolates a panicking extractor to its own slot.
func (o *Orchestrator) runExtractor(ctx context.Context, slot int) (raws []opinion.RawOpinion, err error) {
	extractor := o.extractors[slot]
	defer func() {
		if r := recover(); r != nil {
			raws = nil
			err = panicError(r)
			o.logger(ctx).Error("pipeline.source.panic",
				zap.String("source", extractor.SourceName()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
		if err != nil {
			o.metrics.IncSourceFailure(extractor.SourceName(), err)
			o.metrics.IncPhaseFailure(metrics.PhaseExtract, err)
		}
	}()
	return extractor.Extract(ctx)
}
