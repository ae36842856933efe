package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opinionetl/internal/clock"
	"github.com/smallbiznis/opinionetl/internal/config"
	extractdomain "github.com/smallbiznis/opinionetl/internal/extract/domain"
	obscontext "github.com/smallbiznis/opinionetl/internal/observability/context"
	obslogger "github.com/smallbiznis/opinionetl/internal/observability/logger"
	"github.com/smallbiznis/opinionetl/internal/observability/metrics"
	"github.com/smallbiznis/opinionetl/internal/observability/tracing"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	"github.com/smallbiznis/opinionetl/internal/pipeline/domain"
	sentimentdomain "github.com/smallbiznis/opinionetl/internal/sentiment/domain"
	transformdomain "github.com/smallbiznis/opinionetl/internal/transform/domain"
	warehouseservice "github.com/smallbiznis/opinionetl/internal/warehouse/service"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid_pipeline_config")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Config      config.Config
	Extractors  []extractdomain.Extractor
	Transformer transformdomain.Transformer
	UoW         *warehouseservice.Factory
	Runs        domain.RunRepository
	GenID       *snowflake.Node
	Metrics     *metrics.PipelineMetrics `optional:"true"`
	Clock       clock.Clock              `optional:"true"`
}

// Orchestrator runs extract, transform and load in sequence. Execute calls are serialized.
type Orchestrator struct {
	db             *gorm.DB
	log            *zap.Logger
	extractors     []extractdomain.Extractor
	transformer    transformdomain.Transformer
	uow            *warehouseservice.Factory
	runs           domain.RunRepository
	genID          *snowflake.Node
	metrics        *metrics.PipelineMetrics
	clock          clock.Clock
	skipDuplicates bool

	mu    sync.Mutex
	state atomic.Int32
}

func New(p Params) (*Orchestrator, error) {
	if p.DB == nil || p.Transformer == nil || p.UoW == nil || p.Runs == nil || p.GenID == nil {
		return nil, ErrInvalidConfig
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Orchestrator{
		db:             p.DB,
		log:            log.Named("pipeline.service"),
		extractors:     p.Extractors,
		transformer:    p.Transformer,
		uow:            p.UoW,
		runs:           p.Runs,
		genID:          p.GenID,
		metrics:        p.Metrics,
		clock:          clk,
		skipDuplicates: p.Config.SkipDuplicates,
	}, nil
}

func (o *Orchestrator) State() domain.State {
	return domain.State(o.state.Load())
}

func (o *Orchestrator) setState(s domain.State) {
	o.state.Store(int32(s))
}

// Execute runs one full pipeline pass and always returns a summary. Panics are recovered
// into a failed summary.
func (o *Orchestrator) Execute(ctx context.Context) (summary domain.ExecutionSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	runID := o.genID.Generate()
	ctx, correlationID := obscontext.EnsureCorrelationID(ctx)
	ctx = obscontext.WithRunID(ctx, runID.String())
	ctx, span := tracing.StartSpan(ctx, "pipeline.execute", attribute.Int("extractors", len(o.extractors)))
	defer span.End()

	log := o.logger(ctx)
	summary = domain.ExecutionSummary{
		RunID:         runID.String(),
		CorrelationID: correlationID,
		Start:         o.clock.Now(),
		Success:       true,
	}
	log.Info("pipeline.run.start", zap.Int("extractors", len(o.extractors)))

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", domain.ErrPipelinePanic, r)
			log.Error("pipeline.run.panic", zap.Any("panic", r), zap.Stack("stack"))
			summary.Success = false
			summary.Error = err.Error()
			span.RecordError(err)
		}
		o.finish(ctx, runID, &summary)
		if !summary.Success {
			span.SetStatus(codes.Error, "pipeline run failed")
		}
	}()

	o.setState(domain.StateExtracting)
	extractions, raws := o.extract(ctx)
	summary.Extractions = extractions
	for _, ex := range extractions {
		if !ex.Success {
			summary.Success = false
		}
	}

	o.setState(domain.StateTransforming)
	transformation, batch := o.transform(ctx, raws)
	summary.Transformation = &transformation
	summary.Statistics = sentimentdomain.NewStatistics(batch.Opinions)
	if !transformation.Success {
		summary.Success = false
	}

	o.setState(domain.StateLoading)
	loading := o.load(ctx, batch.Opinions)
	summary.Loading = &loading
	summary.TotalRecordsProcessed = loading.RecordsLoaded
	if !loading.Success {
		summary.Success = false
	}

	return summary
}

func (o *Orchestrator) finish(ctx context.Context, runID snowflake.ID, summary *domain.ExecutionSummary) {
	summary.End = o.clock.Now()
	summary.Duration = summary.End.Sub(summary.Start)
	if summary.Success {
		summary.State = domain.StateCompleted
	} else {
		summary.State = domain.StateFailed
	}
	o.setState(summary.State)
	o.metrics.ObserveRun(summary.Success, summary.Duration, summary.End)

	fields := []zap.Field{
		zap.String("status", summary.Status()),
		zap.Int("records_extracted", summary.RecordsExtracted()),
		zap.Int("records_processed", summary.TotalRecordsProcessed),
		zap.Int64("duration_ms", summary.Duration.Milliseconds()),
	}
	log := o.logger(ctx)
	if summary.Success {
		log.Info("pipeline.run.finish", fields...)
	} else {
		log.Warn("pipeline.run.finish", fields...)
	}

	if err := o.persist(context.WithoutCancel(ctx), runID, *summary); err != nil {
		log.Error("pipeline.run.persist_failed", zap.Error(err))
	}
}

func (o *Orchestrator) persist(ctx context.Context, runID snowflake.ID, summary domain.ExecutionSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	run := &domain.Run{
		ID:               runID,
		CorrelationID:    summary.CorrelationID,
		StartedAt:        summary.Start,
		FinishedAt:       summary.End,
		Status:           summary.Status(),
		RecordsExtracted: summary.RecordsExtracted(),
		Summary:          datatypes.JSON(payload),
		CreatedAt:        o.clock.Now(),
	}
	if summary.Transformation != nil {
		run.RecordsTransformed = summary.Transformation.RecordsTransformed
		run.RecordsSkipped = summary.Transformation.RecordsSkipped
	}
	if summary.Loading != nil {
		run.RecordsLoaded = summary.Loading.RecordsLoaded
		run.RecordsFailed = summary.Loading.RecordsFailed
		run.RecordsDuplicate = summary.Loading.RecordsDuplicate
	}
	return o.runs.Insert(ctx, o.db, run)
}

func (o *Orchestrator) transform(ctx context.Context, raws []opinion.RawOpinion) (domain.TransformationResult, transformdomain.BatchResult) {
	ctx, start := o.phaseStart(ctx, metrics.PhaseTransform)
	result := domain.TransformationResult{Start: start}

	ctx, span := tracing.StartSpan(ctx, "pipeline.transform", attribute.Int("records", len(raws)))
	defer span.End()

	batch, err := o.transformer.TransformBatch(ctx, raws)
	for _, failure := range batch.Failures {
		result.Errors = append(result.Errors, failure.Error())
	}
	result.RecordsTransformed = len(batch.Opinions)
	result.RecordsSkipped = len(raws) - len(batch.Opinions)
	result.Success = err == nil
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		o.metrics.IncPhaseFailure(metrics.PhaseTransform, err)
		span.RecordError(err)
		o.logger(ctx).Error("pipeline.phase.failed", zap.Error(err))
	}
	result.End = o.clock.Now()

	o.metrics.AddRecords(metrics.PhaseTransform, metrics.OutcomeTransformed, result.RecordsTransformed)
	o.metrics.AddRecords(metrics.PhaseTransform, metrics.OutcomeSkipped, result.RecordsSkipped)
	o.phaseFinish(ctx, metrics.PhaseTransform, start, result.End,
		zap.Int("records_transformed", result.RecordsTransformed),
		zap.Int("records_skipped", result.RecordsSkipped),
	)
	return result, batch
}

// phaseStart tags ctx with the phase so every log line of the phase carries it.
func (o *Orchestrator) phaseStart(ctx context.Context, phase string) (context.Context, time.Time) {
	ctx = obscontext.WithPhase(ctx, phase)
	o.logger(ctx).Info("pipeline.phase.start")
	return ctx, o.clock.Now()
}

func (o *Orchestrator) phaseFinish(ctx context.Context, phase string, start, end time.Time, fields ...zap.Field) {
	duration := end.Sub(start)
	o.metrics.ObservePhase(phase, duration)
	fields = append([]zap.Field{zap.Int64("duration_ms", duration.Milliseconds())}, fields...)
	o.logger(ctx).Info("pipeline.phase.finish", fields...)
}

func (o *Orchestrator) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, o.log)
}
