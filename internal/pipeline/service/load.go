package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/opinionetl/internal/observability/metrics"
	"github.com/smallbiznis/opinionetl/internal/observability/tracing"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	"github.com/smallbiznis/opinionetl/internal/pipeline/domain"
	transformdomain "github.com/smallbiznis/opinionetl/internal/transform/domain"
	warehousedomain "github.com/smallbiznis/opinionetl/internal/warehouse/domain"
	warehouseservice "github.com/smallbiznis/opinionetl/internal/warehouse/service"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// load writes every opinion inside one transaction. Record failures roll back to a
// per-record savepoint; any phase error rolls back the whole transaction.
func (o *Orchestrator) load(ctx context.Context, opinions []opinion.Opinion) domain.LoadingResult {
	ctx, start := o.phaseStart(ctx, metrics.PhaseLoad)
	result := domain.LoadingResult{Start: start}

	ctx, span := tracing.StartSpan(ctx, "pipeline.load", attribute.Int("records", len(opinions)))
	defer span.End()

	err := o.loadTx(ctx, opinions, &result)
	result.Success = err == nil
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		// Nothing from a rolled back transaction reached the warehouse.
		result.RecordsLoaded = 0
		result.RecordsDuplicate = 0
		o.metrics.IncPhaseFailure(metrics.PhaseLoad, err)
		span.RecordError(err)
		o.logger(ctx).Error("pipeline.phase.failed", zap.Error(err))
	}
	result.End = o.clock.Now()

	o.metrics.AddRecords(metrics.PhaseLoad, metrics.OutcomeLoaded, result.RecordsLoaded)
	o.metrics.AddRecords(metrics.PhaseLoad, metrics.OutcomeFailed, result.RecordsFailed)
	o.metrics.AddRecords(metrics.PhaseLoad, metrics.OutcomeDuplicate, result.RecordsDuplicate)
	o.phaseFinish(ctx, metrics.PhaseLoad, start, result.End,
		zap.Int("records_loaded", result.RecordsLoaded),
		zap.Int("records_failed", result.RecordsFailed),
		zap.Int("records_duplicate", result.RecordsDuplicate),
	)
	return result
}

func (o *Orchestrator) loadTx(ctx context.Context, opinions []opinion.Opinion, result *domain.LoadingResult) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	uow := o.uow.New()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
			o.logger(ctx).Error("pipeline.load.panic", zap.Any("panic", r), zap.Stack("stack"))
		}
		if err != nil && uow.InTransaction() {
			if rbErr := uow.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback load: %w", rbErr))
			}
		}
	}()

	if err := o.loadDimensions(ctx, uow, opinions); err != nil {
		return err
	}

	log := o.logger(ctx)
	for i, op := range opinions {
		if err := ctx.Err(); err != nil {
			return err
		}

		savepoint := fmt.Sprintf("fact_row_%d", i)
		if err := uow.SavePoint(savepoint); err != nil {
			return fmt.Errorf("savepoint %s: %w", savepoint, err)
		}

		duplicate, recErr := o.loadOpinion(ctx, uow, op)
		if recErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return errors.Join(ctxErr, recErr)
			}
			if err := uow.RollbackTo(savepoint); err != nil {
				return errors.Join(recErr, fmt.Errorf("rollback to %s: %w", savepoint, err))
			}
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("Cliente: %s, Error: %s", op.ClientID, recErr))
			log.Warn("pipeline.load.record_failed",
				zap.String("client_id", op.ClientID),
				zap.String("id_original", op.IDOriginal),
				zap.String("source_origin", string(op.SourceOrigin)),
				zap.Error(recErr),
			)
			continue
		}
		if duplicate {
			result.RecordsDuplicate++
			if ce := log.Check(zap.DebugLevel, "pipeline.load.duplicate_skipped"); ce != nil {
				ce.Write(
					zap.String("id_original", op.IDOriginal),
					zap.String("source_origin", string(op.SourceOrigin)),
				)
			}
			continue
		}
		result.RecordsLoaded++
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}
	return nil
}

// loadDimensions creates the clients and products referenced by the batch, first seen wins.
func (o *Orchestrator) loadDimensions(ctx context.Context, uow *warehouseservice.UnitOfWork, opinions []opinion.Opinion) error {
	seenClients := map[string]struct{}{}
	seenProducts := map[string]struct{}{}
	createdClients, createdProducts := 0, 0

	for _, op := range opinions {
		if _, ok := seenClients[op.ClientID]; !ok {
			seenClients[op.ClientID] = struct{}{}
			created, err := uow.Clients().GetOrCreate(ctx, warehousedomain.DimCliente{
				IDCliente: op.ClientID,
				Nombre:    displayName(op.ClientName, "Cliente_", op.ClientID),
				Email:     strings.TrimSpace(op.ClientEmail),
			})
			if err != nil {
				return fmt.Errorf("load client %s: %w", op.ClientID, err)
			}
			if created {
				createdClients++
			}
		}
		if _, ok := seenProducts[op.ProductID]; !ok {
			seenProducts[op.ProductID] = struct{}{}
			created, err := uow.Products().GetOrCreate(ctx, warehousedomain.DimProducto{
				IDProducto:     op.ProductID,
				NombreProducto: displayName(op.ProductName, "Producto_", op.ProductID),
				Categoria:      strings.TrimSpace(op.ProductCategory),
			})
			if err != nil {
				return fmt.Errorf("load product %s: %w", op.ProductID, err)
			}
			if created {
				createdProducts++
			}
		}
	}

	o.logger(ctx).Info("pipeline.load.dimensions",
		zap.Int("clients", len(seenClients)),
		zap.Int("clients_created", createdClients),
		zap.Int("products", len(seenProducts)),
		zap.Int("products_created", createdProducts),
	)
	return nil
}

func (o *Orchestrator) loadOpinion(ctx context.Context, uow *warehouseservice.UnitOfWork, op opinion.Opinion) (bool, error) {
	fechaID, err := uow.Dates().GetFechaID(ctx, op.Date)
	if err != nil {
		return false, fmt.Errorf("date dimension: %w", err)
	}

	channel := strings.TrimSpace(op.OriginalChannel)
	if channel == "" {
		channel = transformdomain.ChannelUnknown
	}
	fuenteID, err := uow.Sources().GetOrCreate(ctx, channel)
	if err != nil {
		return false, fmt.Errorf("source dimension: %w", err)
	}

	if o.skipDuplicates {
		exists, err := uow.Opinions().Exists(ctx, op.IDOriginal, string(op.SourceOrigin))
		if err != nil {
			return false, fmt.Errorf("duplicate check: %w", err)
		}
		if exists {
			return true, nil
		}
	}

	fact := &warehousedomain.FactOpinion{
		IDCliente:                op.ClientID,
		IDProducto:               op.ProductID,
		IDFecha:                  fechaID,
		IDFuente:                 fuenteID,
		ClasificacionSentimiento: string(op.Classification),
		PuntajeSatisfaccion:      op.SatisfactionScore,
		Comentario:               op.Comment,
		CanalOriginal:            op.OriginalChannel,
		IDOriginal:               optionalString(op.IDOriginal),
		FuenteOrigen:             string(op.SourceOrigin),
	}
	if err := uow.Opinions().Insert(ctx, fact); err != nil {
		return false, fmt.Errorf("insert opinion: %w", err)
	}
	return false, nil
}

func displayName(name, prefix, id string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return prefix + id
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", domain.ErrPipelinePanic, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrPipelinePanic, r)
}
