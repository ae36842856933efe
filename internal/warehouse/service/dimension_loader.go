package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/opinionetl/internal/warehouse/domain"
	"go.uber.org/zap"
)

// DimensionLoader bulk-upserts master data into the client and product dimensions.
type DimensionLoader struct {
	uow *Factory
	log *zap.Logger
}

func NewDimensionLoader(f *Factory) *DimensionLoader {
	return &DimensionLoader{uow: f, log: f.log.Named("dimensions")}
}

// LoadClients upserts every row in one transaction. Rows that fail are logged and skipped.
func (l *DimensionLoader) LoadClients(ctx context.Context, rows []domain.DimCliente) (int, error) {
	return load(ctx, l, "dim_cliente", rows, func(u *UnitOfWork, row domain.DimCliente) error {
		return u.Clients().Upsert(ctx, row)
	}, func(row domain.DimCliente) string { return row.IDCliente })
}

func (l *DimensionLoader) LoadProducts(ctx context.Context, rows []domain.DimProducto) (int, error) {
	return load(ctx, l, "dim_producto", rows, func(u *UnitOfWork, row domain.DimProducto) error {
		return u.Products().Upsert(ctx, row)
	}, func(row domain.DimProducto) string { return row.IDProducto })
}

func load[T any](ctx context.Context, l *DimensionLoader, table string, rows []T, upsert func(*UnitOfWork, T) error, key func(T) string) (int, error) {
	log := l.log.With(zap.String("table", table))
	log.Info("dimensions.load.start", zap.Int("rows", len(rows)))

	u := l.uow.New()
	if err := u.Begin(ctx); err != nil {
		return 0, err
	}

	loaded := 0
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return 0, errors.Join(err, u.Rollback())
		}
		sp := fmt.Sprintf("dim_row_%d", i)
		if err := u.SavePoint(sp); err != nil {
			return 0, errors.Join(err, u.Rollback())
		}
		if err := upsert(u, row); err != nil {
			log.Error("dimensions.row.failed", zap.String("id", key(row)), zap.Error(err))
			if rbErr := u.RollbackTo(sp); rbErr != nil {
				return 0, errors.Join(err, rbErr, u.Rollback())
			}
			continue
		}
		loaded++
	}

	if err := u.Commit(); err != nil {
		return 0, err
	}
	log.Info("dimensions.load.finish", zap.Int("loaded", loaded), zap.Int("failed", len(rows)-loaded))
	return loaded, nil
}
