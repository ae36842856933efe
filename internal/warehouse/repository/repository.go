package repository

import (
	"context"

	"github.com/smallbiznis/opinionetl/internal/warehouse/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ClientExists(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	return exists(ctx, db, &domain.DimCliente{}, "id_cliente = ?", id)
}

// UpsertClient is ON CONFLICT DO UPDATE on postgres/sqlite and MERGE on SQL Server.
func (r *repo) UpsertClient(ctx context.Context, db *gorm.DB, row *domain.DimCliente) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id_cliente"}},
			DoUpdates: clause.AssignmentColumns([]string{"nombre", "email"}),
		}).
		Create(row).Error
}

func (r *repo) ProductExists(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	return exists(ctx, db, &domain.DimProducto{}, "id_producto = ?", id)
}

func (r *repo) UpsertProduct(ctx context.Context, db *gorm.DB, row *domain.DimProducto) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id_producto"}},
			DoUpdates: clause.AssignmentColumns([]string{"nombre_producto", "categoria", "precio"}),
		}).
		Create(row).Error
}

func (r *repo) EnsureDate(ctx context.Context, db *gorm.DB, row *domain.DimFecha) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id_fecha"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (r *repo) FindSourceID(ctx context.Context, db *gorm.DB, name string) (int64, bool, error) {
	var rows []domain.DimFuente
	err := db.WithContext(ctx).
		Where("nombre_fuente = ?", name).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].IDFuente, true, nil
}

func (r *repo) InsertSource(ctx context.Context, db *gorm.DB, row *domain.DimFuente) error {
	return db.WithContext(ctx).Create(row).Error
}

func (r *repo) OpinionExists(ctx context.Context, db *gorm.DB, idOriginal, origin string) (bool, error) {
	return exists(ctx, db, &domain.FactOpinion{}, "id_original = ? AND fuente_origen = ?", idOriginal, origin)
}

func (r *repo) InsertOpinion(ctx context.Context, db *gorm.DB, row *domain.FactOpinion) error {
	return db.WithContext(ctx).Omit(clause.Associations).Create(row).Error
}

func exists(ctx context.Context, db *gorm.DB, model interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
