package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opinionetl/internal/pipeline/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.RunRepository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, run *domain.Run) error {
	return db.WithContext(ctx).Create(run).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Run, error) {
	var run domain.Run
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == 0 {
		return nil, nil
	}
	return &run, nil
}

func (r *repo) ListRecent(ctx context.Context, db *gorm.DB, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []domain.Run
	err := db.WithContext(ctx).
		Order("started_at desc, id desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
