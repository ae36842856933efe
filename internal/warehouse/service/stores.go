package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/opinionetl/internal/warehouse/domain"
	"github.com/smallbiznis/opinionetl/pkg/db"
	"gorm.io/gorm"
)

type clientStore struct {
	db   *gorm.DB
	repo domain.Repository
}

func (s *clientStore) GetOrCreate(ctx context.Context, row domain.DimCliente) (bool, error) {
	if strings.TrimSpace(row.IDCliente) == "" {
		return false, fmt.Errorf("%w: empty client id", domain.ErrInvalidDimension)
	}
	found, err := s.repo.ClientExists(ctx, s.db, row.IDCliente)
	if err != nil || found {
		return false, err
	}
	if err := s.repo.UpsertClient(ctx, s.db, &row); err != nil {
		return false, err
	}
	return true, nil
}

func (s *clientStore) Upsert(ctx context.Context, row domain.DimCliente) error {
	if strings.TrimSpace(row.IDCliente) == "" {
		return fmt.Errorf("%w: empty client id", domain.ErrInvalidDimension)
	}
	return s.repo.UpsertClient(ctx, s.db, &row)
}

type productStore struct {
	db   *gorm.DB
	repo domain.Repository
}

func (s *productStore) GetOrCreate(ctx context.Context, row domain.DimProducto) (bool, error) {
	if strings.TrimSpace(row.IDProducto) == "" {
		return false, fmt.Errorf("%w: empty product id", domain.ErrInvalidDimension)
	}
	found, err := s.repo.ProductExists(ctx, s.db, row.IDProducto)
	if err != nil || found {
		return false, err
	}
	if err := s.repo.UpsertProduct(ctx, s.db, &row); err != nil {
		return false, err
	}
	return true, nil
}

func (s *productStore) Upsert(ctx context.Context, row domain.DimProducto) error {
	if strings.TrimSpace(row.IDProducto) == "" {
		return fmt.Errorf("%w: empty product id", domain.ErrInvalidDimension)
	}
	return s.repo.UpsertProduct(ctx, s.db, &row)
}

type dateStore struct {
	db   *gorm.DB
	repo domain.Repository
}

func (s *dateStore) GetFechaID(ctx context.Context, t time.Time) (int, error) {
	row := domain.NewDimFecha(t)
	if err := s.repo.EnsureDate(ctx, s.db, &row); err != nil {
		return 0, err
	}
	return row.IDFecha, nil
}

type sourceStore struct {
	db   *gorm.DB
	repo domain.Repository
}

func (s *sourceStore) GetOrCreate(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: empty source name", domain.ErrInvalidDimension)
	}
	id, found, err := s.repo.FindSourceID(ctx, s.db, name)
	if err != nil {
		return 0, err
	}
	if found {
		return id, nil
	}

	row := domain.DimFuente{NombreFuente: name}
	if err := s.repo.InsertSource(ctx, s.db, &row); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return 0, err
		}
		// Inserted concurrently by another writer.
		id, found, err = s.repo.FindSourceID(ctx, s.db, name)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, fmt.Errorf("source %q not found after duplicate insert", name)
		}
		return id, nil
	}
	return row.IDFuente, nil
}

type opinionStore struct {
	db   *gorm.DB
	repo domain.Repository
}

func (s *opinionStore) Exists(ctx context.Context, idOriginal, origin string) (bool, error) {
	if strings.TrimSpace(idOriginal) == "" {
		return false, nil
	}
	return s.repo.OpinionExists(ctx, s.db, idOriginal, origin)
}

func (s *opinionStore) Insert(ctx context.Context, row *domain.FactOpinion) error {
	return s.repo.InsertOpinion(ctx, s.db, row)
}
