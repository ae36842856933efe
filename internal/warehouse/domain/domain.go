package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrTransactionAlreadyOpen = errors.New("transaction_already_open")
	ErrNoTransaction          = errors.New("no_transaction")
	ErrInvalidDateKey         = errors.New("invalid_date_key")
	ErrInvalidDimension       = errors.New("invalid_dimension")
)

// Repository is the stateless data access used by the scoped stores. Callers pass the root DB or a tx.
type Repository interface {
	ClientExists(ctx context.Context, db *gorm.DB, id string) (bool, error)
	UpsertClient(ctx context.Context, db *gorm.DB, row *DimCliente) error

	ProductExists(ctx context.Context, db *gorm.DB, id string) (bool, error)
	UpsertProduct(ctx context.Context, db *gorm.DB, row *DimProducto) error

	EnsureDate(ctx context.Context, db *gorm.DB, row *DimFecha) error

	FindSourceID(ctx context.Context, db *gorm.DB, name string) (int64, bool, error)
	InsertSource(ctx context.Context, db *gorm.DB, row *DimFuente) error

	OpinionExists(ctx context.Context, db *gorm.DB, idOriginal, origin string) (bool, error)
	InsertOpinion(ctx context.Context, db *gorm.DB, row *FactOpinion) error
}

type ClientStore interface {
	// GetOrCreate inserts the client when its id is unknown. created is false when it already existed.
	GetOrCreate(ctx context.Context, row DimCliente) (bool, error)
	Upsert(ctx context.Context, row DimCliente) error
}

type ProductStore interface {
	GetOrCreate(ctx context.Context, row DimProducto) (bool, error)
	Upsert(ctx context.Context, row DimProducto) error
}

type DateStore interface {
	// GetFechaID ensures the calendar row for t exists and returns its key.
	GetFechaID(ctx context.Context, t time.Time) (int, error)
}

type SourceStore interface {
	GetOrCreate(ctx context.Context, name string) (int64, error)
}

type OpinionStore interface {
	Exists(ctx context.Context, idOriginal, origin string) (bool, error)
	Insert(ctx context.Context, row *FactOpinion) error
}
