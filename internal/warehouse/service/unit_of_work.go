package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/smallbiznis/opinionetl/internal/warehouse/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

// Factory hands out one UnitOfWork per load.
type Factory struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewFactory(p Params) *Factory {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{db: p.DB, log: log.Named("warehouse.uow"), repo: p.Repo}
}

func (f *Factory) New() *UnitOfWork {
	return NewUnitOfWork(f.db, f.repo, f.log)
}

// UnitOfWork owns at most one open transaction. It is not safe for concurrent use.
type UnitOfWork struct {
	db    *gorm.DB
	tx    *gorm.DB
	repo  domain.Repository
	log   *zap.Logger
	begun time.Time
}

func NewUnitOfWork(db *gorm.DB, repo domain.Repository, log *zap.Logger) *UnitOfWork {
	if log == nil {
		log = zap.NewNop()
	}
	return &UnitOfWork{db: db, repo: repo, log: log}
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return domain.ErrTransactionAlreadyOpen
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	u.tx = tx
	u.begun = time.Now()
	u.log.Debug("warehouse.tx.begin")
	return nil
}

// Commit always clears the transaction handle, even when the commit fails.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return domain.ErrNoTransaction
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Commit().Error; err != nil {
		u.log.Error("warehouse.tx.commit_failed", zap.Error(err))
		return err
	}
	u.log.Debug("warehouse.tx.commit", zap.Duration("duration", time.Since(u.begun)))
	return nil
}

// Rollback always clears the transaction handle, even when the rollback fails.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return domain.ErrNoTransaction
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		u.log.Error("warehouse.tx.rollback_failed", zap.Error(err))
		return err
	}
	u.log.Warn("warehouse.tx.rollback", zap.Duration("duration", time.Since(u.begun)))
	return nil
}

func (u *UnitOfWork) InTransaction() bool { return u.tx != nil }

func (u *UnitOfWork) SavePoint(name string) error {
	if u.tx == nil {
		return domain.ErrNoTransaction
	}
	return u.tx.SavePoint(name).Error
}

func (u *UnitOfWork) RollbackTo(name string) error {
	if u.tx == nil {
		return domain.ErrNoTransaction
	}
	return u.tx.RollbackTo(name).Error
}

func (u *UnitOfWork) conn() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWork) Clients() domain.ClientStore {
	return &clientStore{db: u.conn(), repo: u.repo}
}

func (u *UnitOfWork) Products() domain.ProductStore {
	return &productStore{db: u.conn(), repo: u.repo}
}

func (u *UnitOfWork) Dates() domain.DateStore {
	return &dateStore{db: u.conn(), repo: u.repo}
}

func (u *UnitOfWork) Sources() domain.SourceStore {
	return &sourceStore{db: u.conn(), repo: u.repo}
}

func (u *UnitOfWork) Opinions() domain.OpinionStore {
	return &opinionStore{db: u.conn(), repo: u.repo}
}
