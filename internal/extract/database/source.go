package database

import (
	"context"
	"sync"

	"github.com/smallbiznis/opinionetl/internal/config"
	"github.com/smallbiznis/opinionetl/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SourceDB opens the web-reviews connection on first use so an unreachable source
// fails its extraction instead of the process start.
type SourceDB struct {
	mu   sync.Mutex
	conn *gorm.DB
	open func() (*gorm.DB, error)
}

// NewSourceDB wraps an already opened connection.
func NewSourceDB(conn *gorm.DB) *SourceDB {
	return &SourceDB{conn: conn}
}

// ProvideSourceDB builds a lazily connected handle from the SOURCE_DATABASE_* settings.
func ProvideSourceDB(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *SourceDB {
	source := &SourceDB{
		open: func() (*gorm.DB, error) {
			return db.Open(db.FromConfig(cfg.Source), log, "source")
		},
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return source.Close()
		},
	})
	return source
}

// Conn returns the connection, opening it if needed. A failed open is retried on the next call.
func (s *SourceDB) Conn() (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.open()
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

func (s *SourceDB) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := db.Close(s.conn)
	s.conn = nil
	return err
}
