package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/opinionetl/internal/config"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestDialect(t *testing.T) {
	for _, typ := range []string{TypePostgres, TypeMySQL, TypeSQLite, TypeSQLServer} {
		t.Run(typ, func(t *testing.T) {
			d, err := Dialect(Config{Type: typ, Host: "localhost", Port: "1433", Name: "warehouse", User: "etl", Password: "p@ss"})
			assert.NoError(t, err)
			assert.NotNil(t, d)
		})
	}

	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.DatabaseConfig{Type: " SQLServer ", Name: "AnalyticsDb", MaxOpenConn: 4})
	assert.Equal(t, TypeSQLServer, cfg.Type)
	assert.Equal(t, "AnalyticsDb", cfg.Name)
	assert.Equal(t, 4, cfg.MaxOpenConn)
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: fact_opiniones.id_original")))
	assert.True(t, IsDuplicateKeyErr(errors.New("mssql: Violation of PRIMARY KEY constraint 'PK_DimCliente'")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}
