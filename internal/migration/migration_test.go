package migration

import (
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	assert.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups++
		case strings.HasSuffix(name, ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, 2, ups)
	assert.Equal(t, ups, downs)
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	assert.NoError(t, err)

	assert.NoError(t, Run(conn))
	assert.NoError(t, Run(conn))

	for _, table := range []string{"dim_cliente", "dim_producto", "dim_fecha", "dim_fuente", "fact_opiniones", "etl_runs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("fact_opiniones", "ux_fact_opiniones_original"))

	t.Run("null original ids do not collide", func(t *testing.T) {
		for _, stmt := range []string{
			`INSERT INTO dim_cliente (id_cliente, nombre) VALUES ('C1', 'Cliente_C1')`,
			`INSERT INTO dim_producto (id_producto, nombre_producto) VALUES ('P1', 'Producto_P1')`,
			`INSERT INTO dim_fecha (id_fecha, anio, mes, trimestre, nombre_mes) VALUES (20250301, 2025, 3, 1, 'Marzo')`,
			`INSERT INTO dim_fuente (id_fuente, nombre_fuente) VALUES (1, 'CSV')`,
		} {
			assert.NoError(t, conn.Exec(stmt).Error)
		}
		for i := 0; i < 2; i++ {
			assert.NoError(t, conn.Exec(`INSERT INTO fact_opiniones
				(id_cliente, id_producto, id_fecha, id_fuente, clasificacion_sentimiento, puntaje_satisfaccion, fuente_origen)
				VALUES ('C1', 'P1', 20250301, 1, 'Neutral', 3, 'CSV')`).Error)
		}
		var n int64
		assert.NoError(t, conn.Table("fact_opiniones").Where("id_original IS NULL").Count(&n).Error)
		assert.Equal(t, int64(2), n)
	})
}

func TestOriginalIndexDDL(t *testing.T) {
	for _, dialect := range []string{"sqlite", "postgres", "mysql"} {
		assert.Empty(t, originalIndexDDL(dialect), dialect)
	}

	stmts := originalIndexDDL("sqlserver")
	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "DROP INDEX ux_fact_opiniones_original ON fact_opiniones")
	assert.Contains(t, stmts[0], "has_filter = 0")
	assert.Contains(t, stmts[1], "CREATE UNIQUE INDEX ux_fact_opiniones_original ON fact_opiniones (id_original, fuente_origen)")
	assert.Contains(t, stmts[1], "WHERE id_original IS NOT NULL")
}
