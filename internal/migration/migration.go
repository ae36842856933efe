package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	pipelinedomain "github.com/smallbiznis/opinionetl/internal/pipeline/domain"
	warehousedomain "github.com/smallbiznis/opinionetl/internal/warehouse/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Run brings the warehouse schema up to date. Postgres uses the versioned SQL files;
// other dialects fall back to gorm AutoMigrate of the same models.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if strings.EqualFold(conn.Dialector.Name(), "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}

// AutoMigrate creates the dimension tables before the fact table so foreign keys resolve.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&warehousedomain.DimCliente{},
		&warehousedomain.DimProducto{},
		&warehousedomain.DimFecha{},
		&warehousedomain.DimFuente{},
		&warehousedomain.FactOpinion{},
		&pipelinedomain.Run{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range originalIndexDDL(conn.Dialector.Name()) {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("rebuild original index: %w", err)
		}
	}
	return nil
}

const originalIndex = "ux_fact_opiniones_original"

// originalIndexDDL swaps the AutoMigrate unique index for a filtered one on SQL Server,
// which otherwise allows a single NULL id_original per source.
func originalIndexDDL(dialect string) []string {
	if !strings.EqualFold(dialect, "sqlserver") {
		return nil
	}
	return []string{
		fmt.Sprintf(`IF EXISTS (SELECT 1 FROM sys.indexes WHERE name = '%[1]s' AND object_id = OBJECT_ID('fact_opiniones') AND has_filter = 0)
	DROP INDEX %[1]s ON fact_opiniones`, originalIndex),
		fmt.Sprintf(`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = '%[1]s' AND object_id = OBJECT_ID('fact_opiniones'))
	CREATE UNIQUE INDEX %[1]s ON fact_opiniones (id_original, fuente_origen) WHERE id_original IS NOT NULL`, originalIndex),
	}
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "opinionetl_schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}
