package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/opinionetl/internal/clock"
	"github.com/smallbiznis/opinionetl/internal/config"
	extractdomain "github.com/smallbiznis/opinionetl/internal/extract/domain"
	"github.com/smallbiznis/opinionetl/internal/migration"
	"github.com/smallbiznis/opinionetl/internal/observability/metrics"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	"github.com/smallbiznis/opinionetl/internal/pipeline/domain"
	"github.com/smallbiznis/opinionetl/internal/pipeline/repository"
	sentimentservice "github.com/smallbiznis/opinionetl/internal/sentiment/service"
	transformservice "github.com/smallbiznis/opinionetl/internal/transform/service"
	warehousedomain "github.com/smallbiznis/opinionetl/internal/warehouse/domain"
	warehouserepo "github.com/smallbiznis/opinionetl/internal/warehouse/repository"
	warehouseservice "github.com/smallbiznis/opinionetl/internal/warehouse/service"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var runStart = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeExtractor struct {
	name   string
	origin opinion.SourceOrigin
	raws   []opinion.RawOpinion
	err    error
	panic  bool
}

func (f *fakeExtractor) SourceName() string           { return f.name }
func (f *fakeExtractor) Origin() opinion.SourceOrigin { return f.origin }

func (f *fakeExtractor) Extract(context.Context) ([]opinion.RawOpinion, error) {
	if f.panic {
		panic("extractor exploded")
	}
	if f.err != nil {
		return nil, extractdomain.NewExtractionError(f.name, f.err)
	}
	return f.raws, nil
}

// failingRepo fails the nth fact insert through onInsert.
type failingRepo struct {
	warehousedomain.Repository
	failAt   int
	inserts  int
	onInsert func() error
}

func (r *failingRepo) InsertOpinion(ctx context.Context, db *gorm.DB, row *warehousedomain.FactOpinion) error {
	r.inserts++
	if r.inserts == r.failAt {
		return r.onInsert()
	}
	return r.Repository.InsertOpinion(ctx, db, row)
}

type harness struct {
	conn         *gorm.DB
	orchestrator *Orchestrator
	metrics      *metrics.PipelineMetrics
}

func setupHarness(t *testing.T, extractors []extractdomain.Extractor, repo warehousedomain.Repository, skipDuplicates bool) harness {
	t.Helper()
	// A file database survives the connection a canceled transaction discards.
	dsn := filepath.Join(t.TempDir(), "warehouse.db")
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	assert.NoError(t, err)
	sqlDB, err := conn.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	assert.NoError(t, migration.AutoMigrate(conn))
	t.Cleanup(func() { _ = sqlDB.Close() })

	if repo == nil {
		repo = warehouserepo.Provide()
	}
	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	fakeClock := clock.NewSteppingClock(runStart, 10*time.Millisecond)
	m := metrics.NewPipelineMetrics(prometheus.NewRegistry(), metrics.Config{Environment: "test"})
	transformer := transformservice.New(transformservice.Params{
		Analyzer: sentimentservice.New(sentimentservice.Params{}),
		Clock:    clock.NewFakeClock(runStart),
	})
	o, err := New(Params{
		DB:          conn,
		Config:      config.Config{SkipDuplicates: skipDuplicates},
		Extractors:  extractors,
		Transformer: transformer,
		UoW:         warehouseservice.NewFactory(warehouseservice.Params{DB: conn, Repo: repo}),
		Runs:        repository.Provide(),
		GenID:       node,
		Metrics:     m,
		Clock:       fakeClock,
	})
	assert.NoError(t, err)
	return harness{conn: conn, orchestrator: o, metrics: m}
}

func count(t *testing.T, conn *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	assert.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func threeSources() []extractdomain.Extractor {
	return []extractdomain.Extractor{
		&fakeExtractor{name: extractdomain.SourceCSV, origin: opinion.OriginCSV, raws: []opinion.RawOpinion{{
			IDOriginal: "S-1", ClientID: "101", ProductID: "7", Date: "2025-03-01",
			Comment: "Producto excelente, lo recomiendo", Rating: "5", SourceOrigin: opinion.OriginCSV,
		}}},
		&fakeExtractor{name: extractdomain.SourceDatabase, origin: opinion.OriginDatabase, raws: []opinion.RawOpinion{{
			IDOriginal: "R-9", ClientID: "102", ClientName: "Ana Torres", ProductID: "7", Date: "2025-03-02",
			Comment: "No funciona, muy malo", SourceOrigin: opinion.OriginDatabase,
		}}},
		&fakeExtractor{name: extractdomain.SourceAPI, origin: opinion.OriginAPI, raws: []opinion.RawOpinion{{
			IDOriginal: "123", ClientID: "101", ProductID: "8", Date: "2025-03-02T18:20:00Z",
			Comment: "meh", SourceOrigin: opinion.OriginAPI,
			Metadata: map[string]string{opinion.MetaPlatform: "Instagram"},
		}}},
	}
}

func fiveRecords() []extractdomain.Extractor {
	raws := make([]opinion.RawOpinion, 0, 5)
	for i := 1; i <= 5; i++ {
		raws = append(raws, opinion.RawOpinion{
			IDOriginal:   fmt.Sprintf("S-%d", i),
			ClientID:     fmt.Sprintf("%d", 200+i),
			ProductID:    fmt.Sprintf("%d", 10+i),
			Date:         "2025-03-01",
			Rating:       "4",
			SourceOrigin: opinion.OriginCSV,
		})
	}
	return []extractdomain.Extractor{&fakeExtractor{name: extractdomain.SourceCSV, origin: opinion.OriginCSV, raws: raws}}
}

func TestExecuteEndToEnd(t *testing.T) {
	h := setupHarness(t, threeSources(), nil, true)

	summary := h.orchestrator.Execute(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, domain.StateCompleted, summary.State)
	assert.Equal(t, domain.StateCompleted, h.orchestrator.State())
	assert.NotEmpty(t, summary.RunID)
	assert.NotEmpty(t, summary.CorrelationID)

	assert.Equal(t, 3, summary.RecordsExtracted())
	assert.Len(t, summary.Extractions, 3)
	assert.Equal(t, opinion.OriginCSV, summary.Extractions[0].Origin)
	assert.Equal(t, opinion.OriginAPI, summary.Extractions[2].Origin)

	transformed := summary.Transformation.RecordsTransformed
	assert.Equal(t, summary.RecordsExtracted(), transformed+summary.Transformation.RecordsSkipped)
	loading := summary.Loading
	assert.Equal(t, transformed, loading.RecordsLoaded+loading.RecordsFailed+loading.RecordsDuplicate)
	assert.Equal(t, 3, summary.TotalRecordsProcessed)
	assert.Equal(t, 3, summary.Statistics.TotalAnalyzed)

	assert.Equal(t, int64(3), count(t, h.conn, &warehousedomain.FactOpinion{}))
	assert.Equal(t, int64(2), count(t, h.conn, &warehousedomain.DimCliente{}))
	assert.Equal(t, int64(2), count(t, h.conn, &warehousedomain.DimProducto{}))
	assert.Equal(t, int64(2), count(t, h.conn, &warehousedomain.DimFecha{}))
	assert.Equal(t, int64(3), count(t, h.conn, &warehousedomain.DimFuente{}))

	var named, anonymous warehousedomain.DimCliente
	assert.NoError(t, h.conn.First(&named, "id_cliente = ?", "C102").Error)
	assert.Equal(t, "Ana Torres", named.Nombre)
	assert.NoError(t, h.conn.First(&anonymous, "id_cliente = ?", "C101").Error)
	assert.Equal(t, "Cliente_C101", anonymous.Nombre)

	var run domain.Run
	assert.NoError(t, h.conn.First(&run).Error)
	assert.Equal(t, summary.RunID, run.ID.String())
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Equal(t, 3, run.RecordsLoaded)
	assert.Contains(t, string(run.Summary), `"state":"Completed"`)
}

func TestExecuteSkipsDuplicates(t *testing.T) {
	h := setupHarness(t, threeSources(), nil, true)

	first := h.orchestrator.Execute(context.Background())
	second := h.orchestrator.Execute(context.Background())

	assert.True(t, first.Success)
	assert.True(t, second.Success)
	assert.Equal(t, 0, second.Loading.RecordsLoaded)
	assert.Equal(t, 3, second.Loading.RecordsDuplicate)
	assert.Equal(t, int64(3), count(t, h.conn, &warehousedomain.FactOpinion{}))
	assert.Equal(t, int64(2), count(t, h.conn, &domain.Run{}))
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestExecuteDuplicateFailsRecordWhenDedupDisabled(t *testing.T) {
	h := setupHarness(t, threeSources(), nil, false)

	h.orchestrator.Execute(context.Background())
	second := h.orchestrator.Execute(context.Background())

	assert.True(t, second.Success)
	assert.Equal(t, 0, second.Loading.RecordsLoaded)
	assert.Equal(t, 3, second.Loading.RecordsFailed)
	assert.Len(t, second.Loading.Errors, 3)
	assert.True(t, strings.HasPrefix(second.Loading.Errors[0], "Cliente: C101, Error: "))
	assert.Equal(t, int64(3), count(t, h.conn, &warehousedomain.FactOpinion{}))
}

func TestExecuteRollsBackOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &failingRepo{
		Repository: warehouserepo.Provide(),
		failAt:     3,
		onInsert: func() error {
			cancel()
			return context.Canceled
		},
	}
	h := setupHarness(t, fiveRecords(), repo, true)

	summary := h.orchestrator.Execute(ctx)

	assert.False(t, summary.Success)
	assert.Equal(t, domain.StateFailed, summary.State)
	assert.False(t, summary.Loading.Success)
	assert.Equal(t, 0, summary.Loading.RecordsLoaded)
	assert.Equal(t, 0, summary.TotalRecordsProcessed)
	assert.Equal(t, int64(0), count(t, h.conn, &warehousedomain.FactOpinion{}))
	assert.Equal(t, int64(0), count(t, h.conn, &warehousedomain.DimCliente{}))
	assert.Equal(t, int64(0), count(t, h.conn, &warehousedomain.DimProducto{}))
	assert.Equal(t, int64(0), count(t, h.conn, &warehousedomain.DimFecha{}))

	// The run row is still written after the caller cancels.
	assert.Equal(t, int64(1), count(t, h.conn, &domain.Run{}))
}

func TestExecuteRecoversLoadPanic(t *testing.T) {
	repo := &failingRepo{
		Repository: warehouserepo.Provide(),
		failAt:     3,
		onInsert:   func() error { panic("driver exploded") },
	}
	h := setupHarness(t, fiveRecords(), repo, true)

	var summary domain.ExecutionSummary
	assert.NotPanics(t, func() {
		summary = h.orchestrator.Execute(context.Background())
	})

	assert.False(t, summary.Success)
	assert.Equal(t, domain.StateFailed, summary.State)
	assert.Contains(t, strings.Join(summary.Loading.Errors, "\n"), "pipeline_panic")
	assert.Equal(t, int64(0), count(t, h.conn, &warehousedomain.FactOpinion{}))
	assert.Equal(t, int64(0), count(t, h.conn, &warehousedomain.DimCliente{}))
}

func TestExecuteRecordFailureKeepsOtherRecords(t *testing.T) {
	repo := &failingRepo{
		Repository: warehouserepo.Provide(),
		failAt:     3,
		onInsert:   func() error { return errors.New("constraint violated") },
	}
	h := setupHarness(t, fiveRecords(), repo, true)

	summary := h.orchestrator.Execute(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, 4, summary.Loading.RecordsLoaded)
	assert.Equal(t, 1, summary.Loading.RecordsFailed)
	assert.Equal(t, []string{"Cliente: C203, Error: insert opinion: constraint violated"}, summary.Loading.Errors)
	assert.Equal(t, int64(4), count(t, h.conn, &warehousedomain.FactOpinion{}))
	assert.Equal(t, int64(5), count(t, h.conn, &warehousedomain.DimCliente{}))
}

func TestExecuteSourceFailureContinues(t *testing.T) {
	extractors := threeSources()
	extractors[1] = &fakeExtractor{name: extractdomain.SourceDatabase, origin: opinion.OriginDatabase, err: errors.New("connection refused")}
	extractors[2] = &fakeExtractor{name: extractdomain.SourceAPI, origin: opinion.OriginAPI, panic: true}
	h := setupHarness(t, extractors, nil, true)

	summary := h.orchestrator.Execute(context.Background())

	assert.False(t, summary.Success)
	assert.True(t, summary.Extractions[0].Success)
	assert.False(t, summary.Extractions[1].Success)
	assert.Contains(t, summary.Extractions[1].Error, "connection refused")
	assert.False(t, summary.Extractions[2].Success)
	assert.Contains(t, summary.Extractions[2].Error, "pipeline_panic")
	assert.True(t, summary.Loading.Success)
	assert.Equal(t, 1, summary.TotalRecordsProcessed)
	assert.Equal(t, int64(1), count(t, h.conn, &warehousedomain.FactOpinion{}))
}

func TestExecuteCanceledBeforeStart(t *testing.T) {
	h := setupHarness(t, threeSources(), nil, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := h.orchestrator.Execute(ctx)

	assert.False(t, summary.Success)
	for _, ex := range summary.Extractions {
		assert.False(t, ex.Success)
		assert.Equal(t, context.Canceled.Error(), ex.Error)
	}
	assert.Equal(t, int64(0), count(t, h.conn, &warehousedomain.FactOpinion{}))
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
