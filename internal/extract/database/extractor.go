// Package database extracts web reviews from the relational source.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/smallbiznis/opinionetl/internal/clock"
	"github.com/smallbiznis/opinionetl/internal/config"
	"github.com/smallbiznis/opinionetl/internal/extract/domain"
	obslogger "github.com/smallbiznis/opinionetl/internal/observability/logger"
	"github.com/smallbiznis/opinionetl/internal/observability/tracing"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const webReviewsSource = "WebReviews"

type Params struct {
	fx.In

	Log     *zap.Logger
	Sources *config.SourcesHolder
	DB      *SourceDB
	Clock   clock.Clock `optional:"true"`
}

type Extractor struct {
	log     *zap.Logger
	sources *config.SourcesHolder
	db      *SourceDB
	clock   clock.Clock
}

func New(p Params) *Extractor {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Extractor{
		log:     log.Named("extract.database"),
		sources: p.Sources,
		db:      p.DB,
		clock:   clk,
	}
}

func (e *Extractor) SourceName() string           { return domain.SourceDatabase }
func (e *Extractor) Origin() opinion.SourceOrigin { return opinion.OriginDatabase }

// Extract runs the configured query once with @StartDate bound to now minus the lookback.
func (e *Extractor) Extract(ctx context.Context) ([]opinion.RawOpinion, error) {
	cfg := e.sources.Get().Database
	log := obslogger.WithContext(ctx, e.log)
	if !cfg.Enabled {
		log.Info("extract.source.disabled")
		return nil, nil
	}

	ctx, span := tracing.StartSpan(ctx, "extract.database")
	defer span.End()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	conn, err := e.db.Conn()
	if err != nil {
		return nil, domain.NewExtractionError(e.SourceName(), err)
	}

	startDate := e.clock.Now().Add(-cfg.Lookback)
	db := conn.WithContext(ctx)
	rows, err := db.Raw(cfg.Query, map[string]interface{}{"StartDate": startDate}).Rows()
	if err != nil {
		return nil, domain.NewExtractionError(e.SourceName(), err)
	}
	defer rows.Close()

	var (
		out     []opinion.RawOpinion
		skipped int
	)
	for rows.Next() {
		var review webReview
		if err := db.ScanRows(rows, &review); err != nil {
			return nil, domain.NewExtractionError(e.SourceName(), fmt.Errorf("scan web review: %w", err))
		}
		if review.empty() {
			log.Warn("extract.database.row_skipped", zap.Int("row", len(out)+skipped))
			skipped++
			continue
		}
		out = append(out, review.toRaw())
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewExtractionError(e.SourceName(), err)
	}

	span.SetAttributes(attribute.Int("etl.records", len(out)))
	log.Info("extract.database.done",
		zap.Int("records", len(out)),
		zap.Int("skipped", skipped),
		zap.Time("start_date", startDate),
	)
	return out, nil
}

// webReview is one row of the review query. Columns the query does not select stay empty.
type webReview struct {
	IDReview   sql.NullString `gorm:"column:id_review"`
	IDCliente  sql.NullString `gorm:"column:id_cliente"`
	IDProducto sql.NullString `gorm:"column:id_producto"`
	Fecha      reviewDate     `gorm:"column:fecha"`
	Comentario sql.NullString `gorm:"column:comentario"`
	Rating     sql.NullString `gorm:"column:rating"`
	IsVerified sql.NullBool   `gorm:"column:is_verified"`
}

func (r webReview) empty() bool {
	return !r.IDReview.Valid && !r.IDCliente.Valid && !r.IDProducto.Valid && r.Fecha == "" &&
		!r.Comentario.Valid && !r.Rating.Valid && !r.IsVerified.Valid
}

func (r webReview) toRaw() opinion.RawOpinion {
	return opinion.RawOpinion{
		IDOriginal:   r.IDReview.String,
		ClientID:     r.IDCliente.String,
		ProductID:    r.IDProducto.String,
		Date:         string(r.Fecha),
		Comment:      r.Comentario.String,
		Rating:       r.Rating.String,
		SourceOrigin: opinion.OriginDatabase,
		Metadata: map[string]string{
			opinion.MetaIsVerified: strconv.FormatBool(r.IsVerified.Valid && r.IsVerified.Bool),
			opinion.MetaSource:     webReviewsSource,
		},
	}
}

// reviewDate keeps text dates as they are and renders DATE columns as yyyy-mm-dd.
type reviewDate string

func (d *reviewDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = reviewDate(v.Format("2006-01-02"))
	case []byte:
		*d = reviewDate(v)
	case string:
		*d = reviewDate(v)
	default:
		*d = reviewDate(fmt.Sprint(v))
	}
	return nil
}

var _ domain.Extractor = (*Extractor)(nil)
