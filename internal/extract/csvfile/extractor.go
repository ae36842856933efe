// Package csvfile extracts survey opinions from CSV files on local disk.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/smallbiznis/opinionetl/internal/config"
	"github.com/smallbiznis/opinionetl/internal/extract/domain"
	obslogger "github.com/smallbiznis/opinionetl/internal/observability/logger"
	"github.com/smallbiznis/opinionetl/internal/observability/tracing"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Sources *config.SourcesHolder
}

type Extractor struct {
	log     *zap.Logger
	sources *config.SourcesHolder
}

func New(p Params) *Extractor {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		log:     log.Named("extract.csv"),
		sources: p.Sources,
	}
}

func (e *Extractor) SourceName() string           { return domain.SourceCSV }
func (e *Extractor) Origin() opinion.SourceOrigin { return opinion.OriginCSV }

// Extract reads every file matching the configured pattern. Unreadable files are skipped;
// only a missing folder fails the whole source.
func (e *Extractor) Extract(ctx context.Context) ([]opinion.RawOpinion, error) {
	cfg := e.sources.Get().CSV
	log := obslogger.WithContext(ctx, e.log)
	if !cfg.Enabled {
		log.Info("extract.source.disabled")
		return nil, nil
	}

	ctx, span := tracing.StartSpan(ctx, "extract.csv",
		attribute.String("etl.csv.folder", cfg.FolderPath),
		attribute.String("etl.csv.pattern", cfg.FilePattern),
	)
	defer span.End()

	info, err := os.Stat(cfg.FolderPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %s", domain.ErrFolderNotFound, cfg.FolderPath)
		}
		return nil, domain.NewExtractionError(e.SourceName(), err)
	}
	if !info.IsDir() {
		return nil, domain.NewExtractionError(e.SourceName(), fmt.Errorf("%w: %s is not a directory", domain.ErrFolderNotFound, cfg.FolderPath))
	}

	files, err := doublestar.FilepathGlob(filepath.Join(cfg.FolderPath, cfg.FilePattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, domain.NewExtractionError(e.SourceName(), err)
	}
	if len(files) == 0 {
		log.Warn("extract.csv.no_files", zap.String("folder", cfg.FolderPath), zap.String("pattern", cfg.FilePattern))
		return nil, nil
	}
	log.Info("extract.csv.files_found", zap.Int("count", len(files)), zap.String("folder", cfg.FolderPath))

	var all []opinion.RawOpinion
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewExtractionError(e.SourceName(), err)
		}
		records, err := e.readFile(ctx, path)
		if err != nil {
			log.Error("extract.csv.file_failed", zap.String("file", filepath.Base(path)), zap.Error(err))
			continue
		}
		all = append(all, records...)
	}

	span.SetAttributes(attribute.Int("etl.records", len(all)))
	log.Info("extract.csv.done", zap.Int("records", len(all)))
	return all, nil
}

func (e *Extractor) readFile(ctx context.Context, path string) ([]opinion.RawOpinion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fileName := filepath.Base(path)
	return ReadOpinions(ctx, f, fileName, e.log.With(zap.String("file", fileName)))
}

// ReadOpinions maps the rows of one survey CSV onto raw opinions by header name.
func ReadOpinions(ctx context.Context, r io.Reader, fileName string, log *zap.Logger) ([]opinion.RawOpinion, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := mapHeader(header)

	var out []opinion.RawOpinion
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			log.Warn("extract.csv.row_unreadable", zap.Int("line", line), zap.Error(err))
			continue
		}

		raw, ok := mapRow(columns, row)
		if !ok {
			log.Warn("extract.csv.row_empty", zap.Int("line", line))
			continue
		}
		raw.Metadata = map[string]string{opinion.MetaFileName: fileName}
		out = append(out, raw)
	}
	return out, nil
}

type field int

const (
	fieldIgnored field = iota
	fieldID
	fieldClientID
	fieldClientName
	fieldClientEmail
	fieldProductID
	fieldProductName
	fieldProductCategory
	fieldDate
	fieldComment
	fieldClassification
	fieldRating
)

var headerFields = map[string]field{
	"idopinion":           fieldID,
	"idcliente":           fieldClientID,
	"nombrecliente":       fieldClientName,
	"email":               fieldClientEmail,
	"idproducto":          fieldProductID,
	"nombreproducto":      fieldProductName,
	"categoria":           fieldProductCategory,
	"categoría":           fieldProductCategory,
	"fecha":               fieldDate,
	"comentario":          fieldComment,
	"clasificación":       fieldClassification,
	"clasificacion":       fieldClassification,
	"puntajesatisfacción": fieldRating,
	"puntajesatisfaccion": fieldRating,
	"rating":              fieldRating,
}

func mapHeader(header []string) []field {
	columns := make([]field, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[i] = headerFields[strings.ToLower(strings.TrimSpace(name))]
	}
	return columns
}

func mapRow(columns []field, row []string) (opinion.RawOpinion, bool) {
	raw := opinion.RawOpinion{SourceOrigin: opinion.OriginCSV}
	found := false
	for i, value := range row {
		if i >= len(columns) {
			break
		}
		value = strings.TrimSpace(value)
		if value == "" || columns[i] == fieldIgnored {
			continue
		}
		found = true
		switch columns[i] {
		case fieldID:
			raw.IDOriginal = value
		case fieldClientID:
			raw.ClientID = value
		case fieldClientName:
			raw.ClientName = value
		case fieldClientEmail:
			raw.ClientEmail = value
		case fieldProductID:
			raw.ProductID = value
		case fieldProductName:
			raw.ProductName = value
		case fieldProductCategory:
			raw.ProductCategory = value
		case fieldDate:
			raw.Date = value
		case fieldComment:
			raw.Comment = value
		case fieldClassification:
			raw.Classification = value
		case fieldRating:
			raw.Rating = value
		}
	}
	return raw, found
}

var _ domain.Extractor = (*Extractor)(nil)
