package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	"github.com/smallbiznis/opinionetl/internal/pipeline/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// maxErrorRows caps the error table so a bad batch does not produce a huge document.
const maxErrorRows = 25

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateRunSummary(ctx context.Context, summary domain.ExecutionSummary) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(15,
		text.NewCol(8, "ETL Execution Summary", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, summary.Status(), props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	// Run meta
	m.AddRow(22,
		col.New(6).Add(
			text.New("Run: "+summary.RunID, props.Text{Top: 0}),
			text.New("Correlation: "+summary.CorrelationID, props.Text{Top: 4}),
			text.New("State: "+summary.State.String(), props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New("Start time: "+summary.Start.Format(timeLayout), props.Text{Top: 0, Align: align.Right}),
			text.New("End time: "+summary.End.Format(timeLayout), props.Text{Top: 4, Align: align.Right}),
			text.New("Total duration: "+domain.FormatDuration(summary.Duration), props.Text{Top: 8, Align: align.Right}),
		),
	)

	addSection(m, "Extraction")
	addHeader(m, "Source", "Records", "Duration", "Status")
	for _, origin := range []opinion.SourceOrigin{opinion.OriginCSV, opinion.OriginDatabase, opinion.OriginAPI} {
		ex, ok := summary.Extraction(origin)
		if !ok {
			addLine(m, string(origin), "0", domain.FormatDuration(0), "not run")
			continue
		}
		addLine(m, sourceLabel(ex), fmt.Sprintf("%d", ex.RecordsExtracted), domain.FormatDuration(ex.Duration()), outcome(ex.Success))
	}

	if t := summary.Transformation; t != nil {
		addSection(m, "Transformation")
		addHeader(m, "Transformed", "Skipped", "Duration", "Status")
		addLine(m, fmt.Sprintf("%d", t.RecordsTransformed), fmt.Sprintf("%d", t.RecordsSkipped), domain.FormatDuration(t.Duration()), outcome(t.Success))
	}

	if l := summary.Loading; l != nil {
		addSection(m, "Loading")
		addHeader(m, "Loaded", "Failed", "Duplicate", "Duration")
		addLine(m, fmt.Sprintf("%d", l.RecordsLoaded), fmt.Sprintf("%d", l.RecordsFailed), fmt.Sprintf("%d", l.RecordsDuplicate), domain.FormatDuration(l.Duration()))
	}

	if stats := summary.Statistics; stats.TotalAnalyzed > 0 {
		addSection(m, "Sentiment")
		addHeader(m, "Positive", "Negative", "Neutral", "Average score")
		addLine(m,
			fmt.Sprintf("%d (%.2f%%)", stats.Positive, stats.PositivePercent()),
			fmt.Sprintf("%d (%.2f%%)", stats.Negative, stats.NegativePercent()),
			fmt.Sprintf("%d (%.2f%%)", stats.Neutral, stats.NeutralPercent()),
			fmt.Sprintf("%.2f", stats.AverageScore),
		)
	}

	if errs := collectErrors(summary); len(errs) > 0 {
		addSection(m, "Errors")
		for i, msg := range errs {
			if i == maxErrorRows {
				m.AddRow(6, text.NewCol(12, fmt.Sprintf("... %d more", len(errs)-maxErrorRows), props.Text{Size: 8}))
				break
			}
			m.AddRow(6, text.NewCol(12, msg, props.Text{Size: 8}))
		}
	}

	// Footer totals
	m.AddRow(12,
		col.New(8),
		text.NewCol(2, "Processed", props.Text{Style: fontstyle.Bold, Size: 9, Top: 4}),
		text.NewCol(2, fmt.Sprintf("%d", summary.TotalRecordsProcessed), props.Text{Style: fontstyle.Bold, Size: 9, Top: 4, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func addSection(m core.Maroto, title string) {
	m.AddRow(12,
		text.NewCol(12, title, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)
}

func addHeader(m core.Maroto, cells ...string) {
	addCells(m, 8, props.Text{Style: fontstyle.Bold, Size: 9}, cells)
}

func addLine(m core.Maroto, cells ...string) {
	addCells(m, 7, props.Text{Size: 9}, cells)
}

func addCells(m core.Maroto, height float64, style props.Text, cells []string) {
	width := 12 / len(cells)
	cols := make([]core.Col, 0, len(cells))
	for i, cell := range cells {
		cellStyle := style
		if i > 0 {
			cellStyle.Align = align.Right
		}
		cols = append(cols, text.NewCol(width, cell, cellStyle))
	}
	m.AddRow(height, cols...)
}

func sourceLabel(ex domain.ExtractionResult) string {
	if name := strings.TrimSpace(ex.SourceName); name != "" {
		return name
	}
	return string(ex.Origin)
}

func outcome(success bool) string {
	if success {
		return "ok"
	}
	return "failed"
}

func collectErrors(summary domain.ExecutionSummary) []string {
	var errs []string
	if summary.Error != "" {
		errs = append(errs, summary.Error)
	}
	for _, ex := range summary.Extractions {
		if ex.Error != "" {
			errs = append(errs, sourceLabel(ex)+": "+ex.Error)
		}
	}
	if summary.Transformation != nil {
		errs = append(errs, summary.Transformation.Errors...)
	}
	if summary.Loading != nil {
		errs = append(errs, summary.Loading.Errors...)
	}
	return errs
}
