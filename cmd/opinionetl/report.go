package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opinionetl/internal/config"
	pipelinedomain "github.com/smallbiznis/opinionetl/internal/pipeline/domain"
	pipelinerepository "github.com/smallbiznis/opinionetl/internal/pipeline/repository"
	"github.com/smallbiznis/opinionetl/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func reportCmd() *cobra.Command {
	var (
		runID   string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a persisted run summary as PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snowflake.ParseString(runID)
			if err != nil {
				return fmt.Errorf("%w: %s", pipelinedomain.ErrInvalidRunID, runID)
			}
			if outPath == "" {
				outPath = fmt.Sprintf("etl-run-%s.pdf", id)
			}

			var (
				conn     *gorm.DB
				runs     pipelinedomain.RunRepository
				provider report.Provider
			)
			app := fx.New(
				infrastructure(config.Load()),
				fx.Provide(pipelinerepository.Provide),
				report.Module,
				fx.Populate(&conn, &runs, &provider),
			)
			ctx := cmd.Context()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() {
				_ = app.Stop(context.WithoutCancel(ctx))
			}()

			run, err := runs.FindByID(ctx, conn, id)
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("%w: %s", pipelinedomain.ErrRunNotFound, id)
			}

			var summary pipelinedomain.ExecutionSummary
			if err := json.Unmarshal(run.Summary, &summary); err != nil {
				return fmt.Errorf("decode run summary: %w", err)
			}

			doc, err := provider.GenerateRunSummary(ctx, summary)
			if err != nil {
				return fmt.Errorf("render report: %w", err)
			}
			return writeFile(outPath, doc)
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run id from etl_runs")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (default etl-run-<id>.pdf)")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
