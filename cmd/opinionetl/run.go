package main

import (
	"errors"
	"time"

	"github.com/smallbiznis/opinionetl/internal/config"
	"github.com/smallbiznis/opinionetl/internal/extract"
	"github.com/smallbiznis/opinionetl/internal/metricsexport"
	"github.com/smallbiznis/opinionetl/internal/migration"
	"github.com/smallbiznis/opinionetl/internal/pipeline"
	"github.com/smallbiznis/opinionetl/internal/runlock"
	"github.com/smallbiznis/opinionetl/internal/sentiment"
	"github.com/smallbiznis/opinionetl/internal/transform"
	"github.com/smallbiznis/opinionetl/internal/warehouse"
	"github.com/smallbiznis/opinionetl/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func runCmd(sourcesPath *string) *cobra.Command {
	var (
		once     bool
		interval time.Duration
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ETL pipeline",
		Long: `Run the ETL pipeline once and exit, or keep running it on an interval.
Without flags the interval comes from ETL_RUN_INTERVAL; zero means a single run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if once && interval > 0 {
				return errors.New("--once and --interval are mutually exclusive")
			}

			cfg := config.Load()
			if once {
				cfg.Worker.RunInterval = 0
			}
			if interval > 0 {
				cfg.Worker.RunInterval = interval
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Worker.RunTimeout = timeout
			}

			app := fx.New(
				infrastructure(cfg),
				sourcesProvider(*sourcesPath),
				migration.Module,

				sentiment.Module,
				transform.Module,
				extract.Module,
				warehouse.Module,
				pipeline.Module,

				runlock.Module,
				metricsexport.Module,
				worker.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run the pipeline a single time and exit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Run the pipeline repeatedly at this interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-run timeout (0 disables)")
	return cmd
}
