// Package main is the opinionetl binary: the ETL worker plus its maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opinionetl/internal/clock"
	"github.com/smallbiznis/opinionetl/internal/config"
	"github.com/smallbiznis/opinionetl/internal/observability"
	"github.com/smallbiznis/opinionetl/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var sourcesPath string

	cmd := &cobra.Command{
		Use:           "opinionetl",
		Short:         "Customer opinion ETL",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `opinionetl extracts customer opinions from survey files, a review database and a
social media API, scores their sentiment and loads them into a star-schema warehouse.`,
	}
	cmd.PersistentFlags().StringVar(&sourcesPath, "sources", "", "Path to sources.yml (default: search /etc/opinionetl, ./config and .)")

	cmd.AddCommand(
		runCmd(&sourcesPath),
		loadDimensionsCmd(),
		reportCmd(),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (%s)\n", cfg.AppName, cfg.AppVersion, cfg.Environment)
		},
	}
}

// infrastructure is the shared core every command runs on: config, logging, tracing,
// metrics and the warehouse connection.
func infrastructure(cfg config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		observability.Module,
		fx.Provide(clock.New),
		fx.Provide(RegisterSnowflake),
		db.Module,
	)
}

func sourcesProvider(path string) fx.Option {
	path = strings.TrimSpace(path)
	if path == "" {
		return fx.Provide(config.NewSourcesHolder)
	}
	return fx.Provide(func(log *zap.Logger) (*config.SourcesHolder, error) {
		return config.NewSourcesHolderFromFile(log, path)
	})
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
