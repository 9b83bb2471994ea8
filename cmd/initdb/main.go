// Package main provides a CLI tool that bootstraps the relational schema and
// registers document shapes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/defi-common/internal/config"
	"github.com/defi-common/internal/docstore"
	"github.com/defi-common/internal/logging"
	"github.com/defi-common/internal/monitor"
	"github.com/defi-common/internal/persistence"
	"github.com/defi-common/internal/retry"
	"github.com/defi-common/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		test     = flag.Bool("test", false, "Use TEST_DB_URL and TEST_MONGO_URL")
		ensure   = flag.Bool("ensure", false, "Create missing tables only, never drop")
		printDDL = flag.Bool("print", false, "Print the relational DDL and exit")
		timeout  = flag.Duration("timeout", time.Minute, "Overall timeout")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	logging.SetGlobalLogger(logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target := storage.TargetPrimary
	if *test {
		target = storage.TargetTest
	}

	if err := run(ctx, cfg, logger, target, *ensure, *printDDL, os.Stdout); err != nil {
		logger.ErrorWithErr("initdb failed", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger, target storage.Target, ensure, printDDL bool, out io.Writer) error {
	metrics, err := monitor.NewMetrics(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	// stores may still be starting when run next to them in a compose stack
	var stores *persistence.Stores
	err = retry.Do(logging.WithLogger(ctx, logger), retry.DefaultPolicy(), func(ctx context.Context, _ int) error {
		var err error
		stores, err = persistence.Open(ctx, cfg, persistence.Options{
			Target:  target,
			Logger:  logger,
			Metrics: metrics,
			Shapes:  docstore.DefaultShapes(),
		})
		return err
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			logger.WithError(err).Warn("close failed")
		}
	}()

	if printDDL {
		stmts, err := stores.Relational.Metadata().Statements(stores.Relational.Bun())
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			fmt.Fprintf(out, "%s;\n", stmt)
		}
		return nil
	}

	if ensure {
		logger.Info("Ensuring relational schema...")
		if err := stores.Relational.EnsureSchema(ctx); err != nil {
			return err
		}
	} else {
		logger.Info("Resetting relational schema...")
		if err := stores.Relational.InitializeSchema(ctx); err != nil {
			return err
		}
	}

	logger.WithField("target", target.String()).Info("Schema ready")
	return nil
}

func newLogger(cfg config.LoggingConfig) *logging.Logger {
	level := logging.ParseLogLevel(cfg.Level)
	format := logging.ParseLogFormat(cfg.Format)
	if cfg.File == "" {
		return logging.NewLogger(level, format)
	}
	return logging.New(level, format, io.MultiWriter(os.Stdout, logging.FileWriter(cfg.File)))
}
