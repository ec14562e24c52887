// Command pgstatsd polls PostgreSQL with the configured queries and ships
// every result to DogStatsD.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vshulcz/pgstatsd/internal/config"
	"github.com/vshulcz/pgstatsd/pkg/util"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	util.LogBuildInfo(logger, buildVersion, buildDate, buildCommit)

	cfg, err := config.LoadDaemonConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, defaultWiring()); err != nil {
		logger.Fatal("pgstatsd stopped", zap.Error(err))
	}
	logger.Info("pgstatsd stopped")
}
