package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/japaniel/chessarchive/pkg/chessapi"
	"github.com/japaniel/chessarchive/pkg/config"
	"github.com/japaniel/chessarchive/pkg/db"
	"github.com/japaniel/chessarchive/pkg/ingest"
	"github.com/japaniel/chessarchive/pkg/logging"
)

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	fs := config.NewFlagSet("chessarchive")
	fs.SetOutput(stdout)
	cfg, err := config.Load(fs, args)
	if errors.Is(err, config.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stdout, "ERROR\t%v\n", err)
		return 1
	}

	log := logging.New(logging.Options{Debug: cfg.Debug, Writer: stdout})
	defer log.Sync()

	conn, dialect, err := db.Open(ctx, cfg.DatabaseLocation)
	if err != nil {
		log.Error("Failed to open database", zap.Error(err))
		return 1
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
			return
		}
		log.Info("Closed database")
	}()

	client := chessapi.NewClient(chessapi.Options{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.HTTPTimeout,
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		Logger:     log,
	})

	ingester := ingest.NewIngester(client, conn, dialect, log)
	ingester.BatchSize = cfg.BatchSize

	sum, err := ingester.Run(ctx, cfg.UserName)
	if err != nil {
		var dsErr *chessapi.DataSourceError
		switch {
		case errors.As(err, &dsErr):
			log.Error("Invalid data retrieved, not continuing", zap.Error(err))
		case errors.Is(err, chessapi.ErrUserNotFound):
			log.Error("User not found", zap.String("user", cfg.UserName), zap.Error(err))
		default:
			log.Error("Ingestion failed", zap.Error(err))
		}
		return 1
	}

	log.Info("Processing complete",
		zap.String("table", sum.Table),
		zap.Int("archives", sum.Archives),
		zap.Int("games", sum.Games),
		zap.Int("variants_skipped", sum.Variants),
		zap.Int("invalid_skipped", sum.Invalid),
		zap.Int("inserted", sum.Inserted),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("stored", sum.Stored),
	)
	return 0
}
