package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/japaniel/chessarchive/pkg/chessapi"
	"github.com/japaniel/chessarchive/pkg/db"
	"github.com/japaniel/chessarchive/pkg/games"
	"github.com/japaniel/chessarchive/pkg/logging"
)

// ArchiveSource lists and reads monthly game archives. *chessapi.Client implements it.
type ArchiveSource interface {
	ListArchives(ctx context.Context, username string) ([]string, error)
	FetchGames(ctx context.Context, archiveURL string) ([]chessapi.Game, error)
}

// Summary describes one ingestion run.
type Summary struct {
	Table      string
	Archives   int
	Games      int
	Variants   int
	Invalid    int
	Inserted   int
	Duplicates int
	Stored     int // rows in the table after the run
}

// Ingester fetches a player's archives and stores their games.
type Ingester struct {
	Source    ArchiveSource
	DB        *sql.DB
	Dialect   db.Dialect
	BatchSize int
	// Logger is used for informational messages. nil means no logging.
	Logger *zap.Logger
}

// NewIngester creates a new Ingester.
func NewIngester(src ArchiveSource, conn *sql.DB, dialect db.Dialect, logger *zap.Logger) *Ingester {
	return &Ingester{
		Source:    src,
		DB:        conn,
		Dialect:   dialect,
		BatchSize: 50,
		Logger:    logger,
	}
}

// Run fetches every archive of username, transforms the games and inserts
// the rows that are not stored yet. Nothing is written when fetching fails.
func (ig *Ingester) Run(ctx context.Context, username string) (Summary, error) {
	log := logging.OrNop(ig.Logger)

	table, err := db.TableName(username)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Table: table}

	log.Info("Retrieving games", zap.String("user", username))
	archives, err := ig.Source.ListArchives(ctx, username)
	if err != nil {
		return sum, err
	}
	sum.Archives = len(archives)

	tr := games.NewTransformer(username, log)
	var rows []db.GameRow
	for _, archive := range archives {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		raw, err := ig.Source.FetchGames(ctx, archive)
		if err != nil {
			return sum, fmt.Errorf("fetch archive %s: %w", archive, err)
		}
		r, stats := tr.TransformAll(raw)
		rows = append(rows, r...)
		sum.Games += stats.Total
		sum.Variants += stats.Variant
		sum.Invalid += stats.Invalid
	}
	log.Info("Finished retrieving data", zap.Int("archives", sum.Archives), zap.Int("games", sum.Games), zap.Int("rows", len(rows)))

	if err := ig.store(ctx, log, table, rows, &sum); err != nil {
		return sum, err
	}
	return sum, nil
}

func (ig *Ingester) store(ctx context.Context, log *zap.Logger, table string, rows []db.GameRow, sum *Summary) error {
	if err := db.EnsureGamesTable(ctx, ig.DB, ig.Dialect, table); err != nil {
		return err
	}
	log.Info("Opened games table", zap.String("table", table), zap.String("dialect", ig.Dialect.String()))

	bw := NewBatchWriter(ig.DB, ig.BatchSize)
	bw.Skippable = func(err error) bool { return errors.Is(err, db.ErrDuplicateGame) }
	bw.OnSkip = func(err error) {
		sum.Duplicates++
		log.Warn("This game already exists in the database", zap.Error(err))
	}

	inserted := 0
	for _, row := range rows {
		err := bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
			if err := db.InsertGame(ctx, tx, ig.Dialect, table, row); err != nil {
				return err
			}
			inserted++
			return nil
		})
		if err != nil {
			return fmt.Errorf("store games: %w", err)
		}
	}
	if err := bw.Close(ctx); err != nil {
		return fmt.Errorf("store games: %w", err)
	}
	sum.Inserted = inserted

	stored, err := db.CountGames(ctx, ig.DB, table)
	if err != nil {
		return fmt.Errorf("count games: %w", err)
	}
	sum.Stored = stored
	log.Info("Stored games", zap.Int("inserted", sum.Inserted), zap.Int("duplicates", sum.Duplicates), zap.Int("total", sum.Stored))
	return nil
}
