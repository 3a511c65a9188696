package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ErrDuplicateGame is returned by InsertGame when the url_hash is already stored.
var ErrDuplicateGame = errors.New("game already exists")

// IsUniqueViolation reports whether err is a unique or primary key constraint
// failure from one of the supported drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateGame) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique constraint") || strings.Contains(s, "duplicate key")
}

// InsertGame inserts row into table. It returns ErrDuplicateGame when a row
// with the same url_hash exists; the stored row is never modified.
func InsertGame(ctx context.Context, db DBExecutor, dialect Dialect, table string, row GameRow) error {
	if row.URLHash == "" {
		return fmt.Errorf("url_hash must be non-empty")
	}
	ph := make([]string, 7)
	for i := range ph {
		ph[i] = dialect.Placeholder(i + 1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (url_hash, time_class, player_colour, opening, game_url, player_result, opponent_result)
		VALUES (%s)
		ON CONFLICT (url_hash) DO NOTHING`, quoteIdent(table), strings.Join(ph, ", "))

	res, err := db.ExecContext(ctx, query,
		row.URLHash, row.TimeClass, string(row.PlayerColour), row.Opening, row.GameURL, row.PlayerResult, row.OpponentResult)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateGame, row.URLHash)
		}
		return fmt.Errorf("insert game %s: %w", row.URLHash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert game %s: %w", row.URLHash, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateGame, row.URLHash)
	}
	return nil
}

// CountGames returns the number of rows in table.
func CountGames(ctx context.Context, db DBExecutor, table string) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(table))).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetGame returns the row stored under urlHash, or sql.ErrNoRows.
func GetGame(ctx context.Context, db DBExecutor, dialect Dialect, table, urlHash string) (GameRow, error) {
	query := fmt.Sprintf(`SELECT url_hash, time_class, player_colour, opening, game_url, player_result, opponent_result
		FROM %s WHERE url_hash = %s`, quoteIdent(table), dialect.Placeholder(1))

	var g GameRow
	var colour, timeClass, opening, gameURL, playerResult, opponentResult sql.NullString
	err := db.QueryRowContext(ctx, query, urlHash).Scan(&g.URLHash, &timeClass, &colour, &opening, &gameURL, &playerResult, &opponentResult)
	if err != nil {
		return GameRow{}, err
	}
	g.PlayerColour = Colour(colour.String)
	g.TimeClass = timeClass.String
	g.Opening = opening.String
	g.GameURL = gameURL.String
	g.PlayerResult = playerResult.String
	g.OpponentResult = opponentResult.String
	return g, nil
}
