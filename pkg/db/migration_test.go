package db

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableColumns(t *testing.T, conn *sql.DB, table string) map[string]int {
	t.Helper()
	rows, err := conn.Query("PRAGMA table_info(" + quoteIdent(table) + ")")
	require.NoError(t, err)
	defer rows.Close()
	cols := map[string]int{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		require.NoError(t, rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk))
		cols[colName] = pk
	}
	require.NoError(t, rows.Err())
	return cols
}

// TestEnsureGamesTableCreatesSchema verifies a fresh database gets every
// column and url_hash as the primary key.
func TestEnsureGamesTableCreatesSchema(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	require.NoError(t, EnsureGamesTable(context.Background(), conn, SQLite, "sddish_chess_games"))
	// idempotent
	require.NoError(t, EnsureGamesTable(context.Background(), conn, SQLite, "sddish_chess_games"))

	cols := tableColumns(t, conn, "sddish_chess_games")
	for _, c := range []string{"time_class", "player_colour", "player_result", "opponent_result", "opening", "url_hash", "game_url"} {
		assert.Contains(t, cols, c)
	}
	assert.Equal(t, 1, cols["url_hash"], "url_hash should be the primary key")
}

// TestEnsureGamesTableAddsOpening upgrades a table created without the opening column.
func TestEnsureGamesTableAddsOpening(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	_, err = conn.Exec(`CREATE TABLE "old_chess_games" (
		time_class VARCHAR(200),
		player_colour VARCHAR(200),
		player_result VARCHAR(200),
		opponent_result VARCHAR(200),
		url_hash,
		game_url,
		CONSTRAINT primary_key_constraint PRIMARY KEY (url_hash)
	)`)
	require.NoError(t, err)

	require.NoError(t, EnsureGamesTable(context.Background(), conn, SQLite, "old_chess_games"))
	assert.Contains(t, tableColumns(t, conn, "old_chess_games"), "opening")
}

func TestTableName(t *testing.T) {
	name, err := TableName("Hikaru")
	require.NoError(t, err)
	assert.Equal(t, "hikaru_chess_games", name)

	name, err = TableName("some-user_1")
	require.NoError(t, err)
	assert.Equal(t, "some-user_1_chess_games", name)

	for _, bad := range []string{"", "a b", `x"; DROP TABLE y; --`, "ü"} {
		_, err := TableName(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		location string
		dialect  Dialect
		dsn      string
		wantErr  bool
	}{
		{"sqlite:///chess_game_archive.sqlite", SQLite, "chess_game_archive.sqlite", false},
		{"sqlite:////var/lib/games.sqlite", SQLite, "/var/lib/games.sqlite", false},
		{"sqlite://", SQLite, ":memory:", false},
		{"games.db", SQLite, "games.db", false},
		{"postgres://u:p@localhost:5432/chess", Postgres, "postgres://u:p@localhost:5432/chess", false},
		{"postgresql+psycopg2://u@db/chess", Postgres, "postgres://u@db/chess", false},
		{"sqlite://relative", SQLite, "", true},
		{"mysql://root@localhost/db", SQLite, "", true},
		{"  ", SQLite, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			dialect, dsn, err := ParseLocation(tt.location)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "?", SQLite.Placeholder(3))
	assert.Equal(t, "$3", Postgres.Placeholder(3))
	assert.Equal(t, "pgx", Postgres.Driver())
	assert.Equal(t, "sqlite3", SQLite.Driver())
}
