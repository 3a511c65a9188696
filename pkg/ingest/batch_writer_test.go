package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestTable(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	_, err = conn.Exec("CREATE TABLE test (id INTEGER PRIMARY KEY, val TEXT UNIQUE)")
	require.NoError(t, err)
	return conn
}

func insert(val string) WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO test (val) VALUES (?)", val)
		return err
	}
}

func countRows(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM test").Scan(&n))
	return n
}

func TestBatchWriterTransactions(t *testing.T) {
	conn := openTestTable(t)
	ctx := context.Background()

	bw := NewBatchWriter(conn, 2)
	require.NoError(t, bw.Submit(ctx, insert("A")))
	require.NoError(t, bw.Submit(ctx, insert("B")))
	// batch of two flushed on the second submit
	assert.Equal(t, 2, countRows(t, conn))

	require.NoError(t, bw.Submit(ctx, insert("C")))
	assert.Equal(t, 2, countRows(t, conn))
	require.NoError(t, bw.Close(ctx))
	assert.Equal(t, 3, countRows(t, conn))
}

func TestBatchWriterRollback(t *testing.T) {
	conn := openTestTable(t)
	ctx := context.Background()

	// Batch of 2: First succeeds, second fails. Whole batch should roll back.
	bw := NewBatchWriter(conn, 2)
	require.NoError(t, bw.Submit(ctx, insert("C")))
	err := bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fmt.Errorf("intentional error")
	})
	require.EqualError(t, err, "intentional error")
	assert.Equal(t, 0, countRows(t, conn))
}

func TestBatchWriterSkipsExpectedErrors(t *testing.T) {
	conn := openTestTable(t)
	ctx := context.Background()
	errSkip := errors.New("skip me")

	bw := NewBatchWriter(conn, 10)
	bw.Skippable = func(err error) bool { return errors.Is(err, errSkip) }
	var skipped []error
	bw.OnSkip = func(err error) { skipped = append(skipped, err) }

	require.NoError(t, bw.Submit(ctx, insert("A")))
	require.NoError(t, bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error { return errSkip }))
	require.NoError(t, bw.Submit(ctx, insert("B")))
	require.NoError(t, bw.Close(ctx))

	assert.Equal(t, 2, countRows(t, conn))
	assert.Equal(t, []error{errSkip}, skipped)
}

func TestBatchWriterFlushesBySize(t *testing.T) {
	ctx := context.Background()
	bw := NewBatchWriter(nil, 5)
	called := 0
	for i := 0; i < 12; i++ {
		require.NoError(t, bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
			called++
			return nil
		}))
		// flushed in groups of five
		assert.Equal(t, (i+1)/5*5, called)
	}
	require.NoError(t, bw.Close(ctx))
	assert.Equal(t, 12, called)
}

func TestBatchWriterClosed(t *testing.T) {
	ctx := context.Background()
	bw := NewBatchWriter(nil, 0)
	require.NoError(t, bw.Close(ctx))
	assert.ErrorIs(t, bw.Close(ctx), ErrBatchWriterClosed)
	assert.ErrorIs(t, bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error { return nil }), ErrBatchWriterClosed)
}

func TestBatchWriterCanceledContext(t *testing.T) {
	conn := openTestTable(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bw := NewBatchWriter(conn, 1)
	err := bw.Submit(ctx, insert("A"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, countRows(t, conn))
}
