package ingest

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// BatchWriter buffers write operations and runs them in batches, one
// transaction per batch. Writes run on the caller's goroutine.
type BatchWriter struct {
	db     *sql.DB
	buf    []WriteFunc
	cap    int
	closed bool

	// Skippable reports whether a WriteFunc error is expected and should not
	// fail the batch. nil means every error is fatal.
	Skippable func(error) bool
	// OnSkip is called with every skipped error.
	OnSkip func(error)
}

// NewBatchWriter creates a new BatchWriter.
// db: the database connection to use for transactions (nil runs callbacks with a nil tx).
// bufferSize: flush when buffer reaches this size.
func NewBatchWriter(db *sql.DB, bufferSize int) *BatchWriter {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	return &BatchWriter{
		db:  db,
		buf: make([]WriteFunc, 0, bufferSize),
		cap: bufferSize,
	}
}

// Submit enqueues a write function, flushing when the buffer is full.
func (bw *BatchWriter) Submit(ctx context.Context, w WriteFunc) error {
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, w)
	if len(bw.buf) >= bw.cap {
		return bw.Flush(ctx)
	}
	return nil
}

// Flush commits the buffered writes. On a non-skippable error the whole
// batch is rolled back and the error returned.
func (bw *BatchWriter) Flush(ctx context.Context) error {
	if len(bw.buf) == 0 {
		return nil
	}
	batch := bw.buf
	bw.buf = make([]WriteFunc, 0, bw.cap)
	return bw.executeBatch(ctx, batch)
}

func (bw *BatchWriter) executeBatch(ctx context.Context, batch []WriteFunc) error {
	if bw.db == nil {
		for _, w := range batch {
			if err := bw.run(ctx, nil, w); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, w := range batch {
		if err := bw.run(ctx, tx, w); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch (%d items): %w", len(batch), err)
	}
	return nil
}

func (bw *BatchWriter) run(ctx context.Context, tx *sql.Tx, w WriteFunc) error {
	err := w(ctx, tx)
	if err == nil {
		return nil
	}
	if bw.Skippable != nil && bw.Skippable(err) {
		if bw.OnSkip != nil {
			bw.OnSkip(err)
		}
		return nil
	}
	return err
}

// Close flushes the remaining writes and stops accepting submissions.
func (bw *BatchWriter) Close(ctx context.Context) error {
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.closed = true
	return bw.Flush(ctx)
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
