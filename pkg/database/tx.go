package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMaxRetries is the default number of attempts for deadlocked transactions
	DefaultMaxRetries = 3
	// DefaultBaseBackoff is the default base backoff duration
	DefaultBaseBackoff = 100 * time.Millisecond
)

// ErrDeadlock is returned when a transaction keeps deadlocking after all retries
var ErrDeadlock = errors.New("transaction deadlock")

// WithTransaction runs fn in a transaction. It commits when fn succeeds and
// rolls back when fn fails or panics. Models built on tx take part in the
// transaction.
func (db *DB) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// WithRetry runs fn in a transaction, retrying with exponential backoff
// while it fails with a deadlock or serialization error
func (db *DB) WithRetry(ctx context.Context, maxRetries int, fn func(tx *sql.Tx) error) error {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("transaction cancelled before retry %d: %w", attempt, ctx.Err())
		}

		err := db.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return err
		}
		lastErr = err

		backoff := DefaultBaseBackoff * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction cancelled during backoff: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%w: transaction failed after %d retries: %v", ErrDeadlock, maxRetries, lastErr)
}

// IsRetryableError checks for PostgreSQL and MySQL deadlock or serialization
// failures
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"40p01",
		"40001",
		"deadlock detected",
		"deadlock found",
		"lock wait timeout exceeded",
		"could not serialize access",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
