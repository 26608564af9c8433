package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dialogue-engine/internal/common/config"
	"dialogue-engine/internal/common/errors"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL connection pool used by the session store.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens a pool. The connection is not verified until Connect or Ping.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// NewPostgresFromDB wraps an existing pool, e.g. a sqlmock connection.
func NewPostgresFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

// Connect pings the database with exponential backoff.
func (c *PostgresClient) Connect(ctx context.Context) error {
	attempts := errors.GetRetryCount(errors.ErrCodeDatabaseConnectionFailed) + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return errors.NewDatabaseConnectionFailedError(ctx.Err())
			case <-time.After(backoff):
			}
		}
		if lastErr = c.DB.PingContext(ctx); lastErr == nil {
			return nil
		}
	}
	return errors.NewDatabaseConnectionFailedError(lastErr)
}

// Migrate runs idempotent DDL statements inside one transaction.
func (c *PostgresClient) Migrate(ctx context.Context, statements ...string) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return tx.Commit()
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
