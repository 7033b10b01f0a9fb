package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type DatabaseConnection struct {
	*pgxpool.Pool
}

const DBRetryCount = 15

// NewDatabaseConnection creates a new database connection
func NewDatabaseConnection(ctx context.Context, pool *pgxpool.Pool) (*DatabaseConnection, error) {
	for i := range DBRetryCount {
		err := pool.Ping(ctx)
		if err == nil {
			return &DatabaseConnection{pool}, nil
		}

		// Golden ratio backoff
		fib := 1.61803398875
		sleep := time.Duration((float64(i) * fib)) * time.Second
		slog.Warn("could not ping the database", "error", err, "retry_in", sleep)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}

	return nil, fmt.Errorf("could not connect to database after %d retries", DBRetryCount)
}

// Close closes the database connection
func (db *DatabaseConnection) Close() {
	db.Pool.Close()
}

func (db *DatabaseConnection) Queries(ctx context.Context) *Queries {
	return New(db)
}

func (db *DatabaseConnection) Store() *Store {
	return NewStore(db.Pool)
}

// Store pairs plain queries with transactional execution over one pool.
type Store struct {
	pool Pool
}

func NewStore(pool Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Queries() *Queries {
	return New(s.pool)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RunInTx runs fn inside one transaction. An error or panic from fn rolls the
// whole transaction back; otherwise it commits. Nested calls open independent
// transactions.
func (s *Store) RunInTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(s.Queries().WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

//go:embed sql/migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "sql/migrations"

// MigrateTarget selects the schema version Migrate moves to. The zero value
// applies every embedded migration.
type MigrateTarget struct {
	UpTo   int64
	DownTo *int64
}

// ParseMigrateTarget reads GOOSE_UP_TO / GOOSE_DOWN_TO style values; empty
// strings are ignored.
func ParseMigrateTarget(upTo, downTo string) (MigrateTarget, error) {
	var t MigrateTarget
	if downTo != "" {
		v, err := strconv.ParseInt(downTo, 10, 64)
		if err != nil {
			return t, fmt.Errorf("parse down-to version %q: %w", downTo, err)
		}
		t.DownTo = &v
	}
	if upTo != "" {
		v, err := strconv.ParseInt(upTo, 10, 64)
		if err != nil {
			return t, fmt.Errorf("parse up-to version %q: %w", upTo, err)
		}
		t.UpTo = v
	}
	return t, nil
}

// Migrate applies the embedded goose migrations and returns the resulting
// schema version.
func (db *DatabaseConnection) Migrate(ctx context.Context, target MigrateTarget) (int64, error) {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, err
	}

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	before, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	pending, err := goose.CollectMigrations(migrationsDir, before, goose.MaxVersion)
	if err != nil && !errors.Is(err, goose.ErrNoMigrationFiles) {
		return before, err
	}
	slog.Info("schema version", "current", before, "pending", len(pending))

	switch {
	case target.DownTo != nil:
		err = goose.DownToContext(ctx, sqlDB, migrationsDir, *target.DownTo)
	case target.UpTo > 0:
		err = goose.UpToContext(ctx, sqlDB, migrationsDir, target.UpTo)
	default:
		err = goose.UpContext(ctx, sqlDB, migrationsDir)
	}
	if err != nil {
		return before, err
	}

	return goose.GetDBVersionContext(ctx, sqlDB)
}
