package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Store wraps the relational store shared by every pipeline phase
type Store struct {
	db  *sqlx.DB
	url string

	mu          sync.Mutex
	schemaReady bool
}

func configurePool(db *sqlx.DB, maxOpenConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
}

// NewStore creates a new database store
func NewStore(databaseURL string, maxOpenConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	configurePool(db, maxOpenConns)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, url: databaseURL}, nil
}

// Open creates a store without connecting. Connections are made on first
// use, so an unreachable database surfaces as an error of the operation
// that needed it.
func Open(databaseURL string, maxOpenConns int) (*Store, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	configurePool(db, maxOpenConns)
	return &Store{db: db, url: databaseURL}, nil
}

// NewFromDB wraps an existing connection
func NewFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema checks connectivity and applies pending migrations from
// migrationsPath, once per store. A failed call leaves the store unprepared
// so the next call tries again. An empty path only checks connectivity.
func (s *Store) EnsureSchema(ctx context.Context, migrationsPath string, logger *zap.Logger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemaReady {
		return nil
	}

	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if migrationsPath != "" {
		if s.url == "" {
			return errors.New("cannot migrate a store opened without a connection URL")
		}
		// golang-migrate closes the connection it is given
		db, err := sql.Open("postgres", s.url)
		if err != nil {
			return fmt.Errorf("failed to open migration connection: %w", err)
		}
		if err := RunMigrations(db, migrationsPath, logger); err != nil {
			return err
		}
	}
	s.schemaReady = true
	return nil
}

// InTx runs fn inside one transaction. Any error returned by fn rolls back
// everything it did; the transaction is committed only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
