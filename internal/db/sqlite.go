package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Options struct {
	Path         string
	MaxOpenConns int
	BusyTimeout  time.Duration
}

type SQLite struct {
	opts Options
	conn *sql.DB
}

func NewSQLite(opts Options) *SQLite {
	if opts.Path == "" {
		opts.Path = "./folio.db"
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 4
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	return &SQLite{
		opts: opts,
		conn: nil,
	}
}

// dsn enables foreign keys and WAL, and makes every transaction start with
// BEGIN IMMEDIATE so write transactions are serialized by SQLite.
func (s *SQLite) dsn() string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", fmt.Sprintf("%d", s.opts.BusyTimeout.Milliseconds()))
	return "file:" + s.opts.Path + "?" + params.Encode()
}

func (s *SQLite) InitDB() error {
	var err error
	s.conn, err = sql.Open("sqlite3", s.dsn())
	if err != nil {
		return err
	}
	s.conn.SetMaxOpenConns(s.opts.MaxOpenConns)
	s.conn.SetMaxIdleConns(s.opts.MaxOpenConns)

	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}

	dbLogger.Info().Str("path", s.opts.Path).Msg("Database initialized")
	return nil
}

func (s *SQLite) Get() *sql.DB {
	return s.conn
}

func (s *SQLite) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *SQLite) Query(query string, args ...interface{}) (*sql.Rows, error) {
	dbLogger.Trace().Str("query", query).Msg("Query")
	return s.conn.Query(query, args...)
}

func (s *SQLite) Exec(query string, args ...interface{}) (sql.Result, error) {
	dbLogger.Trace().Str("query", query).Msg("Exec")
	return s.conn.Exec(query, args...)
}

// WithTx detaches the transaction from ctx cancellation so that a started
// transaction always either commits or rolls back as a whole.
func (s *SQLite) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	ctx = context.WithoutCancel(ctx)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			dbLogger.Error().Err(rbErr).Msg("Error rolling back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}
