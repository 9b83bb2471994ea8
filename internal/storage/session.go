package storage

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/monitor"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSessionReleased is the cause of the System error returned by a Session used after Release
var ErrSessionReleased = errors.New("session already released")

// sessionEntity tags errors raised by the session itself; repositories re-tag them with their table
const sessionEntity = "session"

func errReleased(action string) error {
	return apperrors.NewDatabaseError(monitor.StorePostgres, sessionEntity, action, ErrSessionReleased)
}

// DBTX is the query surface shared by *Session, pgx.Tx and *pgxpool.Pool.
// Repositories accept it so callers decide the transaction scope.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ DBTX = (*Session)(nil)
	_ DBTX = (pgx.Tx)(nil)
	_ DBTX = (*pgxpool.Pool)(nil)
)

// Session is one pooled connection borrowed for a unit of work.
// Statements run in autocommit mode unless wrapped in Begin or InTx.
// A Session is not safe for concurrent use.
type Session struct {
	conn *pgxpool.Conn
	db   *PostgresDB

	releaseOnce sync.Once
	released    bool
}

// OpenSession acquires a connection from the pool. The caller must Release it.
func (db *PostgresDB) OpenSession(ctx context.Context) (*Session, error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		db.metrics.SessionAcquireFailed()
		db.logger.WithError(err).Warn("failed to acquire session")
		return nil, apperrors.NewConnectivityError(monitor.StorePostgres, "session", "acquire", err)
	}
	db.metrics.SessionOpened()
	return &Session{conn: conn, db: db}, nil
}

// WithSession runs fn with a fresh session and releases it on every exit path, panics included
func (db *PostgresDB) WithSession(ctx context.Context, fn func(s *Session) error) error {
	s, err := db.OpenSession(ctx)
	if err != nil {
		return err
	}
	defer s.Release()
	return fn(s)
}

// Release returns the connection to the pool. A connection still inside a
// transaction is closed instead, discarding the uncommitted work.
func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		s.released = true
		s.conn.Release()
		s.db.metrics.SessionReleased()
	})
}

// Exec runs a statement
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if s.released {
		return pgconn.CommandTag{}, errReleased("exec")
	}
	tag, err := s.conn.Exec(ctx, sql, args...)
	if err != nil {
		return tag, classifyPgError(sessionEntity, "exec", err)
	}
	return tag, nil
}

// Query runs a query returning rows
func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.released {
		return nil, errReleased("query")
	}
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, classifyPgError(sessionEntity, "query", err)
	}
	return rows, nil
}

// QueryRow runs a query returning at most one row
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.released {
		return errRow{err: errReleased("query")}
	}
	return sessionRow{s.conn.QueryRow(ctx, sql, args...)}
}

// Begin starts a transaction on the session's connection
func (s *Session) Begin(ctx context.Context) (pgx.Tx, error) {
	if s.released {
		return nil, errReleased("begin")
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, classifyPgError(sessionEntity, "begin", err)
	}
	return tx, nil
}

// InTx runs fn inside a transaction, committing when fn returns nil and rolling back otherwise
func (s *Session) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if s.released {
		return errReleased("transaction")
	}
	if err := pgx.BeginFunc(ctx, s.conn, fn); err != nil {
		return classifyPgError(sessionEntity, "transaction", err)
	}
	return nil
}

// Repositories returns repositories bound to this session
func (s *Session) Repositories() *Repositories {
	return NewRepositories(s, s.db.metrics)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// sessionRow classifies errors surfaced at Scan time. pgx.ErrNoRows is returned as is.
type sessionRow struct{ row pgx.Row }

func (r sessionRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return classifyPgError(sessionEntity, "query", err)
}
