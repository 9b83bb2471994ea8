// Package storage provides the relational session provider and repository implementations.
package storage

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/defi-common/internal/config"
	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/logging"
	"github.com/defi-common/internal/monitor"
	"github.com/defi-common/internal/schema"
	"github.com/defi-common/internal/types"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// Target selects which configured endpoint a handle connects to
type Target int

const (
	// TargetPrimary connects to DB_URL
	TargetPrimary Target = iota
	// TargetTest connects to TEST_DB_URL
	TargetTest
)

func (t Target) String() string {
	if t == TargetTest {
		return "test"
	}
	return "primary"
}

// Option configures a PostgresDB
type Option func(*PostgresDB)

// WithLogger sets the logger used for pool and schema events
func WithLogger(l *logging.Logger) Option {
	return func(db *PostgresDB) { db.logger = l }
}

// WithMetrics sets the metrics sink for sessions and repositories
func WithMetrics(m *monitor.Metrics) Option {
	return func(db *PostgresDB) { db.metrics = m }
}

// WithMetadata replaces the table set managed by InitializeSchema
func WithMetadata(m *schema.Metadata) Option {
	return func(db *PostgresDB) { db.metadata = m }
}

// PostgresDB owns the process-wide connection pool. It is safe for concurrent use.
// Units of work borrow a connection through OpenSession or WithSession.
type PostgresDB struct {
	pool     *pgxpool.Pool
	sqlDB    *sql.DB
	bunDB    *bun.DB
	target   Target
	env      types.Environment
	allowRst bool
	metadata *schema.Metadata
	logger   *logging.Logger
	metrics  *monitor.Metrics

	closeOnce sync.Once
}

// NewPostgresDB creates the pool for the selected endpoint and verifies it with a ping
func NewPostgresDB(ctx context.Context, cfg *config.PostgresConfig, target Target, opts ...Option) (*PostgresDB, error) {
	connString := cfg.URLFor(target == TargetTest)
	setting := config.EnvDBURL
	if target == TargetTest {
		setting = config.EnvTestDBURL
	}
	if connString == "" {
		return nil, apperrors.NewConfigurationError(setting+" is not set", setting)
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, apperrors.NewConfigurationError(setting+" is malformed: "+err.Error(), setting)
	}

	// Configure connection pool
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections) // #nosec G115 - MaxConnections is validated in config
	}
	poolConfig.MinConns = int32(cfg.MinConnections) // #nosec G115
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, apperrors.NewConnectivityError(monitor.StorePostgres, "pool", "connect", err)
	}

	// Test connection
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, apperrors.NewConnectivityError(monitor.StorePostgres, "pool", "ping", err)
	}

	db := &PostgresDB{
		pool:     pool,
		target:   target,
		env:      cfg.Environment,
		allowRst: cfg.AllowSchemaReset,
		metadata: schema.Default(),
		logger:   logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.logger = db.logger.WithFields(map[string]interface{}{
		"store":  monitor.StorePostgres,
		"target": target.String(),
	})

	// bun shares the pool for DDL
	db.sqlDB = stdlib.OpenDBFromPool(pool)
	db.bunDB = bun.NewDB(db.sqlDB, pgdialect.New())

	db.logger.WithField("max_conns", poolConfig.MaxConns).Info("relational pool ready")
	return db, nil
}

// Close closes the bun handle and the pool. Safe to call more than once.
func (db *PostgresDB) Close() {
	db.closeOnce.Do(func() {
		if db.bunDB != nil {
			_ = db.bunDB.Close()
		}
		if db.pool != nil {
			db.pool.Close()
		}
		db.logger.Info("relational pool closed")
	})
}

// Pool returns the underlying connection pool
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Bun returns the bun handle sharing the pool
func (db *PostgresDB) Bun() *bun.DB {
	return db.bunDB
}

// Target reports which endpoint the handle is connected to
func (db *PostgresDB) Target() Target {
	return db.target
}

// Metadata returns the tables managed by InitializeSchema
func (db *PostgresDB) Metadata() *schema.Metadata {
	return db.metadata
}

// Ping checks if the database is reachable
func (db *PostgresDB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return apperrors.NewConnectivityError(monitor.StorePostgres, "pool", "ping", err)
	}
	return nil
}

// InitializeSchema drops every managed table and recreates it in one transaction.
// Refused unless the handle targets the test endpoint, or schema reset was explicitly
// allowed outside production.
func (db *PostgresDB) InitializeSchema(ctx context.Context) error {
	if err := checkSchemaReset(db.target, db.env, db.allowRst); err != nil {
		db.logger.WithError(err).Warn("schema reset refused")
		return err
	}

	err := db.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := db.metadata.DropAll(ctx, tx); err != nil {
			return err
		}
		return db.metadata.CreateAll(ctx, tx)
	})
	if err != nil {
		db.logger.WithError(err).Error("schema reset failed")
		return classifyPgError("schema", "reset", err)
	}

	db.metrics.SchemaReset()
	db.logger.WithField("tables", db.metadata.CreateOrder()).Info("schema reset complete")
	return nil
}

// EnsureSchema creates missing tables, checks and indexes without dropping anything
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	err := db.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return db.metadata.CreateAll(ctx, tx)
	})
	if err != nil {
		return classifyPgError("schema", "create", err)
	}
	db.logger.Info("schema ensured")
	return nil
}

func checkSchemaReset(target Target, env types.Environment, allowReset bool) error {
	const op = "initialize_schema"
	if target == TargetTest {
		return nil
	}
	if env == types.EnvProduction {
		return apperrors.NewDestructiveGuardError(op, "primary database in production")
	}
	if !allowReset {
		return apperrors.NewDestructiveGuardError(op, config.EnvAllowSchemaReset+" is not enabled for the primary database")
	}
	return nil
}
