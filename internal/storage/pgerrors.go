package storage

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/monitor"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the core distinguishes
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
	pgAdminShutdown       = "57P01"
	pgCannotConnectNow    = "57P03"
)

// classifyPgError maps a driver error onto the store error taxonomy.
// entity and action name the logical operation, e.g. "address_updates", "insert".
func classifyPgError(entity, action string, err error) error {
	if err == nil {
		return nil
	}

	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		// errors raised by a Session are re-tagged with the caller's entity and action
		if catErr.Details["entity"] != sessionEntity || catErr.Cause == nil || entity == sessionEntity {
			return err
		}
		err = catErr.Cause
	}

	if errors.Is(err, pgx.ErrNoRows) {
		notFound := apperrors.NewNotFoundError(entity, "")
		notFound.Cause = err
		return notFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgForeignKeyViolation,
			pgErr.Code == pgCheckViolation,
			pgErr.Code == pgUniqueViolation,
			pgErr.Code == pgNotNullViolation:
			constraint := pgErr.ConstraintName
			if constraint == "" {
				constraint = pgErr.ColumnName
			}
			return apperrors.NewConstraintViolationError(monitor.StorePostgres, entity, action, constraint, err)
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception class
			pgErr.Code == pgAdminShutdown,
			pgErr.Code == pgCannotConnectNow:
			return apperrors.NewConnectivityError(monitor.StorePostgres, entity, action, err)
		}
		return apperrors.NewDatabaseError(monitor.StorePostgres, entity, action, err)
	}

	if isConnectivityError(err) {
		return apperrors.NewConnectivityError(monitor.StorePostgres, entity, action, err)
	}
	return apperrors.NewDatabaseError(monitor.StorePostgres, entity, action, err)
}

func isConnectivityError(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded)
}
