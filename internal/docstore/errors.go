package docstore

import (
	"context"
	"errors"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/monitor"
	"go.mongodb.org/mongo-driver/mongo"
)

// Server error codes the core distinguishes
const (
	codeNamespaceExists       = 48
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
	codeDocumentValidation    = 121
)

// classifyMongoError maps a driver error onto the store error taxonomy
func classifyMongoError(entity, action string, err error) error {
	if err == nil {
		return nil
	}

	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		return err
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		notFound := apperrors.NewNotFoundError(entity, "")
		notFound.Cause = err
		return notFound
	}

	if mongo.IsDuplicateKeyError(err) {
		return apperrors.NewConstraintViolationError(monitor.StoreMongo, entity, action, "duplicate_key", err)
	}
	if hasServerErrorCode(err, codeDocumentValidation) {
		return apperrors.NewConstraintViolationError(monitor.StoreMongo, entity, action, "document_validation", err)
	}

	// server selection failures wrap the context error
	if mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewConnectivityError(monitor.StoreMongo, entity, action, err)
	}

	return apperrors.NewDatabaseError(monitor.StoreMongo, entity, action, err)
}

func hasServerErrorCode(err error, codes ...int) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.HasErrorCode(c) {
			return true
		}
	}
	return false
}
