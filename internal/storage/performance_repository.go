package storage

import (
	"context"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/models"
	"github.com/defi-common/internal/schema"
)

// PerformanceRepository persists performance run results
type PerformanceRepository struct {
	repo
}

// NewPerformanceRepository creates a new performance repository
func NewPerformanceRepository(q DBTX) *PerformanceRepository {
	return &PerformanceRepository{repo{q: q}}
}

// Create inserts a result for the window [StartTime, EndTime)
func (r *PerformanceRepository) Create(ctx context.Context, p *models.PerformanceResult) (err error) {
	defer r.track(schema.TablePerformanceRuns, "insert")(&err)

	if p.AddressID <= 0 {
		return apperrors.NewInvalidParameterError("address_id", "must reference an address")
	}
	if !p.EndTime.After(p.StartTime) {
		return apperrors.NewInvalidParameterError("end_time", "must be after start_time")
	}

	query := `
		INSERT INTO performance_run_results (performance, start_time, end_time, address_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, time_created, time_updated
	`

	err = r.q.QueryRow(ctx, query, p.Performance, p.StartTime, p.EndTime, p.AddressID).
		Scan(&p.ID, &p.TimeCreated, &p.TimeUpdated)
	if err != nil {
		return classifyPgError(schema.TablePerformanceRuns, "insert", err)
	}
	return nil
}

// ListByAddress returns an address's results ordered by window start
func (r *PerformanceRepository) ListByAddress(ctx context.Context, addressID int64) (_ []*models.PerformanceResult, err error) {
	defer r.track(schema.TablePerformanceRuns, "list")(&err)

	query := `
		SELECT id, time_created, time_updated, performance, start_time, end_time, address_id
		FROM performance_run_results
		WHERE address_id = $1
		ORDER BY start_time, id
	`

	rows, err := r.q.Query(ctx, query, addressID)
	if err != nil {
		return nil, classifyPgError(schema.TablePerformanceRuns, "list", err)
	}
	defer rows.Close()

	var results []*models.PerformanceResult
	for rows.Next() {
		var p models.PerformanceResult
		if err := rows.Scan(&p.ID, &p.TimeCreated, &p.TimeUpdated, &p.Performance,
			&p.StartTime, &p.EndTime, &p.AddressID); err != nil {
			return nil, classifyPgError(schema.TablePerformanceRuns, "scan", err)
		}
		results = append(results, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(schema.TablePerformanceRuns, "scan", err)
	}
	return results, nil
}
