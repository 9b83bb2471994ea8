package storage

import (
	"context"
	"time"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/models"
	"github.com/defi-common/internal/schema"
	"github.com/jackc/pgx/v5"
)

// BalanceUpdateRepository appends and reads aggregated balance history (address_updates).
// There is no update or delete: history is append-only.
type BalanceUpdateRepository struct {
	repo
}

// NewBalanceUpdateRepository creates a new balance update repository
func NewBalanceUpdateRepository(q DBTX) *BalanceUpdateRepository {
	return &BalanceUpdateRepository{repo{q: q}}
}

const balanceUpdateColumns = `id, time_created, time_updated, value_usd, timestamp, time,
	symbol, amount, price, value_pct, address_id`

// Create appends a balance update. When only one of Timestamp and Time is set,
// the other is derived from it.
func (r *BalanceUpdateRepository) Create(ctx context.Context, u *models.BalanceUpdate) (err error) {
	defer r.track(schema.TableAddressUpdates, "insert")(&err)

	if u.AddressID <= 0 {
		return apperrors.NewInvalidParameterError("address_id", "must reference an address")
	}
	switch {
	case u.Time.IsZero() && u.Timestamp != 0:
		u.Time = time.Unix(u.Timestamp, 0).UTC()
	case u.Timestamp == 0 && !u.Time.IsZero():
		u.Timestamp = u.Time.Unix()
	}

	query := `
		INSERT INTO address_updates (
			value_usd, timestamp, time, symbol, amount, price, value_pct, address_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, time_created, time_updated
	`

	err = r.q.QueryRow(ctx, query,
		u.ValueUSD,
		u.Timestamp,
		nullTime(u.Time),
		u.Symbol,
		u.Amount,
		u.Price,
		u.ValuePct,
		u.AddressID,
	).Scan(&u.ID, &u.TimeCreated, &u.TimeUpdated)
	if err != nil {
		return classifyPgError(schema.TableAddressUpdates, "insert", err)
	}
	return nil
}

// ListByAddress returns an address's updates in time order. Zero bounds are open;
// the window is [since, until).
func (r *BalanceUpdateRepository) ListByAddress(ctx context.Context, addressID int64, since, until time.Time) (_ []*models.BalanceUpdate, err error) {
	defer r.track(schema.TableAddressUpdates, "list")(&err)

	query := `
		SELECT ` + balanceUpdateColumns + `
		FROM address_updates
		WHERE address_id = $1
			AND ($2::timestamp IS NULL OR time >= $2)
			AND ($3::timestamp IS NULL OR time < $3)
		ORDER BY time, id
	`

	rows, err := r.q.Query(ctx, query, addressID, nullTime(since), nullTime(until))
	if err != nil {
		return nil, classifyPgError(schema.TableAddressUpdates, "list", err)
	}
	return collectBalanceUpdates(rows)
}

// LatestByAddress returns the most recent update per symbol for an address
func (r *BalanceUpdateRepository) LatestByAddress(ctx context.Context, addressID int64) (_ []*models.BalanceUpdate, err error) {
	defer r.track(schema.TableAddressUpdates, "latest")(&err)

	query := `
		SELECT DISTINCT ON (symbol) ` + balanceUpdateColumns + `
		FROM address_updates
		WHERE address_id = $1
		ORDER BY symbol, time DESC, id DESC
	`

	rows, err := r.q.Query(ctx, query, addressID)
	if err != nil {
		return nil, classifyPgError(schema.TableAddressUpdates, "latest", err)
	}
	return collectBalanceUpdates(rows)
}

func collectBalanceUpdates(rows pgx.Rows) ([]*models.BalanceUpdate, error) {
	defer rows.Close()

	var updates []*models.BalanceUpdate
	for rows.Next() {
		var u models.BalanceUpdate
		err := rows.Scan(
			&u.ID,
			&u.TimeCreated,
			&u.TimeUpdated,
			&u.ValueUSD,
			&u.Timestamp,
			&u.Time,
			&u.Symbol,
			&u.Amount,
			&u.Price,
			&u.ValuePct,
			&u.AddressID,
		)
		if err != nil {
			return nil, classifyPgError(schema.TableAddressUpdates, "scan", err)
		}
		updates = append(updates, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(schema.TableAddressUpdates, "scan", err)
	}
	return updates, nil
}
