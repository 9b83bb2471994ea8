package storage

import (
	"context"
	"time"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/models"
	"github.com/defi-common/internal/schema"
	"github.com/defi-common/internal/types"
)

// RankRepository persists address performance ranks.
// rank > 0 is enforced by the database, not here.
type RankRepository struct {
	repo
}

// NewRankRepository creates a new rank repository
func NewRankRepository(q DBTX) *RankRepository {
	return &RankRepository{repo{q: q}}
}

// Create inserts a rank entry
func (r *RankRepository) Create(ctx context.Context, e *models.RankEntry) (err error) {
	defer r.track(schema.TablePerformanceRank, "insert")(&err)

	if e.AddressID <= 0 {
		return apperrors.NewInvalidParameterError("address_id", "must reference an address")
	}

	query := `
		INSERT INTO address_performance_rank (performance, time, address_id, ranking_type, rank)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, time_created, time_updated
	`

	err = r.q.QueryRow(ctx, query, e.Performance, nullTime(e.Time), e.AddressID, string(e.RankingType), e.Rank).
		Scan(&e.ID, &e.TimeCreated, &e.TimeUpdated)
	if err != nil {
		return classifyPgError(schema.TablePerformanceRank, "insert", err)
	}
	return nil
}

// ListByType returns the most recent ranking of the given type, best rank first.
// A ranking is the set of rows sharing one time value; writers stamp a whole batch
// with the same time, and rows of a batch carrying their own timestamps are not
// grouped. limit <= 0 returns the whole ranking.
func (r *RankRepository) ListByType(ctx context.Context, rankingType types.RankingType, limit int) ([]*models.RankEntry, error) {
	return r.ListByTypeAt(ctx, rankingType, time.Time{}, limit)
}

// ListByTypeAt returns the ranking of the given type stamped exactly at. A zero at
// selects the most recent ranking.
func (r *RankRepository) ListByTypeAt(ctx context.Context, rankingType types.RankingType, at time.Time, limit int) (_ []*models.RankEntry, err error) {
	defer r.track(schema.TablePerformanceRank, "list")(&err)

	query := `
		SELECT id, time_created, time_updated, performance, time, address_id, ranking_type, rank
		FROM address_performance_rank
		WHERE ranking_type = $1
			AND time = COALESCE($3::timestamp,
				(SELECT max(time) FROM address_performance_rank WHERE ranking_type = $1))
		ORDER BY rank, id
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, string(rankingType), sqlLimit(limit), nullTime(at))
	if err != nil {
		return nil, classifyPgError(schema.TablePerformanceRank, "list", err)
	}
	defer rows.Close()

	var entries []*models.RankEntry
	for rows.Next() {
		var e models.RankEntry
		var rt string
		if err := rows.Scan(&e.ID, &e.TimeCreated, &e.TimeUpdated, &e.Performance,
			&e.Time, &e.AddressID, &rt, &e.Rank); err != nil {
			return nil, classifyPgError(schema.TablePerformanceRank, "scan", err)
		}
		e.RankingType = types.RankingType(rt)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(schema.TablePerformanceRank, "scan", err)
	}
	return entries, nil
}

// CoinRankRepository persists coin change ranks
type CoinRankRepository struct {
	repo
}

// NewCoinRankRepository creates a new coin rank repository
func NewCoinRankRepository(q DBTX) *CoinRankRepository {
	return &CoinRankRepository{repo{q: q}}
}

// Create inserts a coin rank entry
func (r *CoinRankRepository) Create(ctx context.Context, c *models.CoinRank) (err error) {
	defer r.track(schema.TableCoinRank, "insert")(&err)

	query := `
		INSERT INTO coin_rank (symbol, rank, time, pct_change, ranking_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, time_created, time_updated
	`

	err = r.q.QueryRow(ctx, query, c.Symbol, c.Rank, nullTime(c.Time), c.PctChange, string(c.RankingType)).
		Scan(&c.ID, &c.TimeCreated, &c.TimeUpdated)
	if err != nil {
		return classifyPgError(schema.TableCoinRank, "insert", err)
	}
	return nil
}

// ListByType returns the most recent coin ranking of the given type, best rank first.
// As with RankRepository.ListByType, only rows sharing the latest time are returned.
func (r *CoinRankRepository) ListByType(ctx context.Context, rankingType types.RankingType, limit int) ([]*models.CoinRank, error) {
	return r.ListByTypeAt(ctx, rankingType, time.Time{}, limit)
}

// ListByTypeAt returns the coin ranking stamped exactly at; a zero at selects the latest
func (r *CoinRankRepository) ListByTypeAt(ctx context.Context, rankingType types.RankingType, at time.Time, limit int) (_ []*models.CoinRank, err error) {
	defer r.track(schema.TableCoinRank, "list")(&err)

	query := `
		SELECT id, time_created, time_updated, symbol, rank, time, pct_change, ranking_type
		FROM coin_rank
		WHERE ranking_type = $1
			AND time = COALESCE($3::timestamp,
				(SELECT max(time) FROM coin_rank WHERE ranking_type = $1))
		ORDER BY rank, id
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, string(rankingType), sqlLimit(limit), nullTime(at))
	if err != nil {
		return nil, classifyPgError(schema.TableCoinRank, "list", err)
	}
	defer rows.Close()

	var ranks []*models.CoinRank
	for rows.Next() {
		var c models.CoinRank
		var rt string
		if err := rows.Scan(&c.ID, &c.TimeCreated, &c.TimeUpdated, &c.Symbol,
			&c.Rank, &c.Time, &c.PctChange, &rt); err != nil {
			return nil, classifyPgError(schema.TableCoinRank, "scan", err)
		}
		c.RankingType = types.RankingType(rt)
		ranks = append(ranks, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(schema.TableCoinRank, "scan", err)
	}
	return ranks, nil
}

// sqlLimit maps a non-positive limit to NULL, which LIMIT treats as no limit
func sqlLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
