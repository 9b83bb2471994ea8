package models

import (
	"time"

	"github.com/defi-common/internal/types"
	"github.com/uptrace/bun"
)

// PerformanceResult is a performance figure for an address over [StartTime, EndTime)
type PerformanceResult struct {
	bun.BaseModel `bun:"table:performance_run_results,alias:pr"`

	ID          int64     `bun:"id,pk,autoincrement,type:serial" json:"id"`
	TimeCreated time.Time `bun:"time_created,type:timestamp,nullzero,default:current_timestamp" json:"timeCreated"`
	TimeUpdated time.Time `bun:"time_updated,type:timestamp,nullzero,default:current_timestamp" json:"timeUpdated"`
	Performance float64   `bun:"performance,notnull" json:"performance"`
	StartTime   time.Time `bun:"start_time,type:timestamp,notnull" json:"startTime"`
	EndTime     time.Time `bun:"end_time,type:timestamp,notnull" json:"endTime"`
	AddressID   int64     `bun:"address_id,type:integer" json:"addressId"`
}

// RankEntry is an address's position within a ranking bucket (address_performance_rank)
type RankEntry struct {
	bun.BaseModel `bun:"table:address_performance_rank,alias:apr"`

	ID          int64             `bun:"id,pk,autoincrement,type:serial" json:"id"`
	TimeCreated time.Time         `bun:"time_created,type:timestamp,nullzero,default:current_timestamp" json:"timeCreated"`
	TimeUpdated time.Time         `bun:"time_updated,type:timestamp,nullzero,default:current_timestamp" json:"timeUpdated"`
	Performance float64           `bun:"performance,notnull" json:"performance"`
	Time        time.Time         `bun:"time,type:timestamp,notnull" json:"time"`
	AddressID   int64             `bun:"address_id,type:integer" json:"addressId"`
	RankingType types.RankingType `bun:"ranking_type,type:varchar,notnull" json:"rankingType"`
	Rank        int               `bun:"rank,type:integer" json:"rank"` // CHECK rank > 0
}

// CoinRank is a coin's position by percentage change within a ranking bucket (coin_rank)
type CoinRank struct {
	bun.BaseModel `bun:"table:coin_rank,alias:cr"`

	ID          int64             `bun:"id,pk,autoincrement,type:serial" json:"id"`
	TimeCreated time.Time         `bun:"time_created,type:timestamp,nullzero,default:current_timestamp" json:"timeCreated"`
	TimeUpdated time.Time         `bun:"time_updated,type:timestamp,nullzero,default:current_timestamp" json:"timeUpdated"`
	Symbol      string            `bun:"symbol,notnull" json:"symbol"`
	Rank        int               `bun:"rank,type:integer" json:"rank"` // CHECK rank > 0
	Time        time.Time         `bun:"time,type:timestamp,notnull" json:"time"`
	PctChange   float64           `bun:"pct_change,notnull" json:"pctChange"`
	RankingType types.RankingType `bun:"ranking_type,type:varchar,notnull" json:"rankingType"`
}
