package models

import (
	"time"

	"github.com/uptrace/bun"
)

// BalanceUpdate is one aggregated balance observation for an address (address_updates).
// Rows are append-only.
type BalanceUpdate struct {
	bun.BaseModel `bun:"table:address_updates,alias:au"`

	ID          int64     `bun:"id,pk,autoincrement,type:serial" json:"id"`
	TimeCreated time.Time `bun:"time_created,type:timestamp,nullzero,default:current_timestamp" json:"timeCreated"`
	TimeUpdated time.Time `bun:"time_updated,type:timestamp,nullzero,default:current_timestamp" json:"timeUpdated"`
	ValueUSD    float64   `bun:"value_usd,notnull" json:"valueUsd"`
	Timestamp   int64     `bun:"timestamp,notnull" json:"timestamp"` // unix seconds
	Time        time.Time `bun:"time,type:timestamp,notnull" json:"time"`
	Symbol      string    `bun:"symbol,notnull" json:"symbol"`
	Amount      float64   `bun:"amount,notnull" json:"amount"`
	Price       float64   `bun:"price,notnull" json:"price"`
	ValuePct    float64   `bun:"value_pct,notnull" json:"valuePct"`
	AddressID   int64     `bun:"address_id,type:integer" json:"addressId"`
}

// TokenBalance is a per-token holding snapshot (token_balances)
type TokenBalance struct {
	bun.BaseModel `bun:"table:token_balances,alias:tb"`

	ID        int64     `bun:"id,pk,autoincrement,type:serial" json:"id"`
	Time      time.Time `bun:"time,type:timestamp,notnull" json:"time"`
	AddressID int64     `bun:"address_id,notnull,type:integer" json:"addressId"`
	TokenID   int64     `bun:"token_id,notnull,type:integer" json:"tokenId"`
	Amount    float64   `bun:"amount,type:float(10),notnull" json:"amount"`
	// Price is nil when unknown
	Price *float64 `bun:"price,type:float(10)" json:"price"`
}
