package models

import "github.com/uptrace/bun"

// Blockchain is a named chain that tokens belong to
type Blockchain struct {
	bun.BaseModel `bun:"table:blockchains,alias:bc"`

	ID   int64  `bun:"id,pk,autoincrement,type:serial" json:"id"`
	Name string `bun:"name,unique" json:"name"`
}

// Token is token metadata on one chain
type Token struct {
	bun.BaseModel `bun:"table:tokens,alias:t"`

	ID           int64  `bun:"id,pk,autoincrement,type:serial" json:"id"`
	Symbol       string `bun:"symbol,notnull" json:"symbol"`
	BlockchainID int64  `bun:"blockchain_id,notnull,type:integer" json:"blockchainId"`
	Address      string `bun:"address,notnull" json:"address"`
	Decimals     int    `bun:"decimals,type:integer,notnull" json:"decimals"`
}
