// Package models provides row and document types for the portfolio persistence core.
// Relational types carry bun tags; the bun tags are the source of the DDL in internal/schema.
package models

import (
	"strings"
	"time"

	"github.com/defi-common/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Address represents a blockchain address being tracked on a specific chain.
// (address, blockchain_type) is the natural key; duplicates are not rejected by the store.
type Address struct {
	bun.BaseModel `bun:"table:addresses,alias:a"`

	ID             int64     `bun:"id,pk,autoincrement,type:serial" json:"id"`
	TimeCreated    time.Time `bun:"time_created,type:timestamp,nullzero,default:current_timestamp" json:"timeCreated"`
	TimeUpdated    time.Time `bun:"time_updated,type:timestamp,nullzero,default:current_timestamp" json:"timeUpdated"`
	Address        string    `bun:"address" json:"address"`
	BlockchainType string    `bun:"blockchain_type" json:"blockchainType"`
}

// NormalizeAddress returns the stored form of an address.
// EVM addresses are lowercased (and 0x-prefixed when they parse as 20-byte hex);
// other chains use case-sensitive encodings and are only trimmed.
func NormalizeAddress(address string, chain types.ChainID) string {
	a := strings.TrimSpace(address)
	if !chain.IsEVM() {
		return a
	}
	if common.IsHexAddress(a) {
		return strings.ToLower(common.HexToAddress(a).Hex())
	}
	return strings.ToLower(a)
}

// UserAddress links a user to a tracked address (users_to_addresses)
type UserAddress struct {
	bun.BaseModel `bun:"table:users_to_addresses,alias:ua"`

	UserID    uuid.UUID `bun:"user_id,pk,type:uuid" json:"userId"`
	AddressID int64     `bun:"address_id,pk,type:integer" json:"addressId"`
}
