// Package types provides common type definitions for the portfolio persistence core.
package types

import "strings"

// ChainID represents a blockchain type tag as stored in addresses.blockchain_type
type ChainID string

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainID = "ethereum"
	// ChainPolygon represents the Polygon network
	ChainPolygon ChainID = "polygon"
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum ChainID = "arbitrum"
	// ChainOptimism represents the Optimism network
	ChainOptimism ChainID = "optimism"
	// ChainBase represents the Base network
	ChainBase ChainID = "base"
	// ChainBNB represents the BNB Chain (BSC)
	ChainBNB ChainID = "bnb"
	// ChainSolana represents Solana (non-EVM)
	ChainSolana ChainID = "solana"
	// ChainBitcoin represents Bitcoin (non-EVM)
	ChainBitcoin ChainID = "bitcoin"
)

// chainAliases maps common spellings to canonical chain IDs
var chainAliases = map[string]ChainID{
	"eth":     ChainEthereum,
	"mainnet": ChainEthereum,
	"matic":   ChainPolygon,
	"arb":     ChainArbitrum,
	"op":      ChainOptimism,
	"bsc":     ChainBNB,
	"binance": ChainBNB,
	"sol":     ChainSolana,
	"btc":     ChainBitcoin,
}

// NormalizeChainID lowercases a chain tag and resolves known aliases.
// Unknown tags are returned lowercased and trimmed.
func NormalizeChainID(chain string) ChainID {
	c := strings.ToLower(strings.TrimSpace(chain))
	if alias, ok := chainAliases[c]; ok {
		return alias
	}
	return ChainID(c)
}

// IsEVM reports whether addresses on this chain are 20-byte hex addresses
func (c ChainID) IsEVM() bool {
	switch NormalizeChainID(string(c)) {
	case ChainEthereum, ChainPolygon, ChainArbitrum, ChainOptimism, ChainBase, ChainBNB:
		return true
	default:
		return false
	}
}

// RankingType names the bucket under which rank entries are compared
type RankingType string

const (
	// Ranking24h compares performance over the last 24 hours
	Ranking24h RankingType = "24h"
	// Ranking7d compares performance over the last 7 days
	Ranking7d RankingType = "7d"
	// Ranking30d compares performance over the last 30 days
	Ranking30d RankingType = "30d"
)

// Environment tags the deployment a process runs in
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
	EnvProduction  Environment = "production"
)

// ParseEnvironment parses an APP_ENV value. ok is false for unknown values.
func ParseEnvironment(s string) (env Environment, ok bool) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case EnvDevelopment:
		return EnvDevelopment, true
	case EnvTest:
		return EnvTest, true
	case EnvProduction, "prod":
		return EnvProduction, true
	default:
		return "", false
	}
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
