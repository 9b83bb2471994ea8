package schema

import "github.com/defi-common/internal/models"

// Table names
const (
	TableAddresses        = "addresses"
	TableUsers            = "users"
	TableUsersToAddresses = "users_to_addresses"
	TableAddressUpdates   = "address_updates"
	TablePerformanceRuns  = "performance_run_results"
	TablePerformanceRank  = "address_performance_rank"
	TableCoinRank         = "coin_rank"
	TableBlockchains      = "blockchains"
	TableTokens           = "tokens"
	TableTokenBalances    = "token_balances"
)

func addressFK() ForeignKey {
	return ForeignKey{Column: "address_id", RefTable: TableAddresses, RefColumn: "id"}
}

// PortfolioTables returns the portfolio table declarations
func PortfolioTables() []Table {
	return []Table{
		{
			Name:  TableAddresses,
			Model: (*models.Address)(nil),
			Indexes: []Index{
				{Name: "idx_addresses_address_blockchain_type", Columns: []string{"address", "blockchain_type"}},
			},
		},
		{
			Name:  TableUsers,
			Model: (*models.User)(nil),
		},
		{
			Name:  TableUsersToAddresses,
			Model: (*models.UserAddress)(nil),
			ForeignKeys: []ForeignKey{
				{Column: "user_id", RefTable: TableUsers, RefColumn: "id"},
				addressFK(),
			},
			Indexes: []Index{
				{Name: "idx_users_to_addresses_address_id", Columns: []string{"address_id"}},
			},
		},
		{
			Name:        TableAddressUpdates,
			Model:       (*models.BalanceUpdate)(nil),
			ForeignKeys: []ForeignKey{addressFK()},
			Indexes: []Index{
				{Name: "idx_address_updates_address_id_time", Columns: []string{"address_id", "time"}},
			},
		},
		{
			Name:        TablePerformanceRuns,
			Model:       (*models.PerformanceResult)(nil),
			ForeignKeys: []ForeignKey{addressFK()},
			Indexes: []Index{
				{Name: "idx_performance_run_results_address_id", Columns: []string{"address_id"}},
			},
		},
		{
			Name:        TablePerformanceRank,
			Model:       (*models.RankEntry)(nil),
			ForeignKeys: []ForeignKey{addressFK()},
			Checks: []Check{
				{Name: "address_performance_rank_rank_check", Expr: "rank > 0"},
			},
			Indexes: []Index{
				{Name: "idx_address_performance_rank_address_id", Columns: []string{"address_id"}},
				{Name: "idx_address_performance_rank_type_rank", Columns: []string{"ranking_type", "rank"}},
			},
		},
		{
			Name:  TableCoinRank,
			Model: (*models.CoinRank)(nil),
			Checks: []Check{
				{Name: "coin_rank_rank_check", Expr: "rank > 0"},
			},
			Indexes: []Index{
				{Name: "idx_coin_rank_type_rank", Columns: []string{"ranking_type", "rank"}},
			},
		},
		{
			Name:  TableBlockchains,
			Model: (*models.Blockchain)(nil),
		},
		{
			Name:  TableTokens,
			Model: (*models.Token)(nil),
			ForeignKeys: []ForeignKey{
				{Column: "blockchain_id", RefTable: TableBlockchains, RefColumn: "id"},
			},
			Indexes: []Index{
				{Name: "idx_tokens_blockchain_id", Columns: []string{"blockchain_id"}},
				{Name: "idx_tokens_symbol", Columns: []string{"symbol"}},
			},
		},
		{
			Name:  TableTokenBalances,
			Model: (*models.TokenBalance)(nil),
			ForeignKeys: []ForeignKey{
				addressFK(),
				{Column: "token_id", RefTable: TableTokens, RefColumn: "id"},
			},
			Indexes: []Index{
				{Name: "idx_token_balances_address_id", Columns: []string{"address_id"}},
				{Name: "idx_token_balances_token_id", Columns: []string{"token_id"}},
			},
		},
	}
}

// Default returns the metadata for every portfolio table
func Default() *Metadata {
	return MustNewMetadata(PortfolioTables()...)
}
