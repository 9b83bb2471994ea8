package storage

import (
	"time"

	"github.com/defi-common/internal/monitor"
)

// Repositories groups every relational repository over one DBTX
type Repositories struct {
	Addresses      *AddressRepository
	Users          *UserRepository
	BalanceUpdates *BalanceUpdateRepository
	Performance    *PerformanceRepository
	Ranks          *RankRepository
	CoinRanks      *CoinRankRepository
	Blockchains    *BlockchainRepository
	Tokens         *TokenRepository
	TokenBalances  *TokenBalanceRepository
}

// NewRepositories binds all repositories to q. metrics may be nil.
func NewRepositories(q DBTX, metrics *monitor.Metrics) *Repositories {
	r := repo{q: q, metrics: metrics}
	return &Repositories{
		Addresses:      &AddressRepository{r},
		Users:          &UserRepository{r},
		BalanceUpdates: &BalanceUpdateRepository{r},
		Performance:    &PerformanceRepository{r},
		Ranks:          &RankRepository{r},
		CoinRanks:      &CoinRankRepository{r},
		Blockchains:    &BlockchainRepository{r},
		Tokens:         &TokenRepository{r},
		TokenBalances:  &TokenBalanceRepository{r},
	}
}

type repo struct {
	q       DBTX
	metrics *monitor.Metrics
}

// track records one operation; use as defer r.track(entity, action)(&err)
func (r repo) track(entity, action string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		r.metrics.ObserveOperation(monitor.StorePostgres, entity, action, start, *errp)
	}
}

// nullTime maps the zero time to SQL NULL
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
