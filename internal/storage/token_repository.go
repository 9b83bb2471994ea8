package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/models"
	"github.com/defi-common/internal/schema"
	"github.com/defi-common/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// BlockchainRepository persists the chain registry
type BlockchainRepository struct {
	repo
}

// NewBlockchainRepository creates a new blockchain repository
func NewBlockchainRepository(q DBTX) *BlockchainRepository {
	return &BlockchainRepository{repo{q: q}}
}

// Create registers a chain by name. Names are unique.
func (r *BlockchainRepository) Create(ctx context.Context, b *models.Blockchain) (err error) {
	defer r.track(schema.TableBlockchains, "insert")(&err)

	if strings.TrimSpace(b.Name) == "" {
		return apperrors.NewInvalidParameterError("name", "must not be empty")
	}

	query := `INSERT INTO blockchains (name) VALUES ($1) RETURNING id`
	if err = r.q.QueryRow(ctx, query, b.Name).Scan(&b.ID); err != nil {
		return classifyPgError(schema.TableBlockchains, "insert", err)
	}
	return nil
}

// GetByName retrieves a chain by its unique name
func (r *BlockchainRepository) GetByName(ctx context.Context, name string) (_ *models.Blockchain, err error) {
	defer r.track(schema.TableBlockchains, "get")(&err)

	var b models.Blockchain
	err = r.q.QueryRow(ctx, `SELECT id, name FROM blockchains WHERE name = $1`, name).Scan(&b.ID, &b.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(schema.TableBlockchains, name)
		}
		return nil, classifyPgError(schema.TableBlockchains, "get", err)
	}
	return &b, nil
}

// TokenRepository persists token metadata
type TokenRepository struct {
	repo
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(q DBTX) *TokenRepository {
	return &TokenRepository{repo{q: q}}
}

const tokenColumns = `id, symbol, blockchain_id, address, decimals`

// Create inserts a token. Contract addresses on EVM chains must be 20-byte hex
// and are stored lowercased.
func (r *TokenRepository) Create(ctx context.Context, t *models.Token) (err error) {
	defer r.track(schema.TableTokens, "insert")(&err)

	if t.Decimals < 0 {
		return apperrors.NewInvalidParameterError("decimals", "must not be negative")
	}

	var chainName string
	err = r.q.QueryRow(ctx, `SELECT name FROM blockchains WHERE id = $1`, t.BlockchainID).Scan(&chainName)
	switch {
	case err == nil:
		chain := types.NormalizeChainID(chainName)
		if chain.IsEVM() && !common.IsHexAddress(t.Address) {
			return apperrors.NewInvalidParameterError("address", "not a valid EVM contract address: "+t.Address)
		}
		t.Address = models.NormalizeAddress(t.Address, chain)
	case errors.Is(err, pgx.ErrNoRows):
		// unknown chain: the foreign key rejects the insert below
	default:
		return classifyPgError(schema.TableBlockchains, "get", err)
	}

	query := `
		INSERT INTO tokens (symbol, blockchain_id, address, decimals)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err = r.q.QueryRow(ctx, query, t.Symbol, t.BlockchainID, t.Address, t.Decimals).Scan(&t.ID)
	if err != nil {
		return classifyPgError(schema.TableTokens, "insert", err)
	}
	return nil
}

// GetByID retrieves a token by primary key
func (r *TokenRepository) GetByID(ctx context.Context, id int64) (_ *models.Token, err error) {
	defer r.track(schema.TableTokens, "get")(&err)

	var t models.Token
	err = r.q.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id).
		Scan(&t.ID, &t.Symbol, &t.BlockchainID, &t.Address, &t.Decimals)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(schema.TableTokens, strconv.FormatInt(id, 10))
		}
		return nil, classifyPgError(schema.TableTokens, "get", err)
	}
	return &t, nil
}

// FindBySymbol returns every token with the symbol across chains
func (r *TokenRepository) FindBySymbol(ctx context.Context, symbol string) (_ []*models.Token, err error) {
	defer r.track(schema.TableTokens, "find")(&err)

	rows, err := r.q.Query(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE symbol = $1 ORDER BY blockchain_id, id`, symbol)
	if err != nil {
		return nil, classifyPgError(schema.TableTokens, "find", err)
	}
	defer rows.Close()

	var tokens []*models.Token
	for rows.Next() {
		var t models.Token
		if err := rows.Scan(&t.ID, &t.Symbol, &t.BlockchainID, &t.Address, &t.Decimals); err != nil {
			return nil, classifyPgError(schema.TableTokens, "scan", err)
		}
		tokens = append(tokens, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(schema.TableTokens, "scan", err)
	}
	return tokens, nil
}

// TokenBalanceRepository persists per-token holding snapshots
type TokenBalanceRepository struct {
	repo
}

// NewTokenBalanceRepository creates a new token balance repository
func NewTokenBalanceRepository(q DBTX) *TokenBalanceRepository {
	return &TokenBalanceRepository{repo{q: q}}
}

// Create inserts a snapshot. A nil Price is stored as NULL.
func (r *TokenBalanceRepository) Create(ctx context.Context, b *models.TokenBalance) (err error) {
	defer r.track(schema.TableTokenBalances, "insert")(&err)

	query := `
		INSERT INTO token_balances (time, address_id, token_id, amount, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err = r.q.QueryRow(ctx, query, nullTime(b.Time), b.AddressID, b.TokenID, b.Amount, b.Price).Scan(&b.ID)
	if err != nil {
		return classifyPgError(schema.TableTokenBalances, "insert", err)
	}
	return nil
}

// ListByAddress returns an address's snapshots, newest first. limit <= 0 returns all.
func (r *TokenBalanceRepository) ListByAddress(ctx context.Context, addressID int64, limit int) (_ []*models.TokenBalance, err error) {
	defer r.track(schema.TableTokenBalances, "list")(&err)

	query := `
		SELECT id, time, address_id, token_id, amount, price
		FROM token_balances
		WHERE address_id = $1
		ORDER BY time DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, addressID, sqlLimit(limit))
	if err != nil {
		return nil, classifyPgError(schema.TableTokenBalances, "list", err)
	}
	defer rows.Close()

	var balances []*models.TokenBalance
	for rows.Next() {
		var b models.TokenBalance
		if err := rows.Scan(&b.ID, &b.Time, &b.AddressID, &b.TokenID, &b.Amount, &b.Price); err != nil {
			return nil, classifyPgError(schema.TableTokenBalances, "scan", err)
		}
		balances = append(balances, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(schema.TableTokenBalances, "scan", err)
	}
	return balances, nil
}
