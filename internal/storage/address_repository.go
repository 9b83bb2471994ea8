package storage

import (
	"context"
	"errors"
	"strconv"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/models"
	"github.com/defi-common/internal/schema"
	"github.com/defi-common/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AddressRepository handles address data persistence
type AddressRepository struct {
	repo
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(q DBTX) *AddressRepository {
	return &AddressRepository{repo{q: q}}
}

const addressColumns = `id, time_created, time_updated, address, blockchain_type`

// Create inserts an address and fills in its generated id and timestamps.
// The address is normalized for its chain; duplicates of (address, blockchain_type) are allowed.
func (r *AddressRepository) Create(ctx context.Context, address *models.Address) (err error) {
	defer r.track(schema.TableAddresses, "insert")(&err)

	if address.Address == "" {
		return apperrors.NewInvalidParameterError("address", "must not be empty")
	}
	chain := types.NormalizeChainID(address.BlockchainType)
	address.BlockchainType = string(chain)
	address.Address = models.NormalizeAddress(address.Address, chain)

	query := `
		INSERT INTO addresses (address, blockchain_type)
		VALUES ($1, $2)
		RETURNING id, time_created, time_updated
	`

	err = r.q.QueryRow(ctx, query, address.Address, address.BlockchainType).
		Scan(&address.ID, &address.TimeCreated, &address.TimeUpdated)
	if err != nil {
		return classifyPgError(schema.TableAddresses, "insert", err)
	}
	return nil
}

// GetByID retrieves an address by primary key
func (r *AddressRepository) GetByID(ctx context.Context, id int64) (_ *models.Address, err error) {
	defer r.track(schema.TableAddresses, "get")(&err)

	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`

	addr, err := scanAddress(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(schema.TableAddresses, strconv.FormatInt(id, 10))
		}
		return nil, classifyPgError(schema.TableAddresses, "get", err)
	}
	return addr, nil
}

// FindByNaturalKey returns every row for (address, blockchain_type), oldest first.
// More than one row means the writer inserted duplicates.
func (r *AddressRepository) FindByNaturalKey(ctx context.Context, address string, chain types.ChainID) (_ []*models.Address, err error) {
	defer r.track(schema.TableAddresses, "find")(&err)

	chain = types.NormalizeChainID(string(chain))
	query := `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE address = $1 AND blockchain_type = $2
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, models.NormalizeAddress(address, chain), string(chain))
	if err != nil {
		return nil, classifyPgError(schema.TableAddresses, "find", err)
	}
	return collectAddresses(rows)
}

// ListByUser returns the addresses a user tracks
func (r *AddressRepository) ListByUser(ctx context.Context, userID uuid.UUID) (_ []*models.Address, err error) {
	defer r.track(schema.TableAddresses, "list")(&err)

	query := `
		SELECT a.id, a.time_created, a.time_updated, a.address, a.blockchain_type
		FROM addresses a
		JOIN users_to_addresses ua ON ua.address_id = a.id
		WHERE ua.user_id = $1
		ORDER BY a.id
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, classifyPgError(schema.TableAddresses, "list", err)
	}
	return collectAddresses(rows)
}

func scanAddress(row pgx.Row) (*models.Address, error) {
	var a models.Address
	err := row.Scan(&a.ID, &a.TimeCreated, &a.TimeUpdated, &a.Address, &a.BlockchainType)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAddresses(rows pgx.Rows) ([]*models.Address, error) {
	defer rows.Close()

	var addresses []*models.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, classifyPgError(schema.TableAddresses, "scan", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(schema.TableAddresses, "scan", err)
	}
	return addresses, nil
}
