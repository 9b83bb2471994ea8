package storage

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/models"
	"github.com/defi-common/internal/schema"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository handles user data persistence and address tracking links
type UserRepository struct {
	repo
}

// NewUserRepository creates a new user repository
func NewUserRepository(q DBTX) *UserRepository {
	return &UserRepository{repo{q: q}}
}

const userColumns = `id, email, hashed_password, is_active, is_superuser, is_verified, created, updated`

// Create creates a new user, generating an ID when none is set
func (r *UserRepository) Create(ctx context.Context, user *models.User) (err error) {
	defer r.track(schema.TableUsers, "insert")(&err)

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if strings.TrimSpace(user.Email) == "" {
		return apperrors.NewInvalidParameterError("email", "must not be empty")
	}

	query := `
		INSERT INTO users (id, email, hashed_password, is_active, is_superuser, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created, updated
	`

	err = r.q.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.HashedPassword,
		user.IsActive,
		user.IsSuperuser,
		user.IsVerified,
	).Scan(&user.Created, &user.Updated)
	if err != nil {
		return classifyPgError(schema.TableUsers, "insert", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (_ *models.User, err error) {
	defer r.track(schema.TableUsers, "get")(&err)

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id.String(), id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (_ *models.User, err error) {
	defer r.track(schema.TableUsers, "get")(&err)

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email, email)
}

func (r *UserRepository) getOne(ctx context.Context, query, key string, arg any) (*models.User, error) {
	var u models.User
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.HashedPassword,
		&u.IsActive,
		&u.IsSuperuser,
		&u.IsVerified,
		&u.Created,
		&u.Updated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(schema.TableUsers, key)
		}
		return nil, classifyPgError(schema.TableUsers, "get", err)
	}
	return &u, nil
}

// Update writes every mutable column and refreshes the updated timestamp
func (r *UserRepository) Update(ctx context.Context, user *models.User) (err error) {
	defer r.track(schema.TableUsers, "update")(&err)

	query := `
		UPDATE users
		SET email = $2, hashed_password = $3, is_active = $4,
			is_superuser = $5, is_verified = $6, updated = now()
		WHERE id = $1
		RETURNING updated
	`

	err = r.q.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.HashedPassword,
		user.IsActive,
		user.IsSuperuser,
		user.IsVerified,
	).Scan(&user.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFoundError(schema.TableUsers, user.ID.String())
		}
		return classifyPgError(schema.TableUsers, "update", err)
	}
	return nil
}

// TrackAddress links a user to an address. Linking twice is a no-op.
func (r *UserRepository) TrackAddress(ctx context.Context, userID uuid.UUID, addressID int64) (err error) {
	defer r.track(schema.TableUsersToAddresses, "insert")(&err)

	query := `
		INSERT INTO users_to_addresses (user_id, address_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, address_id) DO NOTHING
	`

	if _, err = r.q.Exec(ctx, query, userID, addressID); err != nil {
		return classifyPgError(schema.TableUsersToAddresses, "insert", err)
	}
	return nil
}

// UntrackAddress removes the link between a user and an address.
// It reports whether a link existed; neither row is deleted.
func (r *UserRepository) UntrackAddress(ctx context.Context, userID uuid.UUID, addressID int64) (_ bool, err error) {
	defer r.track(schema.TableUsersToAddresses, "delete")(&err)

	query := `DELETE FROM users_to_addresses WHERE user_id = $1 AND address_id = $2`

	tag, err := r.q.Exec(ctx, query, userID, addressID)
	if err != nil {
		return false, classifyPgError(schema.TableUsersToAddresses, "delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListAddressIDs returns the IDs of the addresses a user tracks
func (r *UserRepository) ListAddressIDs(ctx context.Context, userID uuid.UUID) (_ []int64, err error) {
	defer r.track(schema.TableUsersToAddresses, "list")(&err)

	query := `SELECT address_id FROM users_to_addresses WHERE user_id = $1 ORDER BY address_id`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, classifyPgError(schema.TableUsersToAddresses, "list", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, classifyPgError(schema.TableUsersToAddresses, "scan", err)
	}
	return ids, nil
}
