package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is an account record. Column layout matches the auth layer that owns it;
// this package only stores and reads it.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email          string    `bun:"email,type:varchar(320),notnull,unique" json:"email"`
	HashedPassword string    `bun:"hashed_password,type:varchar(1024),notnull" json:"-"`
	IsActive       bool      `bun:"is_active,notnull,default:true" json:"isActive"`
	IsSuperuser    bool      `bun:"is_superuser,notnull,default:false" json:"isSuperuser"`
	IsVerified     bool      `bun:"is_verified,notnull,default:false" json:"isVerified"`
	Created        time.Time `bun:"created,type:timestamptz,nullzero,default:current_timestamp" json:"created"`
	Updated        time.Time `bun:"updated,type:timestamptz,nullzero,default:current_timestamp" json:"updated"`
}

// NewUser returns an active, unverified user with a fresh random ID
func NewUser(email, hashedPassword string) *User {
	return &User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: hashedPassword,
		IsActive:       true,
	}
}
