package identity

import (
	"errors"
	"time"
)

// User is an operator known to the system. Login flows live in the
// surrounding platform; this package only stores credentials and approval
// capabilities.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// ApproverGrant authorises a user to approve transfers at a given level for
// one warehouse.
type ApproverGrant struct {
	ID          int64
	UserID      int64
	WarehouseID int64
	Level       int
	GrantedAt   time.Time
}

var (
	// ErrNotFound indicates the user or grant does not exist.
	ErrNotFound = errors.New("identity: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("identity: invalid input")
	// ErrInvalidCredentials indicates a password mismatch.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
)
