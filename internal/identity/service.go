package identity

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	InsertUser(ctx context.Context, user User) (int64, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	InsertGrant(ctx context.Context, grant ApproverGrant) (int64, error)
	DeleteGrant(ctx context.Context, id int64) error
	ListGrants(ctx context.Context, userID int64) ([]ApproverGrant, error)
	HasGrant(ctx context.Context, userID, warehouseID int64, level int) (bool, error)
}

// Service manages users and approver capabilities.
type Service struct {
	repo RepositoryPort
}

// NewService constructs an identity service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateUser registers a user with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, email, name, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || name == "" || password == "" {
		return User{}, ErrValidation
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user := User{Email: email, Name: name, PasswordHash: string(hash)}
	id, err := s.repo.InsertUser(ctx, user)
	if err != nil {
		return User{}, err
	}
	user.ID = id
	user.PasswordHash = ""
	return user, nil
}

// VerifyPassword checks a password against the stored hash.
func (s *Service) VerifyPassword(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	user.PasswordHash = ""
	return user, nil
}

// GrantApprover authorises a user to approve at the given warehouse and level.
func (s *Service) GrantApprover(ctx context.Context, userID, warehouseID int64, level int) (ApproverGrant, error) {
	if userID == 0 || warehouseID == 0 || level <= 0 {
		return ApproverGrant{}, ErrValidation
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return ApproverGrant{}, err
	}
	grant := ApproverGrant{UserID: userID, WarehouseID: warehouseID, Level: level}
	id, err := s.repo.InsertGrant(ctx, grant)
	if err != nil {
		return ApproverGrant{}, err
	}
	grant.ID = id
	return grant, nil
}

// RevokeGrant removes an approver grant.
func (s *Service) RevokeGrant(ctx context.Context, grantID int64) error {
	return s.repo.DeleteGrant(ctx, grantID)
}

// ListGrants returns all grants held by a user.
func (s *Service) ListGrants(ctx context.Context, userID int64) ([]ApproverGrant, error) {
	return s.repo.ListGrants(ctx, userID)
}

// CanApprove reports whether the user may approve transfers at the given
// warehouse and approval level. This is the capability check the approval
// chain consumes.
func (s *Service) CanApprove(ctx context.Context, userID, warehouseID int64, level int) (bool, error) {
	if userID == 0 || warehouseID == 0 {
		return false, nil
	}
	return s.repo.HasGrant(ctx, userID, warehouseID, level)
}
