package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	users     map[int64]User
	grants    map[int64]ApproverGrant
	nextUser  int64
	nextGrant int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User), grants: make(map[int64]ApproverGrant)}
}

func (r *memoryRepo) InsertUser(ctx context.Context, user User) (int64, error) {
	r.nextUser++
	user.ID = r.nextUser
	r.users[user.ID] = user
	return user.ID, nil
}

func (r *memoryRepo) GetUser(ctx context.Context, id int64) (User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (r *memoryRepo) GetUserByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepo) InsertGrant(ctx context.Context, grant ApproverGrant) (int64, error) {
	r.nextGrant++
	grant.ID = r.nextGrant
	r.grants[grant.ID] = grant
	return grant.ID, nil
}

func (r *memoryRepo) DeleteGrant(ctx context.Context, id int64) error {
	if _, ok := r.grants[id]; !ok {
		return ErrNotFound
	}
	delete(r.grants, id)
	return nil
}

func (r *memoryRepo) ListGrants(ctx context.Context, userID int64) ([]ApproverGrant, error) {
	var result []ApproverGrant
	for _, g := range r.grants {
		if g.UserID == userID {
			result = append(result, g)
		}
	}
	return result, nil
}

func (r *memoryRepo) HasGrant(ctx context.Context, userID, warehouseID int64, level int) (bool, error) {
	for _, g := range r.grants {
		if g.UserID == userID && g.WarehouseID == warehouseID && g.Level >= level {
			return true, nil
		}
	}
	return false, nil
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, " Gudang@Example.COM ", "Gudang Lead", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, "gudang@example.com", user.Email)
	require.Empty(t, user.PasswordHash, "hash never leaves the service")

	stored := repo.users[user.ID]
	require.NotEmpty(t, stored.PasswordHash)
	require.NotEqual(t, "s3cret-pass", stored.PasswordHash)

	verified, err := svc.VerifyPassword(ctx, "gudang@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, user.ID, verified.ID)

	_, err = svc.VerifyPassword(ctx, "gudang@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGrantAndRevoke(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "head@example.com", "Head", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.GrantApprover(ctx, user.ID, 2, 0)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.GrantApprover(ctx, 9999, 2, 1)
	require.ErrorIs(t, err, ErrNotFound)

	grant, err := svc.GrantApprover(ctx, user.ID, 2, 1)
	require.NoError(t, err)

	ok, err := svc.CanApprove(ctx, user.ID, 2, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.CanApprove(ctx, user.ID, 3, 1)
	require.NoError(t, err)
	require.False(t, ok, "grants are scoped per warehouse")

	require.NoError(t, svc.RevokeGrant(ctx, grant.ID))
	ok, err = svc.CanApprove(ctx, user.ID, 2, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanApproveLevelCoversLower(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "lead@example.com", "Lead", "s3cret-pass")
	require.NoError(t, err)
	_, err = svc.GrantApprover(ctx, user.ID, 2, 2)
	require.NoError(t, err)

	ok, err := svc.CanApprove(ctx, user.ID, 2, 1)
	require.NoError(t, err)
	require.True(t, ok, "a level 2 grant covers level 1 gates")

	ok, err = svc.CanApprove(ctx, user.ID, 2, 3)
	require.NoError(t, err)
	require.False(t, ok)
}
