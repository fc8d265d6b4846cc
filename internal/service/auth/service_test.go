package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository/repotest"
	jwtauth "github.com/jwalitptl/institute-api/pkg/auth"
	"github.com/jwalitptl/institute-api/pkg/errors"
	"github.com/jwalitptl/institute-api/pkg/security"
)

const password = "correct-horse"

func newTestService(t *testing.T) (*Service, *repotest.Store, *model.User) {
	t.Helper()
	store := repotest.NewStore()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	svc := NewService(store.Users, store.Tokens, hasher, jwtauth.NewJWTManager("test-secret", "test", time.Hour))

	hash, err := hasher.Hash(password)
	require.NoError(t, err)
	user := store.NewUser(model.RoleProfessional)
	user.PasswordHash = hash
	require.NoError(t, store.Users.Update(context.Background(), user))
	return svc, store, user
}

func TestLogin(t *testing.T) {
	svc, store, user := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, model.LoginRequest{Email: " " + user.Email + " ", Password: password})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	stored, err := store.Users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginFailures(t *testing.T) {
	svc, store, user := newTestService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, model.LoginRequest{Email: user.Email, Password: "wrong-password"})
	assert.True(t, errors.Is(err, errors.KindUnauthorized))

	_, err = svc.Login(ctx, model.LoginRequest{Email: "nobody@example.com", Password: password})
	assert.True(t, errors.Is(err, errors.KindUnauthorized))
	assert.Equal(t, invalidCredentials, errors.PublicMessage(err), "unknown email looks like a wrong password")

	user.Active = false
	require.NoError(t, store.Users.Update(ctx, user))
	_, err = svc.Login(ctx, model.LoginRequest{Email: user.Email, Password: password})
	assert.True(t, errors.Is(err, errors.KindUnauthorized))
}

func TestAuthenticateAndLogout(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, model.LoginRequest{Email: user.Email, Password: password})
	require.NoError(t, err)

	claims, actor, err := svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, actor.UserID)
	assert.Equal(t, model.RoleProfessional, actor.Role)

	require.NoError(t, svc.Logout(ctx, claims))

	_, _, err = svc.Authenticate(ctx, resp.Token)
	assert.True(t, errors.Is(err, errors.KindUnauthorized), "revoked token")
}

func TestAuthenticateRejectsDeactivatedUser(t *testing.T) {
	svc, store, user := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, model.LoginRequest{Email: user.Email, Password: password})
	require.NoError(t, err)

	user.Active = false
	require.NoError(t, store.Users.Update(ctx, user))

	_, _, err = svc.Authenticate(ctx, resp.Token)
	assert.True(t, errors.Is(err, errors.KindUnauthorized))
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, err := svc.Authenticate(context.Background(), "not-a-token")
	assert.True(t, errors.Is(err, errors.KindUnauthorized))
}

func TestChangePassword(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()
	actor := repotest.ActorFor(user)

	err := svc.ChangePassword(ctx, actor, model.ChangePasswordRequest{CurrentPassword: "nope-nope", NewPassword: "brand-new-pass"})
	assert.True(t, errors.Is(err, errors.KindBadRequest))

	require.NoError(t, svc.ChangePassword(ctx, actor, model.ChangePasswordRequest{CurrentPassword: password, NewPassword: "brand-new-pass"}))

	_, err = svc.Login(ctx, model.LoginRequest{Email: user.Email, Password: "brand-new-pass"})
	assert.NoError(t, err)
}

func TestEnsureAdmin(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsureAdmin(ctx, "", "", "Admin")
	assert.Error(t, err, "bootstrap credentials are required when no admin exists")

	created, err := svc.EnsureAdmin(ctx, "Admin@Example.com", "admin-password", "Admin")
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := store.Users.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.NotEqual(t, uuid.Nil, admin.ID)

	created, err = svc.EnsureAdmin(ctx, "other@example.com", "admin-password", "Other")
	require.NoError(t, err)
	assert.False(t, created)
}
