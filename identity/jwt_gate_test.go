package identity

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/models"
	"github.com/cppla/hongbao/utils"
)

type memUsers struct {
	mu    sync.Mutex
	users []models.User
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return apperr.ErrUsernameTaken
		}
		if existing.Email == u.Email {
			return apperr.ErrEmailTaken
		}
	}
	u.ID = uint(len(m.users) + 1)
	m.users = append(m.users, *u)
	return nil
}

func (m *memUsers) ByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return models.User{}, apperr.ErrUserNotFound
}

func (m *memUsers) ByID(_ context.Context, id uint) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == 0 || int(id) > len(m.users) {
		return models.User{}, apperr.ErrUserNotFound
	}
	return m.users[id-1], nil
}

func (m *memUsers) SetVisibility(ctx context.Context, id uint, public bool) (models.User, error) {
	if _, err := m.ByID(ctx, id); err != nil {
		return models.User{}, err
	}
	m.mu.Lock()
	m.users[id-1].IsPublic = public
	u := m.users[id-1]
	m.mu.Unlock()
	return u, nil
}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newGate(t *testing.T) (*JWTGate, *testClock) {
	t.Helper()
	clk := &testClock{t: time.Date(2025, time.January, 29, 12, 0, 0, 0, time.UTC)}
	signer := utils.NewTokenSigner("test-secret", 24*time.Hour, clk.Now)
	gate := NewJWTGate(&memUsers{}, signer, utils.BcryptHasher{Cost: 4}, utils.NewBlacklist(nil, clk.Now))
	return gate, clk
}

func TestRegisterAndConflicts(t *testing.T) {
	ctx := context.Background()
	gate, _ := newGate(t)

	id, err := gate.Register(ctx, Registration{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = gate.Register(ctx, Registration{Username: "alice2", Email: "alice@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrEmailTaken)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	_, err = gate.Register(ctx, Registration{Username: "alice", Email: "a2@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrUsernameTaken)
}

func TestRegisterValidation(t *testing.T) {
	gate, _ := newGate(t)
	cases := []struct {
		name string
		in   Registration
		msg  string
	}{
		{"short password", Registration{Username: "bob", Email: "bob@x.com", Password: "12345"}, "password must be at least 6 characters"},
		{"missing username", Registration{Email: "bob@x.com", Password: "secret1"}, "username is required"},
		{"bad email", Registration{Username: "bob", Email: "bob", Password: "secret1"}, "email is not valid"},
		{"missing password", Registration{Username: "bob", Email: "bob@x.com"}, "password is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := gate.Register(context.Background(), tc.in)
			require.Error(t, err)
			e := apperr.As(err)
			assert.Equal(t, apperr.KindValidation, e.Kind)
			assert.Equal(t, tc.msg, e.Message)
		})
	}
}

func TestAuthenticateAndResolve(t *testing.T) {
	ctx := context.Background()
	gate, clk := newGate(t)
	_, err := gate.Register(ctx, Registration{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, _, err = gate.Authenticate(ctx, "alice@x.com", "wrong-pass")
	assert.ErrorIs(t, err, apperr.ErrWrongPassword)

	_, _, err = gate.Authenticate(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)

	token, user, err := gate.Authenticate(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	who, err := gate.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, who.UserID)
	assert.Equal(t, "alice@x.com", who.Email)

	_, err = gate.Resolve(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrMissingCredential)
	_, err = gate.Resolve(ctx, token+"x")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)

	clk.t = clk.t.Add(24*time.Hour + time.Second)
	_, err = gate.Resolve(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential, "token expires after 24h")
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	gate, _ := newGate(t)
	_, err := gate.Register(ctx, Registration{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)
	token, _, err := gate.Authenticate(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, gate.Logout(ctx, token))
	_, err = gate.Resolve(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)

	assert.ErrorIs(t, gate.Logout(ctx, "garbage"), apperr.ErrInvalidCredential)
}

func TestVisibilityAndMe(t *testing.T) {
	ctx := context.Background()
	gate, _ := newGate(t)
	id, err := gate.Register(ctx, Registration{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)

	me, err := gate.Me(ctx, id)
	require.NoError(t, err)
	assert.False(t, me.IsPublic)

	me, err = gate.SetVisibility(ctx, id, true)
	require.NoError(t, err)
	assert.True(t, me.IsPublic)
}

func TestLocalGate(t *testing.T) {
	var g Gate = LocalGate{}
	who, err := g.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, LocalOwnerID, who.UserID)
	assert.False(t, g.RequiresCredential())
}
