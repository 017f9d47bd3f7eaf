package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokomas/goldpos/internal/db"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Seed(conn))
	return NewManager(conn, "test-secret", time.Hour, nil)
}

func TestLoginWithSeededAdmin(t *testing.T) {
	mgr := newTestManager(t)

	resp, err := mgr.Login("admin", "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "owner", resp.User.Role)
	assert.Equal(t, "default", resp.User.BranchID)

	claims, err := mgr.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, resp.User.ID, claims.Subject)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = mgr.Login("nobody", "admin")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	mgr := newTestManager(t)

	resp, err := mgr.Login("admin", "admin")
	require.NoError(t, err)

	other := NewManager(nil, "different-secret", time.Hour, nil)
	_, err = other.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = mgr.ValidateToken(resp.Token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCreateUserAndChangePassword(t *testing.T) {
	mgr := newTestManager(t)

	user, err := mgr.CreateUser("default", "kasir1", "rahasia", "Kasir Satu", "kasir")
	require.NoError(t, err)
	assert.Equal(t, "kasir", user.Role)

	_, err = mgr.Login("kasir1", "rahasia")
	require.NoError(t, err)

	require.NoError(t, mgr.ChangePassword(user.ID, "rahasia", "rahasia-baru"))
	_, err = mgr.Login("kasir1", "rahasia")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = mgr.Login("kasir1", "rahasia-baru")
	require.NoError(t, err)

	_, err = mgr.CreateUser("default", "x", "y", "Z", "superuser")
	assert.Error(t, err)
}
