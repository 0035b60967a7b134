package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/config"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store/memory"
)

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer(config.JWT{Secret: "test-secret", TTL: time.Hour})

	t.Run("Round trip", func(t *testing.T) {
		token, err := issuer.GenerateToken(7, models.RoleAdmin)
		require.NoError(t, err)

		claims, err := issuer.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, uint(7), claims.UserID)
		assert.True(t, claims.IsAdmin())
	})

	t.Run("Other secret", func(t *testing.T) {
		other := NewTokenIssuer(config.JWT{Secret: "another-secret", TTL: time.Hour})
		token, err := other.GenerateToken(7, models.RoleStaff)
		require.NoError(t, err)

		_, err = issuer.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		old := NewTokenIssuer(config.JWT{Secret: "test-secret", TTL: time.Hour})
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := old.GenerateToken(7, models.RoleStaff)
		require.NoError(t, err)

		_, err = issuer.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := issuer.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	st := memory.New()
	issuer := NewTokenIssuer(config.JWT{Secret: "test-secret", TTL: time.Hour})
	return NewService(st, issuer, audit.NewRecorder(st, st, "", log), log), st
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)

	user, err := svc.Register(ctx, " alice ", "s3cret!", models.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "s3cret!", user.PasswordHash)

	session, err := svc.Login(ctx, "alice", "s3cret!")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, user.ID, session.User.ID)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "bob", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	logs, err := st.ListAuditLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.ActionLogin, logs[0].ActionType)
	assert.Equal(t, models.ActionCreate, logs[1].ActionType)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.Register(ctx, "alice", "s3cret!", models.RoleStaff)
	require.NoError(t, err)

	cases := []struct {
		name, username, password, role string
	}{
		{"Empty username", "  ", "s3cret!", models.RoleStaff},
		{"Short password", "bob", "123", models.RoleStaff},
		{"Unknown role", "bob", "s3cret!", "owner"},
		{"Duplicate", "alice", "s3cret!", models.RoleStaff},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.username, tc.password, tc.role)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}
