package session

import (
	"context"
	"io"
	"testing"
	"time"

	"coophours/internal/domain"
	"coophours/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserFinder struct {
	users map[string]*models.User
}

func (s *stubUserFinder) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, ok := s.users[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func newTestManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()

	hash, err := HashPassword("secret")
	require.NoError(t, err)

	users := &stubUserFinder{users: map[string]*models.User{
		"alice": {ID: 1, Username: "alice", FirstName: "Alice", PasswordHash: hash},
	}}

	logger := zerolog.New(io.Discard)
	m := NewManager(NewMemoryStore(), users, models.SessionIdleTimeoutSeconds*time.Second, &logger)

	current := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }
	return m, &current
}

func TestLogin(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		session, err := m.Login(ctx, "alice", "secret")
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)
		assert.Equal(t, "alice", session.Username)
		assert.Equal(t, session.CreatedAt, session.LastActivity)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := m.Login(ctx, "alice", "nope")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("unknown user looks identical", func(t *testing.T) {
		_, err := m.Login(ctx, "mallory", "secret")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})
}

func TestAuthorizeIdleWindow(t *testing.T) {
	m, current := newTestManager(t)
	ctx := context.Background()

	session, err := m.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	t.Run("refresh just inside the window", func(t *testing.T) {
		*current = current.Add(179 * time.Second)
		refreshed, err := m.Authorize(ctx, session.Token)
		require.NoError(t, err)
		assert.Equal(t, *current, refreshed.LastActivity)
	})

	t.Run("refresh buys a full new window", func(t *testing.T) {
		*current = current.Add(179 * time.Second)
		_, err := m.Authorize(ctx, session.Token)
		require.NoError(t, err)
	})

	t.Run("expired past the window", func(t *testing.T) {
		*current = current.Add(181 * time.Second)
		_, err := m.Authorize(ctx, session.Token)
		assert.ErrorIs(t, err, domain.ErrSessionExpired)
	})

	t.Run("expired session stays dead", func(t *testing.T) {
		*current = current.Add(time.Second)
		_, err := m.Authorize(ctx, session.Token)
		assert.ErrorIs(t, err, domain.ErrSessionExpired)
	})
}

func TestAuthorizeEdgeCases(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		_, err := m.Authorize(ctx, "")
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := m.Authorize(ctx, "not-a-token")
		assert.ErrorIs(t, err, domain.ErrSessionExpired)
	})
}

func TestLogout(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	session, err := m.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, session.Token))

	_, err = m.Authorize(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestIsEquipmentManager(t *testing.T) {
	m, _ := newTestManager(t)

	session := &models.Session{Username: "alice"}
	managed := &models.Equipment{ID: 1, ManagerUsername: "alice"}
	other := &models.Equipment{ID: 2, ManagerUsername: "bob"}

	assert.True(t, m.IsEquipmentManager(session, managed))
	assert.False(t, m.IsEquipmentManager(session, other))
	assert.False(t, m.IsEquipmentManager(nil, managed))
	assert.False(t, m.IsEquipmentManager(session, nil))
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, VerifyPassword(hash, "hunter2"))
	assert.False(t, VerifyPassword(hash, "hunter3"))
	assert.False(t, VerifyPassword("not-a-hash", "hunter2"))
}
