// Package session owns authenticated sessions: who is logged in, when the
// idle window runs out, and which member may manage which equipment.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coophours/internal/domain"
	"coophours/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UserFinder is the slice of the user store the manager needs for login.
type UserFinder interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type Manager struct {
	store       domain.SessionStore
	users       UserFinder
	idleTimeout time.Duration
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewManager(store domain.SessionStore, users UserFinder, idleTimeout time.Duration, logger *zerolog.Logger) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = models.SessionIdleTimeoutSeconds * time.Second
	}
	return &Manager{
		store:       store,
		users:       users,
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// Login verifies credentials and opens a fresh session. Unknown usernames
// and wrong passwords are indistinguishable to the caller.
func (m *Manager) Login(ctx context.Context, username, password string) (*models.Session, error) {
	user, err := m.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			VerifyPassword(dummyHash, password)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	if !VerifyPassword(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}

	now := m.now()
	session := &models.Session{
		Token:        uuid.NewString(),
		Username:     user.Username,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := m.store.Set(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	m.logger.Info().Str("username", username).Msg("session opened")
	return session, nil
}

// Authorize validates the token and refreshes the idle window. A session is
// expired exactly when this call observes a gap over the idle timeout; there
// is no background sweeper.
func (m *Manager) Authorize(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	session, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if session == nil {
		return nil, domain.ErrSessionExpired
	}

	now := m.now()
	if now.Sub(session.LastActivity) > m.idleTimeout {
		if err := m.store.Delete(ctx, token); err != nil {
			m.logger.Warn().Err(err).Msg("failed to drop expired session")
		}
		return nil, domain.ErrSessionExpired
	}

	session.LastActivity = now
	if err := m.store.Set(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return session, nil
}

// Logout closes the session; any later Authorize with the token fails.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrUnauthenticated
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	m.logger.Info().Msg("session closed")
	return nil
}

// IsEquipmentManager reports whether the session belongs to the member the
// equipment names as its manager. Capability-based: no role hierarchy.
func (m *Manager) IsEquipmentManager(session *models.Session, equipment *models.Equipment) bool {
	if session == nil || equipment == nil {
		return false
	}
	return session.Username == equipment.ManagerUsername
}
