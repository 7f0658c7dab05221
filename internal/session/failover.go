package session

import (
	"context"
	"sync/atomic"
	"time"

	"coophours/internal/domain"
	"coophours/internal/models"

	"github.com/rs/zerolog"
)

// FailoverStore serves sessions from the primary store and drops to the
// fallback when the primary errors, retrying the primary after a minute.
type FailoverStore struct {
	primary   domain.SessionStore
	fallback  domain.SessionStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverStore(primary, fallback domain.SessionStore, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverStore) Get(ctx context.Context, token string) (*models.Session, error) {
	if !f.isDown.Load() {
		session, err := f.primary.Get(ctx, token)
		if err == nil {
			return session, nil
		}
		f.logger.Error().Err(err).Msg("primary session store failed, falling back to memory")
		f.isDown.Store(true)
		f.lastCheck = time.Now()
	}

	// Try to recover after a minute.
	if f.isDown.Load() && time.Since(f.lastCheck) > time.Minute {
		session, err := f.primary.Get(ctx, token)
		if err == nil {
			f.isDown.Store(false)
			return session, nil
		}
		f.lastCheck = time.Now()
	}

	return f.fallback.Get(ctx, token)
}

func (f *FailoverStore) Set(ctx context.Context, session *models.Session) error {
	if !f.isDown.Load() {
		err := f.primary.Set(ctx, session)
		if err == nil {
			return nil
		}
		f.logger.Error().Err(err).Msg("primary session store failed, falling back to memory")
		f.isDown.Store(true)
		f.lastCheck = time.Now()
	}
	return f.fallback.Set(ctx, session)
}

func (f *FailoverStore) Delete(ctx context.Context, token string) error {
	if !f.isDown.Load() {
		err := f.primary.Delete(ctx, token)
		if err == nil {
			return nil
		}
		f.logger.Error().Err(err).Msg("primary session store failed, falling back to memory")
		f.isDown.Store(true)
		f.lastCheck = time.Now()
	}
	return f.fallback.Delete(ctx, token)
}
