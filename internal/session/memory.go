package session

import (
	"context"
	"sync"

	"coophours/internal/models"
)

// MemoryStore is the in-process fallback when Redis is absent or down.
// Expired sessions linger until their next Authorize touches them, which is
// acceptable: sessions are cheap and short-lived.
type MemoryStore struct {
	sessions sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(ctx context.Context, token string) (*models.Session, error) {
	val, ok := m.sessions.Load(token)
	if !ok {
		return nil, nil
	}
	stored := val.(models.Session)
	return &stored, nil
}

func (m *MemoryStore) Set(ctx context.Context, session *models.Session) error {
	m.sessions.Store(session.Token, *session)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, token string) error {
	m.sessions.Delete(token)
	return nil
}
