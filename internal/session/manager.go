package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"docqa/internal/helper"
	"docqa/internal/rag"
)

var ErrSessionNotFound = errors.New("session not found")

// Manager owns the live sessions. All of them share one engine and history store.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	engine   *rag.Engine
	history  HistoryStore
}

func NewManager(engine *rag.Engine, history HistoryStore) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		engine:   engine,
		history:  history,
	}
}

// Create starts a session. It can answer right away when the collection
// already holds records from an earlier run.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	n, err := m.engine.Count(ctx)
	if err != nil {
		return nil, err
	}

	s := newSession(id, m.engine, m.history, n > 0)
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	log.Debug().Str("session", id).Bool("ready", n > 0).Msg("Created session")
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// GetOrCreate returns the session for id, or a new one when id is unknown.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if s, err := m.Get(id); err == nil {
		return s, nil
	}
	return m.Create(ctx)
}

// Destroy drops the session and its history. A session with a request in
// flight is left alone and ErrSessionBusy is returned. A destroyed session
// stays locked, so stale references cannot write to its history.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if err := s.acquire(); err != nil {
		m.mu.Unlock()
		return err
	}
	delete(m.sessions, id)
	m.mu.Unlock()
	return m.history.Clear(ctx, id)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
