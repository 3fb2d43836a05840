package service

import (
	"context"
	"log"
	"sync"
)

// SessionManager keeps one session per Telegram user.
type SessionManager struct {
	store    DocumentStore
	provider IdentityProvider
	cfg      SessionConfig

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewSessionManager(store DocumentStore, provider IdentityProvider, cfg SessionConfig) *SessionManager {
	return &SessionManager{
		store:    store,
		provider: provider,
		cfg:      cfg,
		sessions: make(map[int64]*Session),
	}
}

// Open returns the user's session, starting one on first contact. A session
// that is still loading or failed to sign in is returned as is; callers check
// State before using it.
func (m *SessionManager) Open(ctx context.Context, cred Credential) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[cred.TelegramID]; ok {
		m.mu.Unlock()
		return s
	}
	s := NewSession(m.store, m.cfg)
	m.sessions[cred.TelegramID] = s
	m.mu.Unlock()

	log.Printf("[info] open session user=%d", cred.TelegramID)
	if err := s.Start(ctx, m.provider, cred); err != nil {
		log.Printf("start session user=%d: %v", cred.TelegramID, err)
	}
	return s
}

// Lookup returns an existing session without starting one.
func (m *SessionManager) Lookup(telegramID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[telegramID]
	return s, ok
}

// Close signs the user out, flushing pending saves.
func (m *SessionManager) Close(telegramID int64) bool {
	m.mu.Lock()
	s, ok := m.sessions[telegramID]
	delete(m.sessions, telegramID)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	log.Printf("[info] closed session user=%d", telegramID)
	return true
}

// CloseAll ends every session; used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[int64]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
