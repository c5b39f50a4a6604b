package memory

import (
	"sync"

	"github.com/PabloGalante/folio-chat/internal/app/chat"
	"github.com/PabloGalante/folio-chat/internal/domain"
)

// SessionStore is the registry of live chat sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*chat.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*chat.Session),
	}
}

func (s *SessionStore) CreateSession(session *chat.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID()]; exists {
		return domain.ErrSessionExists
	}

	s.sessions[session.ID()] = session
	return nil
}

func (s *SessionStore) GetSession(id domain.SessionID) (*chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	return sess, nil
}

func (s *SessionStore) DeleteSession(id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) CountSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// ListSessions returns the live sessions in no particular order.
func (s *SessionStore) ListSessions() []*chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*chat.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}
