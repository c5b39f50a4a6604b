package memory

import (
	"sync"

	"github.com/PabloGalante/folio-chat/internal/domain"
)

// MessageStore holds the transcript of a single session in memory.
type MessageStore struct {
	mu       sync.RWMutex
	messages []*domain.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

func (s *MessageStore) Append(msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	return nil
}

func (s *MessageStore) List() ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *MessageStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	return nil
}
