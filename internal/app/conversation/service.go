// Package conversation manages the set of live chat sessions.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PabloGalante/folio-chat/internal/app/chat"
	"github.com/PabloGalante/folio-chat/internal/domain"
	"github.com/PabloGalante/folio-chat/internal/observability"
)

// SessionRegistry keeps live sessions by id.
type SessionRegistry interface {
	CreateSession(session *chat.Session) error
	GetSession(id domain.SessionID) (*chat.Session, error)
	DeleteSession(id domain.SessionID) error
	ListSessions() []*chat.Session
	CountSessions() int
}

// Settings are applied to every session the service starts.
type Settings struct {
	Timeout       time.Duration
	MaxInputRunes int
	Greeting      string
	// MaxSessions caps live sessions; StartSession fails beyond it. Zero
	// means no cap.
	MaxSessions int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type Service struct {
	backend  domain.Backend
	sessions SessionRegistry
	newStore func() domain.MessageStore
	recorder domain.DispatchRecorder
	settings Settings

	now   func() time.Time
	newID func() string

	// serializes the cap check with registration
	startMu sync.Mutex
}

// NewService wires a conversation service. recorder may be nil.
func NewService(
	backend domain.Backend,
	sessions SessionRegistry,
	newStore func() domain.MessageStore,
	recorder domain.DispatchRecorder,
	settings Settings,
) *Service {
	now := settings.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		backend:  backend,
		sessions: sessions,
		newStore: newStore,
		recorder: recorder,
		settings: settings,
		now:      now,
		newID:    uuid.NewString,
	}
}

type StartSessionInput struct {
	// Greeting appends the configured welcome message, if any.
	Greeting bool
}

type SessionView struct {
	ID       domain.SessionID
	State    domain.State
	Messages []*domain.Message
}

func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*SessionView, error) {
	id := domain.SessionID(s.newID())
	log := observability.LoggerFromContext(ctx).With(zap.String("session_id", string(id)))

	session := chat.NewSession(id, s.backend, s.newStore(), chat.Options{
		Timeout:       s.settings.Timeout,
		MaxInputRunes: s.settings.MaxInputRunes,
		Recorder:      s.recorder,
		Now:           s.now,
		NewID:         s.newID,
	})

	if in.Greeting && s.settings.Greeting != "" {
		if err := session.Greet(s.settings.Greeting); err != nil {
			log.Error("failed to append greeting", zap.Error(err))
			return nil, fmt.Errorf("greet: %w", err)
		}
	}

	s.startMu.Lock()
	if limit := s.settings.MaxSessions; limit > 0 && s.sessions.CountSessions() >= limit {
		s.startMu.Unlock()
		log.Warn("session cap reached", zap.Int("max_sessions", limit))
		return nil, domain.ErrTooManySessions
	}
	err := s.sessions.CreateSession(session)
	s.startMu.Unlock()
	if err != nil {
		log.Error("failed to register session", zap.Error(err))
		return nil, err
	}

	log.Info("session started")
	return view(session)
}

type SendMessageInput struct {
	SessionID domain.SessionID
	Text      string
}

// SendMessage dispatches text in the given session. See chat.Session.Send
// for which failures are errors and which are reported in the Exchange.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*chat.Exchange, error) {
	session, err := s.sessions.GetSession(in.SessionID)
	if err != nil {
		return nil, err
	}
	return session.Send(ctx, in.Text)
}

func (s *Service) GetSessionTimeline(ctx context.Context, id domain.SessionID) (*SessionView, error) {
	session, err := s.sessions.GetSession(id)
	if err != nil {
		return nil, err
	}

	v, err := view(session)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to read timeline",
			zap.String("session_id", string(id)), zap.Error(err))
		return nil, err
	}
	return v, nil
}

func (s *Service) Open(_ context.Context, id domain.SessionID) (domain.State, error) {
	return s.withSession(id, (*chat.Session).Open)
}

func (s *Service) Close(_ context.Context, id domain.SessionID) (domain.State, error) {
	return s.withSession(id, (*chat.Session).Close)
}

func (s *Service) Toggle(_ context.Context, id domain.SessionID) (domain.State, error) {
	return s.withSession(id, (*chat.Session).Toggle)
}

func (s *Service) Clear(ctx context.Context, id domain.SessionID) error {
	session, err := s.sessions.GetSession(id)
	if err != nil {
		return err
	}
	if err := session.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("session cleared", zap.String("session_id", string(id)))
	return nil
}

// EndSession closes the session, abandoning any dispatch in flight, and
// forgets it.
func (s *Service) EndSession(ctx context.Context, id domain.SessionID) error {
	session, err := s.sessions.GetSession(id)
	if err != nil {
		return err
	}
	session.Close()
	if err := s.sessions.DeleteSession(id); err != nil {
		return err
	}
	observability.LoggerFromContext(ctx).Info("session ended", zap.String("session_id", string(id)))
	return nil
}

// RecentDispatches returns up to limit dispatch records, newest first.
// Without a recorder it returns an empty list.
func (s *Service) RecentDispatches(ctx context.Context, limit int) ([]*domain.DispatchRecord, error) {
	if s.recorder == nil {
		return []*domain.DispatchRecord{}, nil
	}
	return s.recorder.RecentDispatches(ctx, limit)
}

// ReapIdle ends every session unused for longer than ttl. Sessions with a
// dispatch in flight are left alone. It returns how many were ended.
func (s *Service) ReapIdle(ctx context.Context, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	cutoff := s.now().Add(-ttl)
	reaped := 0
	for _, session := range s.sessions.ListSessions() {
		last, busy := session.Activity()
		if busy || !last.Before(cutoff) {
			continue
		}
		if err := s.EndSession(ctx, session.ID()); err != nil {
			if !errors.Is(err, domain.ErrSessionNotFound) {
				observability.LoggerFromContext(ctx).Warn("failed to reap session",
					zap.String("session_id", string(session.ID())), zap.Error(err))
			}
			continue
		}
		reaped++
	}
	return reaped
}

// RunReaper calls ReapIdle every interval until ctx is done.
func (s *Service) RunReaper(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ReapIdle(ctx, ttl); n > 0 {
				observability.LoggerFromContext(ctx).Info("reaped idle sessions",
					zap.Int("count", n), zap.Duration("ttl", ttl))
			}
		}
	}
}

func (s *Service) withSession(id domain.SessionID, fn func(*chat.Session) domain.State) (domain.State, error) {
	session, err := s.sessions.GetSession(id)
	if err != nil {
		return domain.State{}, err
	}
	return fn(session), nil
}

func view(session *chat.Session) (*SessionView, error) {
	state, msgs, err := session.Snapshot()
	if err != nil {
		return nil, err
	}
	return &SessionView{ID: session.ID(), State: state, Messages: msgs}, nil
}
