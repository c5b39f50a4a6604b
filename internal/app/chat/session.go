// Package chat implements the request/response loop of one chat window:
// an append-only transcript, its open/loading/error state and the
// dispatcher that turns user text into one backend call.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PabloGalante/folio-chat/internal/domain"
	"github.com/PabloGalante/folio-chat/internal/observability"
)

// Options tune a Session. The zero value is usable.
type Options struct {
	// Timeout bounds a single dispatch. Zero waits for the backend forever.
	Timeout time.Duration
	// MaxInputRunes rejects longer messages before dispatch. Zero disables the check.
	MaxInputRunes int
	// Recorder, if set, receives one record per finished dispatch.
	Recorder domain.DispatchRecorder

	Now   func() time.Time
	NewID func() string
}

// Exchange is the outcome of one Send.
type Exchange struct {
	User      *domain.Message
	Assistant *domain.Message // reply or synthetic error message; nil when Stale
	Err       *domain.DispatchError
	// Stale is set when the session was closed or cleared while the
	// request was in flight. Nothing was appended for it.
	Stale bool
}

// Session is one chat window. All methods are safe for concurrent use.
type Session struct {
	id            domain.SessionID
	backend       domain.Backend
	store         domain.MessageStore
	recorder      domain.DispatchRecorder
	timeout       time.Duration
	maxInputRunes int
	now           func() time.Time
	newID         func() string

	mu         sync.Mutex
	state      domain.State
	busy       bool
	generation uint64
	cancel     context.CancelFunc
	lastActive time.Time
}

func NewSession(id domain.SessionID, backend domain.Backend, store domain.MessageStore, opts Options) *Session {
	s := &Session{
		id:            id,
		backend:       backend,
		store:         store,
		recorder:      opts.Recorder,
		timeout:       opts.Timeout,
		maxInputRunes: opts.MaxInputRunes,
		now:           opts.Now,
		newID:         opts.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.lastActive = s.now()
	return s
}

func (s *Session) ID() domain.SessionID { return s.id }

// Send appends text as a user message and dispatches it to the backend.
//
// The returned error is only set when the message was rejected before
// dispatch (empty, too long, or another dispatch in flight); in that case
// nothing was appended. Backend failures are reported in Exchange.Err and
// as a synthetic assistant message.
func (s *Session) Send(ctx context.Context, text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewDispatchError(domain.KindEmptyInput, nil)
	}
	if s.maxInputRunes > 0 && utf8.RuneCountInString(text) > s.maxInputRunes {
		return nil, &domain.DispatchError{
			Kind:   domain.KindInputTooLong,
			Detail: fmt.Sprintf("%d characters max", s.maxInputRunes),
		}
	}

	log := observability.LoggerFromContext(ctx).With(zap.String("session_id", string(s.id)))

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		log.Debug("send rejected, dispatch in flight")
		return nil, domain.NewDispatchError(domain.KindBusy, nil)
	}

	userMsg := s.newMessage(domain.RoleUser, text, nil)
	if err := s.store.Append(userMsg); err != nil {
		s.mu.Unlock()
		log.Error("failed to append user message", zap.Error(err))
		return nil, fmt.Errorf("append user message: %w", err)
	}

	// The dispatch belongs to the session, not to the caller: only Close,
	// Clear or the configured timeout end it early.
	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if s.timeout > 0 {
		dctx, cancel = withTimeout(dctx, cancel, s.timeout)
	}

	s.busy = true
	s.cancel = cancel
	s.touchLocked()
	s.state.IsLoading = true
	s.state.Error = ""
	gen := s.generation
	s.mu.Unlock()
	defer cancel()

	log.Info("dispatching message", zap.Int("length", utf8.RuneCountInString(text)))

	started := s.now()
	reply, err := s.backend.Chat(dctx, text)
	if err == nil && reply == nil {
		err = &domain.DispatchError{Kind: domain.KindApplicationError, Err: errors.New("backend returned no reply")}
	}
	elapsed := s.now().Sub(started)

	ex := &Exchange{User: userMsg}
	rec := &domain.DispatchRecord{
		ID:        domain.DispatchID(s.newID()),
		SessionID: s.id,
		StartedAt: started,
		Duration:  elapsed,
		Outcome:   domain.OutcomeOK,
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()

		ex.Stale = true
		rec.Stale = true
		rec.Outcome = domain.OutcomeAbandoned
		log.Info("discarding stale dispatch result", zap.Duration("elapsed", elapsed))
		s.record(dctx, rec, log)
		return ex, nil
	}

	s.busy = false
	s.cancel = nil
	s.touchLocked()
	s.state.IsLoading = false

	if err != nil {
		de := classify(err)
		s.state.Error = de.UserMessage()
		ex.Err = de
		ex.Assistant = s.newMessage(domain.RoleAssistant, de.UserMessage(), nil)
		rec.Outcome = string(de.Kind)
		rec.Status = de.Status
	} else {
		ex.Assistant = s.newMessage(domain.RoleAssistant, reply.Text, reply.Sources)
	}
	if aerr := s.store.Append(ex.Assistant); aerr != nil {
		log.Error("failed to append assistant message", zap.Error(aerr))
	}
	s.mu.Unlock()

	if ex.Err != nil {
		log.Warn("dispatch failed",
			zap.String("kind", string(ex.Err.Kind)),
			zap.Int("status", ex.Err.Status),
			zap.Duration("elapsed", elapsed),
			zap.Error(ex.Err))
	} else {
		log.Info("dispatch completed",
			zap.Int("sources", len(reply.Sources)),
			zap.Duration("elapsed", elapsed))
	}

	s.record(dctx, rec, log)
	return ex, nil
}

// Open shows the chat surface and clears the last error.
func (s *Session) Open() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsOpen = true
	s.state.Error = ""
	s.touchLocked()
	return s.state
}

// Close hides the chat surface. A dispatch still in flight is cancelled and
// its result will be discarded.
func (s *Session) Close() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsOpen = false
	s.state.Error = ""
	s.abandonLocked()
	s.touchLocked()
	return s.state
}

// Toggle flips the open state; closing behaves like Close.
func (s *Session) Toggle() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsOpen {
		s.abandonLocked()
	}
	s.state.IsOpen = !s.state.IsOpen
	s.state.Error = ""
	s.touchLocked()
	return s.state
}

// Clear empties the transcript and abandons any dispatch in flight.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abandonLocked()
	s.state.Error = ""
	s.touchLocked()
	return s.store.Clear()
}

// Snapshot returns copies of the state and the transcript.
func (s *Session) Snapshot() (domain.State, []*domain.Message, error) {
	s.mu.Lock()
	state := s.state
	s.touchLocked()
	s.mu.Unlock()

	msgs, err := s.store.List()
	if err != nil {
		return state, nil, fmt.Errorf("list messages: %w", err)
	}
	return state, msgs, nil
}

// Greet appends an assistant message that is not the answer to any dispatch.
func (s *Session) Greet(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Append(s.newMessage(domain.RoleAssistant, text, nil))
}

// Activity reports when the session was last used and whether a dispatch
// is in flight.
func (s *Session) Activity() (last time.Time, busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastActive, s.busy
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

func (s *Session) abandonLocked() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.busy = false
	s.state.IsLoading = false
}

func (s *Session) newMessage(role domain.Role, content string, sources []domain.Source) *domain.Message {
	return &domain.Message{
		ID:        domain.MessageID(s.newID()),
		SessionID: s.id,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
		Sources:   sources,
	}
}

func (s *Session) record(ctx context.Context, rec *domain.DispatchRecord, log *zap.Logger) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordDispatch(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("failed to record dispatch", zap.Error(err))
	}
}

// classify maps any backend error onto the dispatch taxonomy.
func classify(err error) *domain.DispatchError {
	if de, ok := domain.AsDispatchError(err); ok {
		return de
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewDispatchError(domain.KindTimeout, err)
	}
	return domain.NewDispatchError(domain.KindNetworkUnreachable, err)
}

func withTimeout(parent context.Context, cancelParent context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, func() {
		cancel()
		cancelParent()
	}
}
