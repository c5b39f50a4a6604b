package chat_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/folio-chat/internal/adapters/storage/memory"
	"github.com/PabloGalante/folio-chat/internal/app/chat"
	"github.com/PabloGalante/folio-chat/internal/domain"
)

type backendFunc func(ctx context.Context, text string) (*domain.Reply, error)

func (f backendFunc) Chat(ctx context.Context, text string) (*domain.Reply, error) {
	return f(ctx, text)
}

func reply(text string) backendFunc {
	return func(context.Context, string) (*domain.Reply, error) {
		return &domain.Reply{Text: text}, nil
	}
}

// pendingBackend blocks every call until release is closed.
type pendingBackend struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newPendingBackend() *pendingBackend {
	return &pendingBackend{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (b *pendingBackend) Chat(ctx context.Context, text string) (*domain.Reply, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	return &domain.Reply{Text: "late " + text}, nil
}

var ignoreVolatile = cmpopts.IgnoreFields(domain.Message{}, "ID", "CreatedAt")

func newSession(t *testing.T, backend domain.Backend, opts chat.Options) (*chat.Session, *memory.MessageStore) {
	t.Helper()
	store := memory.NewMessageStore()
	return chat.NewSession("s-1", backend, store, opts), store
}

func TestSendAppendsUserMessageBeforeDispatch(t *testing.T) {
	var store *memory.MessageStore
	var seen []*domain.Message

	backend := backendFunc(func(ctx context.Context, text string) (*domain.Reply, error) {
		var err error
		seen, err = store.List()
		require.NoError(t, err)
		return &domain.Reply{Text: "ok"}, nil
	})

	s, st := newSession(t, backend, chat.Options{})
	store = st

	_, err := s.Send(context.Background(), "  what do you build?  ")
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, domain.RoleUser, seen[0].Role)
	assert.Equal(t, "what do you build?", seen[0].Content)
}

func TestSendRejectsBlankInput(t *testing.T) {
	var calls atomic.Int32
	backend := backendFunc(func(context.Context, string) (*domain.Reply, error) {
		calls.Add(1)
		return &domain.Reply{Text: "unreachable"}, nil
	})
	s, _ := newSession(t, backend, chat.Options{})

	for _, in := range []string{"", "   ", "\n\t"} {
		ex, err := s.Send(context.Background(), in)
		require.Error(t, err)
		assert.Nil(t, ex)
		assert.Equal(t, domain.KindEmptyInput, domain.KindOf(err))
	}

	state, msgs, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, domain.State{}, state)
	assert.Zero(t, calls.Load())
}

func TestSendRejectsLongInput(t *testing.T) {
	s, _ := newSession(t, reply("x"), chat.Options{MaxInputRunes: 5})

	_, err := s.Send(context.Background(), "héllo!")
	assert.Equal(t, domain.KindInputTooLong, domain.KindOf(err))

	_, msgs, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = s.Send(context.Background(), "héllo")
	require.NoError(t, err)
}

func TestSendSuccessTranscript(t *testing.T) {
	s, _ := newSession(t, reply("hello"), chat.Options{})

	ex, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.Nil(t, ex.Err)
	assert.False(t, ex.Stale)

	state, msgs, err := s.Snapshot()
	require.NoError(t, err)

	want := []*domain.Message{
		{SessionID: "s-1", Role: domain.RoleUser, Content: "hi"},
		{SessionID: "s-1", Role: domain.RoleAssistant, Content: "hello"},
	}
	if diff := cmp.Diff(want, msgs, ignoreVolatile); diff != "" {
		t.Fatalf("transcript mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.Error)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
}

func TestSendKeepsSources(t *testing.T) {
	backend := backendFunc(func(context.Context, string) (*domain.Reply, error) {
		return &domain.Reply{
			Text:    "Go and Python",
			Sources: []domain.Source{{Content: "skills: go", Metadata: map[string]any{"type": "skills"}}},
		}, nil
	})
	s, _ := newSession(t, backend, chat.Options{})

	ex, err := s.Send(context.Background(), "skills?")
	require.NoError(t, err)
	require.Len(t, ex.Assistant.Sources, 1)
	assert.Equal(t, "skills", ex.Assistant.Sources[0].Metadata["type"])
	assert.Nil(t, ex.User.Sources)
}

func TestSendClassifiesFailures(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantKind domain.ErrorKind
		wantText string
	}{
		{
			name:     "rate limited",
			err:      &domain.DispatchError{Kind: domain.KindRateLimited, Status: 429},
			wantKind: domain.KindRateLimited,
			wantText: "Too many requests. Please wait a moment and try again.",
		},
		{
			name:     "server error",
			err:      &domain.DispatchError{Kind: domain.KindServerError, Status: 500},
			wantKind: domain.KindServerError,
			wantText: "Server error. The assistant is temporarily unavailable.",
		},
		{
			name:     "unclassified error",
			err:      errors.New("dial tcp: connection refused"),
			wantKind: domain.KindNetworkUnreachable,
			wantText: "Cannot connect to the assistant. Please check your internet connection.",
		},
		{
			name:     "application error",
			err:      &domain.DispatchError{Kind: domain.KindApplicationError, Detail: "vector store offline"},
			wantKind: domain.KindApplicationError,
			wantText: "vector store offline",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := backendFunc(func(context.Context, string) (*domain.Reply, error) {
				return nil, tc.err
			})
			s, _ := newSession(t, backend, chat.Options{})

			ex, err := s.Send(context.Background(), "x")
			require.NoError(t, err)
			require.NotNil(t, ex.Err)
			assert.Equal(t, tc.wantKind, ex.Err.Kind)

			state, msgs, err := s.Snapshot()
			require.NoError(t, err)
			require.Len(t, msgs, 2)

			last := msgs[len(msgs)-1]
			assert.Equal(t, domain.RoleAssistant, last.Role)
			assert.Equal(t, tc.wantText, last.Content)
			assert.Equal(t, tc.wantText, state.Error)
			assert.False(t, state.IsLoading)
		})
	}
}

func TestNextSuccessfulSendClearsError(t *testing.T) {
	fail := true
	backend := backendFunc(func(context.Context, string) (*domain.Reply, error) {
		if fail {
			return nil, &domain.DispatchError{Kind: domain.KindServerError, Status: 502}
		}
		return &domain.Reply{Text: "back"}, nil
	})
	s, _ := newSession(t, backend, chat.Options{})

	_, err := s.Send(context.Background(), "one")
	require.NoError(t, err)
	state, _, _ := s.Snapshot()
	require.NotEmpty(t, state.Error)

	fail = false
	_, err = s.Send(context.Background(), "two")
	require.NoError(t, err)
	state, msgs, _ := s.Snapshot()
	assert.Empty(t, state.Error)
	assert.Len(t, msgs, 4)
}

func TestSendTimeout(t *testing.T) {
	backend := backendFunc(func(ctx context.Context, _ string) (*domain.Reply, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s, _ := newSession(t, backend, chat.Options{Timeout: 20 * time.Millisecond})

	ex, err := s.Send(context.Background(), "slow?")
	require.NoError(t, err)
	require.NotNil(t, ex.Err)
	assert.Equal(t, domain.KindTimeout, ex.Err.Kind)

	state, _, _ := s.Snapshot()
	assert.False(t, state.IsLoading)
}

func TestCallerCancellationDoesNotAbortDispatch(t *testing.T) {
	backend := backendFunc(func(ctx context.Context, _ string) (*domain.Reply, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &domain.Reply{Text: "still here"}, nil
	})
	s, _ := newSession(t, backend, chat.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex, err := s.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Nil(t, ex.Err)
	assert.Equal(t, "still here", ex.Assistant.Content)
}

func TestPendingDispatchKeepsLoading(t *testing.T) {
	backend := newPendingBackend()
	s, _ := newSession(t, backend, chat.Options{})

	done := make(chan *chat.Exchange)
	go func() {
		ex, _ := s.Send(context.Background(), "are you there?")
		done <- ex
	}()
	<-backend.started

	state, msgs, err := s.Snapshot()
	require.NoError(t, err)
	assert.True(t, state.IsLoading)
	assert.Len(t, msgs, 1)

	// A second send while the first is outstanding is rejected untouched.
	_, err = s.Send(context.Background(), "hello?")
	assert.Equal(t, domain.KindBusy, domain.KindOf(err))
	_, msgs, _ = s.Snapshot()
	assert.Len(t, msgs, 1)

	close(backend.release)
	ex := <-done
	require.NotNil(t, ex)
	assert.Equal(t, "late are you there?", ex.Assistant.Content)

	state, msgs, _ = s.Snapshot()
	assert.False(t, state.IsLoading)
	assert.Len(t, msgs, 2)
	assert.EqualValues(t, 1, backend.calls.Load())
}

func TestCloseDiscardsLateReply(t *testing.T) {
	backend := newPendingBackend()
	log := memory.NewDispatchLog(10)
	s, _ := newSession(t, backend, chat.Options{Recorder: log})
	s.Open()

	done := make(chan *chat.Exchange)
	go func() {
		ex, _ := s.Send(context.Background(), "bye")
		done <- ex
	}()
	<-backend.started

	state := s.Close()
	assert.False(t, state.IsOpen)
	assert.False(t, state.IsLoading)

	close(backend.release)
	ex := <-done
	assert.True(t, ex.Stale)
	assert.Nil(t, ex.Assistant)

	_, msgs, _ := s.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)

	recs, err := log.RecentDispatches(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Stale)
	assert.Equal(t, domain.OutcomeAbandoned, recs[0].Outcome)
}

func TestClearEmptiesTranscript(t *testing.T) {
	s, _ := newSession(t, reply("pong"), chat.Options{})

	for _, in := range []string{"a", "b", "c"} {
		_, err := s.Send(context.Background(), in)
		require.NoError(t, err)
	}

	require.NoError(t, s.Clear())
	_, msgs, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, s.Clear())
	_, msgs, _ = s.Snapshot()
	assert.Empty(t, msgs)
}

func TestToggleAndOpenClearError(t *testing.T) {
	backend := backendFunc(func(context.Context, string) (*domain.Reply, error) {
		return nil, &domain.DispatchError{Kind: domain.KindRateLimited, Status: 429}
	})
	s, _ := newSession(t, backend, chat.Options{})

	state := s.Toggle()
	assert.True(t, state.IsOpen)

	_, err := s.Send(context.Background(), "x")
	require.NoError(t, err)
	state, _, _ = s.Snapshot()
	require.NotEmpty(t, state.Error)

	state = s.Toggle()
	assert.False(t, state.IsOpen)
	assert.Empty(t, state.Error)

	state = s.Toggle()
	assert.True(t, state.IsOpen)
}

func TestRecorderReceivesOutcome(t *testing.T) {
	log := memory.NewDispatchLog(10)
	fail := false
	backend := backendFunc(func(context.Context, string) (*domain.Reply, error) {
		if fail {
			return nil, &domain.DispatchError{Kind: domain.KindServerError, Status: 503}
		}
		return &domain.Reply{Text: "ok"}, nil
	})
	s, _ := newSession(t, backend, chat.Options{Recorder: log})

	_, err := s.Send(context.Background(), "first")
	require.NoError(t, err)
	fail = true
	_, err = s.Send(context.Background(), "second")
	require.NoError(t, err)

	recs, err := log.RecentDispatches(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, string(domain.KindServerError), recs[0].Outcome)
	assert.Equal(t, 503, recs[0].Status)
	assert.Equal(t, domain.OutcomeOK, recs[1].Outcome)
	assert.Equal(t, domain.SessionID("s-1"), recs[1].SessionID)
}

func TestConcurrentTogglesPair(t *testing.T) {
	s, _ := newSession(t, reply("ok"), chat.Options{})

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Toggle()
		}()
	}
	wg.Wait()

	state, _, err := s.Snapshot()
	require.NoError(t, err)
	assert.False(t, state.IsOpen, "an even number of toggles must leave the window closed")
}

func TestActivityTracksUse(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s, _ := newSession(t, reply("ok"), chat.Options{Now: clock})

	last, busy := s.Activity()
	assert.Equal(t, now, last)
	assert.False(t, busy)

	now = now.Add(time.Hour)
	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)

	last, _ = s.Activity()
	assert.Equal(t, now, last)
}
