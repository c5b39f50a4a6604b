package conversation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/folio-chat/internal/adapters/backend"
	"github.com/PabloGalante/folio-chat/internal/adapters/storage/memory"
	"github.com/PabloGalante/folio-chat/internal/app/conversation"
	"github.com/PabloGalante/folio-chat/internal/domain"
)

func newService(log domain.DispatchRecorder) *conversation.Service {
	return conversation.NewService(
		backend.NewMock(),
		memory.NewSessionStore(),
		func() domain.MessageStore { return memory.NewMessageStore() },
		log,
		conversation.Settings{MaxInputRunes: 100, Greeting: "Hi there"},
	)
}

func TestStartSessionAndSendMessage(t *testing.T) {
	ctx := context.Background()
	dispatches := memory.NewDispatchLog(10)
	svc := newService(dispatches)

	out, err := svc.StartSession(ctx, conversation.StartSessionInput{Greeting: true})
	require.NoError(t, err)
	require.NotEmpty(t, out.ID)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, domain.RoleAssistant, out.Messages[0].Role)
	assert.Equal(t, "Hi there", out.Messages[0].Content)

	ex, err := svc.SendMessage(ctx, conversation.SendMessageInput{SessionID: out.ID, Text: "What do you build?"})
	require.NoError(t, err)
	require.Nil(t, ex.Err)
	assert.Contains(t, ex.Assistant.Content, "What do you build?")

	timeline, err := svc.GetSessionTimeline(ctx, out.ID)
	require.NoError(t, err)
	require.Len(t, timeline.Messages, 3)
	assert.Equal(t, domain.RoleUser, timeline.Messages[1].Role)
	assert.False(t, timeline.State.IsLoading)

	recs, err := svc.RecentDispatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, out.ID, recs[0].SessionID)
	assert.Equal(t, domain.OutcomeOK, recs[0].Outcome)
}

func TestStartSessionWithoutGreeting(t *testing.T) {
	svc := newService(nil)

	out, err := svc.StartSession(context.Background(), conversation.StartSessionInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Messages)
}

func TestUnknownSession(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)
	id := domain.SessionID("missing")

	_, err := svc.SendMessage(ctx, conversation.SendMessageInput{SessionID: id, Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = svc.GetSessionTimeline(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = svc.Toggle(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.ErrorIs(t, svc.Clear(ctx, id), domain.ErrSessionNotFound)
	assert.ErrorIs(t, svc.EndSession(ctx, id), domain.ErrSessionNotFound)
}

func TestOpenCloseToggleClear(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)

	out, err := svc.StartSession(ctx, conversation.StartSessionInput{Greeting: true})
	require.NoError(t, err)

	state, err := svc.Toggle(ctx, out.ID)
	require.NoError(t, err)
	assert.True(t, state.IsOpen)

	state, err = svc.Close(ctx, out.ID)
	require.NoError(t, err)
	assert.False(t, state.IsOpen)

	state, err = svc.Open(ctx, out.ID)
	require.NoError(t, err)
	assert.True(t, state.IsOpen)

	require.NoError(t, svc.Clear(ctx, out.ID))
	timeline, err := svc.GetSessionTimeline(ctx, out.ID)
	require.NoError(t, err)
	assert.Empty(t, timeline.Messages)
	assert.True(t, timeline.State.IsOpen)
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)

	out, err := svc.StartSession(ctx, conversation.StartSessionInput{})
	require.NoError(t, err)

	require.NoError(t, svc.EndSession(ctx, out.ID))
	_, err = svc.GetSessionTimeline(ctx, out.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRejectedSendIsReturnedAsError(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)

	out, err := svc.StartSession(ctx, conversation.StartSessionInput{})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, conversation.SendMessageInput{SessionID: out.ID, Text: "   "})
	assert.Equal(t, domain.KindEmptyInput, domain.KindOf(err))

	timeline, err := svc.GetSessionTimeline(ctx, out.ID)
	require.NoError(t, err)
	assert.Empty(t, timeline.Messages)
}

func TestRecentDispatchesWithoutRecorder(t *testing.T) {
	recs, err := newService(nil).RecentDispatches(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReapIdleEndsOnlyIdleSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	sessions := memory.NewSessionStore()
	svc := conversation.NewService(
		backend.NewMock(),
		sessions,
		func() domain.MessageStore { return memory.NewMessageStore() },
		nil,
		conversation.Settings{Clock: func() time.Time { return now }},
	)

	idle, err := svc.StartSession(ctx, conversation.StartSessionInput{})
	require.NoError(t, err)
	active, err := svc.StartSession(ctx, conversation.StartSessionInput{})
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	_, err = svc.SendMessage(ctx, conversation.SendMessageInput{SessionID: active.ID, Text: "still here"})
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, svc.ReapIdle(ctx, 30*time.Minute))

	_, err = svc.GetSessionTimeline(ctx, idle.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.GetSessionTimeline(ctx, active.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, sessions.CountSessions())

	assert.Zero(t, svc.ReapIdle(ctx, 0))
}

func TestRunReaperEvictsAbandonedSessions(t *testing.T) {
	sessions := memory.NewSessionStore()
	svc := conversation.NewService(
		backend.NewMock(),
		sessions,
		func() domain.MessageStore { return memory.NewMessageStore() },
		nil,
		conversation.Settings{},
	)

	for i := 0; i < 50; i++ {
		_, err := svc.StartSession(context.Background(), conversation.StartSessionInput{Greeting: true})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.RunReaper(ctx, 10*time.Millisecond, 5*time.Millisecond)
	}()

	assert.Eventually(t, func() bool { return sessions.CountSessions() == 0 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestStartSessionRespectsCap(t *testing.T) {
	ctx := context.Background()
	svc := conversation.NewService(
		backend.NewMock(),
		memory.NewSessionStore(),
		func() domain.MessageStore { return memory.NewMessageStore() },
		nil,
		conversation.Settings{MaxSessions: 2},
	)

	first, err := svc.StartSession(ctx, conversation.StartSessionInput{})
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, conversation.StartSessionInput{})
	require.NoError(t, err)

	_, err = svc.StartSession(ctx, conversation.StartSessionInput{})
	assert.ErrorIs(t, err, domain.ErrTooManySessions)

	require.NoError(t, svc.EndSession(ctx, first.ID))
	_, err = svc.StartSession(ctx, conversation.StartSessionInput{})
	assert.NoError(t, err)
}
