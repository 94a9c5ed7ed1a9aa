package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/planora-app/assistant-go/internal/format"
)

type mockStore struct {
	mu          sync.Mutex
	persisted   []Message
	persistFunc func(ctx context.Context, msg Message) error
	loadFunc    func(ctx context.Context, conversationID string) ([]Message, error)
}

func (m *mockStore) PersistMessage(ctx context.Context, msg Message) error {
	if m.persistFunc != nil {
		if err := m.persistFunc(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.persisted = append(m.persisted, msg)
	m.mu.Unlock()
	return nil
}

func (m *mockStore) LoadConversation(ctx context.Context, conversationID string) ([]Message, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx, conversationID)
	}
	return nil, nil
}

func (m *mockStore) saved() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.persisted...)
}

type mockGenerator struct {
	mu           sync.Mutex
	calls        int
	generateFunc func(ctx context.Context, query string, opts Options) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, query string, opts Options) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.generateFunc != nil {
		return m.generateFunc(ctx, query, opts)
	}
	return "réponse", nil
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) ScrollToBottom() {
	n.mu.Lock()
	n.events = append(n.events, "bottom")
	n.mu.Unlock()
}

func (n *recordingNotifier) ScrollToMessage(id string) {
	n.mu.Lock()
	n.events = append(n.events, "message:"+id)
	n.mu.Unlock()
}

func TestSubmit_OrderingOnSuccess(t *testing.T) {
	store := &mockStore{}
	gen := &mockGenerator{generateFunc: func(_ context.Context, query string, _ Options) (string, error) {
		return `{"content":"bienvenue en Bretagne"}`, nil
	}}
	s := New(store, gen, nil)

	require.NoError(t, s.Submit(context.Background(), "roadtrip de 5 jours en Bretagne"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, RoleUser, msgs[0].Role)
	require.Equal(t, "roadtrip de 5 jours en Bretagne", msgs[0].Content)
	require.Equal(t, RoleAssistant, msgs[1].Role)
	require.Equal(t, format.Response(`{"content":"bienvenue en Bretagne"}`), msgs[1].Content)
	require.False(t, s.Submitting())

	// Both sides of the turn were persisted, user first.
	saved := store.saved()
	require.Len(t, saved, 2)
	require.Equal(t, RoleUser, saved[0].Role)
	require.Equal(t, RoleAssistant, saved[1].Role)
	require.Equal(t, s.ConversationID(), saved[0].ConversationID)
}

func TestSubmit_BlankIsNoOp(t *testing.T) {
	gen := &mockGenerator{}
	s := New(&mockStore{}, gen, nil)

	require.NoError(t, s.Submit(context.Background(), "   "))
	require.Empty(t, s.Messages())
	require.Zero(t, gen.callCount())
}

func TestSubmit_DoubleSubmitGuard(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gen := &mockGenerator{generateFunc: func(context.Context, string, Options) (string, error) {
		close(started)
		<-release
		return "ok", nil
	}}
	s := New(&mockStore{}, gen, nil)

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "première demande") }()

	<-started
	require.True(t, s.Submitting())

	// Second submit while pending: no-op for the history.
	require.ErrorIs(t, s.Submit(context.Background(), "doublon"), ErrSubmissionPending)
	require.Len(t, s.Messages(), 1)

	close(release)
	require.NoError(t, <-done)
	require.False(t, s.Submitting())
	require.Len(t, s.Messages(), 2)
	require.Equal(t, 1, gen.callCount())
}

func TestSubmit_GenerationFailureSubstituted(t *testing.T) {
	gen := &mockGenerator{generateFunc: func(context.Context, string, Options) (string, error) {
		return "", errors.New("panne du générateur")
	}}
	s := New(&mockStore{}, gen, nil)

	require.NoError(t, s.Submit(context.Background(), "un voyage de 3 jours"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, RoleUser, msgs[0].Role)
	require.Equal(t, RoleAssistant, msgs[1].Role)
	require.Contains(t, msgs[1].Content, "panne du générateur")
	require.False(t, s.Submitting())

	// A failed turn does not block the next one.
	gen.generateFunc = nil
	require.NoError(t, s.Submit(context.Background(), "on réessaie"))
	require.Len(t, s.Messages(), 4)
}

func TestSubmit_PersistenceFailureSubstituted(t *testing.T) {
	store := &mockStore{persistFunc: func(context.Context, Message) error {
		return errors.New("base injoignable")
	}}
	gen := &mockGenerator{}
	s := New(store, gen, nil)

	require.NoError(t, s.Submit(context.Background(), "un voyage"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	// Optimistic append is not rolled back.
	require.Equal(t, RoleUser, msgs[0].Role)
	require.Contains(t, msgs[1].Content, "base injoignable")
	require.Zero(t, gen.callCount())
	require.False(t, s.Submitting())
}

func TestSubmit_ScrollSignals(t *testing.T) {
	notifier := &recordingNotifier{}
	s := New(&mockStore{}, &mockGenerator{}, notifier)

	require.NoError(t, s.Submit(context.Background(), "bonjour voyage"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, []string{"bottom", "message:" + msgs[1].ID}, notifier.events)
}

func TestSubmit_ForwardsOptions(t *testing.T) {
	var got Options
	gen := &mockGenerator{generateFunc: func(_ context.Context, _ string, opts Options) (string, error) {
		got = opts
		return "ok", nil
	}}
	s := New(&mockStore{}, gen, nil)
	s.IncludeWeather(true)

	require.NoError(t, s.Submit(context.Background(), "un voyage"))
	require.True(t, got.IncludeWeather)
	require.Equal(t, s.ConversationID(), got.ConversationID)
}

func TestStartNewSession(t *testing.T) {
	s := New(&mockStore{}, &mockGenerator{}, nil)
	require.NoError(t, s.Submit(context.Background(), "un premier voyage"))

	previous := s.ConversationID()
	s.StartNewSession()

	require.NotEqual(t, previous, s.ConversationID())
	require.Empty(t, s.Messages())
	require.False(t, s.Submitting())
}

func TestStartNewSession_IgnoredWhileSubmitting(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gen := &mockGenerator{generateFunc: func(context.Context, string, Options) (string, error) {
		close(started)
		<-release
		return "ok", nil
	}}
	s := New(&mockStore{}, gen, nil)

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "demande") }()
	<-started

	id := s.ConversationID()
	s.StartNewSession()
	require.Equal(t, id, s.ConversationID())
	require.NotEmpty(t, s.Messages())

	close(release)
	require.NoError(t, <-done)
}

func TestResume(t *testing.T) {
	history := []Message{
		{ID: "1", Role: RoleUser, Content: "bonjour", CreatedAt: time.Now()},
		{ID: "2", Role: RoleAssistant, Content: "bienvenue", CreatedAt: time.Now()},
	}
	store := &mockStore{loadFunc: func(_ context.Context, conversationID string) ([]Message, error) {
		return history, nil
	}}
	s := New(store, &mockGenerator{}, nil)

	s.Resume(context.Background())
	require.Equal(t, history, s.Messages())
	require.False(t, s.Submitting())

	// Resumed sessions accept new submissions.
	require.NoError(t, s.Submit(context.Background(), "et ensuite un voyage ?"))
	require.Len(t, s.Messages(), 4)
}

func TestResume_LoadFailureDegradesToEmpty(t *testing.T) {
	store := &mockStore{loadFunc: func(context.Context, string) ([]Message, error) {
		return nil, errors.New("corrompu")
	}}
	s := New(store, &mockGenerator{}, nil)

	s.Resume(context.Background())
	require.Empty(t, s.Messages())
}
