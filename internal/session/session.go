// Package session holds the conversation state machine: ordered message
// history, optimistic append, single-submission discipline and error
// substitution for one chat thread.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/planora-app/assistant-go/internal/format"
	"github.com/planora-app/assistant-go/internal/logger"
)

// FSM states
type sessionState stateless.State

var (
	stateIdle       sessionState = "Idle"       // no messages yet
	stateActive     sessionState = "Active"     // has messages, nothing in flight
	stateSubmitting sessionState = "Submitting" // exactly one request in flight
)

// FSM triggers
type sessionTrigger stateless.Trigger

var (
	triggerSubmit   sessionTrigger = "Submit"
	triggerResolved sessionTrigger = "Resolved" // success or handled failure
	triggerHydrate  sessionTrigger = "Hydrate"  // persisted history loaded
	triggerReset    sessionTrigger = "Reset"
)

// ErrSubmissionPending is returned when Submit is called while a previous
// submission has not resolved. The conversation is left untouched.
var ErrSubmissionPending = errors.New("session: submission already pending")

// Session owns one conversation: its id, its ordered message history and the
// in-flight-submission invariant. All mutations go through Submit, Resume and
// StartNewSession; messages are appended in the exact order operations
// complete, a user message always before its assistant or error counterpart.
type Session struct {
	mu             sync.Mutex
	conversationID string
	messages       []Message
	fsm            *stateless.StateMachine

	store          Store
	gen            Generator
	notifier       Notifier
	includeWeather bool

	now   func() time.Time
	newID func() string
}

// New creates a session with a fresh conversation id. A nil notifier is
// replaced by a no-op one.
func New(store Store, gen Generator, notifier Notifier) *Session {
	return NewWithID(uuid.NewString(), store, gen, notifier)
}

// NewWithID creates a session bound to an existing conversation id, for
// resuming persisted history.
func NewWithID(id string, store Store, gen Generator, notifier Notifier) *Session {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s := &Session{
		conversationID: id,
		store:          store,
		gen:            gen,
		notifier:       notifier,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	s.fsm = newSessionFSM()
	return s
}

func newSessionFSM() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(stateIdle)
	fsm.Configure(stateIdle).
		Permit(triggerSubmit, stateSubmitting).
		Permit(triggerHydrate, stateActive).
		PermitReentry(triggerReset)
	fsm.Configure(stateActive).
		Permit(triggerSubmit, stateSubmitting).
		Permit(triggerReset, stateIdle)
	fsm.Configure(stateSubmitting).
		Permit(triggerResolved, stateActive)
	return fsm
}

// Submit runs one conversation turn: optimistic user append, persistence,
// generation, assistant append. Blank text and double submits are no-ops for
// the history. Failures from persistence or generation are substituted with
// a visible assistant-role error message; nothing escapes, and the pending
// flag is always cleared as the terminal step.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.fsm.MustState() == stateSubmitting {
		s.mu.Unlock()
		return ErrSubmissionPending
	}
	if err := s.fsm.Fire(triggerSubmit); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("session: fsm submit: %w", err)
	}
	userMsg := s.appendLocked(RoleUser, text)
	weather := s.includeWeather
	s.mu.Unlock()
	s.notifier.ScrollToBottom()

	defer func() {
		s.mu.Lock()
		if err := s.fsm.Fire(triggerResolved); err != nil {
			logger.L.Warn("session: fsm resolve", "error", err)
		}
		s.mu.Unlock()
	}()

	content, genOK := s.runTurn(ctx, userMsg, weather)

	s.mu.Lock()
	assistantMsg := s.appendLocked(RoleAssistant, content)
	s.mu.Unlock()
	s.notifier.ScrollToMessage(assistantMsg.ID)

	if genOK {
		if err := s.store.PersistMessage(ctx, assistantMsg); err != nil {
			// The message is already rendered; losing the save must not
			// disturb the conversation.
			logger.L.Error("session: persist assistant message", "conversation_id", assistantMsg.ConversationID, "error", err)
		}
	}
	return nil
}

// runTurn persists the user message and generates the reply, folding every
// failure into the assistant-visible error text.
func (s *Session) runTurn(ctx context.Context, userMsg Message, includeWeather bool) (content string, ok bool) {
	if err := s.store.PersistMessage(ctx, userMsg); err != nil {
		logger.L.Error("session: persist user message", "conversation_id", userMsg.ConversationID, "error", err)
		return errorBubble(err), false
	}

	raw, err := s.gen.Generate(ctx, userMsg.Content, Options{
		IncludeWeather: includeWeather,
		ConversationID: userMsg.ConversationID,
	})
	if err != nil {
		logger.L.Error("session: generation failed", "conversation_id", userMsg.ConversationID, "error", err)
		return errorBubble(err), false
	}
	return format.Response(raw), true
}

func errorBubble(err error) string {
	return fmt.Sprintf("Désolé, je n'ai pas pu générer de réponse : %v", err)
}

// StartNewSession discards all history and allocates a fresh conversation
// id. It is a no-op while a submission is pending: in-flight generations are
// never cancelled, they always resolve first.
func (s *Session) StartNewSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fsm.MustState() == stateSubmitting {
		logger.L.Warn("session: start new session ignored while submitting", "conversation_id", s.conversationID)
		return
	}
	if err := s.fsm.Fire(triggerReset); err != nil {
		logger.L.Warn("session: fsm reset", "error", err)
	}
	s.conversationID = s.newID()
	s.messages = nil
}

// Resume reloads persisted history for the current conversation. A failing
// or misshapen load degrades to an empty history, never an error surface.
func (s *Session) Resume(ctx context.Context) {
	msgs, err := s.store.LoadConversation(ctx, s.ConversationID())
	if err != nil {
		logger.L.Warn("session: load conversation", "conversation_id", s.ConversationID(), "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fsm.MustState() == stateSubmitting {
		return
	}
	s.messages = append([]Message(nil), msgs...)
	if s.fsm.MustState() == stateIdle {
		if err := s.fsm.Fire(triggerHydrate); err != nil {
			logger.L.Warn("session: fsm hydrate", "error", err)
		}
	}
}

// Messages returns the history in display order, newest last.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Submitting reports whether a submission is in flight, for spinner and
// input-disable state.
func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsm.MustState() == stateSubmitting
}

// IncludeWeather toggles weather enrichment for subsequent submissions.
func (s *Session) IncludeWeather(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.includeWeather = enabled
}

// ConversationID returns the current conversation id.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *Session) appendLocked(role Role, content string) Message {
	msg := Message{
		ID:             s.newID(),
		ConversationID: s.conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      s.now(),
	}
	s.messages = append(s.messages, msg)
	return msg
}
