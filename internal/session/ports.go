package session

import "context"

// Store persists messages and reloads conversation history. Failures are
// surfaced to the user, never escalated; the in-memory conversation is the
// source of truth for rendering.
type Store interface {
	PersistMessage(ctx context.Context, msg Message) error
	LoadConversation(ctx context.Context, conversationID string) ([]Message, error)
}

// Options carries the per-request knobs forwarded to the generator.
type Options struct {
	IncludeWeather bool
	ConversationID string
}

// Generator produces the assistant reply for a user query. The payload may
// be a JSON document or plain text; the session formats either.
type Generator interface {
	Generate(ctx context.Context, query string, opts Options) (string, error)
}

// Notifier receives the session's UI side-channel signals. Appending a user
// message signals scroll-to-bottom so the new prompt is visible; appending
// an assistant message signals scroll-to-message-start so a long response is
// read from the top. Delivery is best-effort and must never block.
type Notifier interface {
	ScrollToBottom()
	ScrollToMessage(id string)
}

type noopNotifier struct{}

func (noopNotifier) ScrollToBottom()        {}
func (noopNotifier) ScrollToMessage(string) {}
