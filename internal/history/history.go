// Package history provides SQLite-based persistence for conversation
// messages. If the database cannot be opened the store degrades to in-memory
// storage, so a broken disk never takes the conversation down with it.
package history

import (
	"context"
	"database/sql"
	"os"
	"sync"

	_ "github.com/glebarez/go-sqlite"

	"github.com/planora-app/assistant-go/internal/logger"
	"github.com/planora-app/assistant-go/internal/session"
)

const schema = `CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);`

// Store persists messages in SQLite and implements session.Store.
type Store struct {
	mu      sync.Mutex
	mem     []session.Message // fallback when sqlite is unavailable
	db      *sql.DB
	initErr error
}

// Open opens (creating if needed) the database at path. An empty path falls
// back to HISTORY_DB_PATH, then "history.db". Open never fails: when sqlite
// is unusable the store runs in memory and says so in the log.
func Open(path string) *Store {
	if path == "" {
		path = os.Getenv("HISTORY_DB_PATH")
	}
	if path == "" {
		path = "history.db"
	}

	s := &Store{}
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		s.initErr = err
		logger.L.Warn("history: sqlite open failed; using in-memory store", "path", path, "error", err)
		return s
	}
	if _, err = db.Exec(schema); err != nil {
		s.initErr = err
		_ = db.Close()
		logger.L.Warn("history: schema creation failed; using in-memory store", "path", path, "error", err)
		return s
	}
	s.db = db
	logger.L.Info("history: sqlite store initialized", "path", path)
	return s
}

// PersistMessage saves one message. In degraded (in-memory) mode it always
// succeeds; with sqlite available an insert failure is returned to the
// caller, who surfaces it without rolling back the rendered conversation.
func (s *Store) PersistMessage(ctx context.Context, msg session.Message) error {
	if s.initErr != nil || s.db == nil {
		s.mu.Lock()
		s.mem = append(s.mem, msg)
		s.mu.Unlock()
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?,?,?,?,?);`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.CreatedAt)
	return err
}

// LoadConversation returns all messages of a conversation in insertion
// order. Query failures degrade to whatever the in-memory fallback holds.
func (s *Store) LoadConversation(ctx context.Context, conversationID string) ([]session.Message, error) {
	if s.initErr == nil && s.db != nil {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY rowid ASC;`,
			conversationID)
		if err == nil {
			defer rows.Close()
			var out []session.Message
			for rows.Next() {
				var m session.Message
				var role string
				if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
					logger.L.Warn("history: skipping unreadable row", "error", err)
					continue
				}
				m.Role = session.Role(role)
				out = append(out, m)
			}
			return out, rows.Err()
		}
		logger.L.Warn("history: query failed; falling back to memory", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []session.Message
	for _, m := range s.mem {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Close releases the database handle, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
