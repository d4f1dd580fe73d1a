package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nugget/beatrice/internal/llm"
)

// DefaultSessionCap keeps the last ten exchanges.
const DefaultSessionCap = 20

// Session is the in-process conversation window for one REPL run. It is
// never persisted.
type Session struct {
	mu       sync.RWMutex
	id       string
	cap      int
	messages []llm.Message
}

// NewSession creates an empty session holding at most cap messages.
func NewSession(cap int) *Session {
	if cap <= 0 {
		cap = DefaultSessionCap
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Session{id: id.String(), cap: cap}
}

// ID identifies the session in logs and the turn archive.
func (s *Session) ID() string { return s.id }

// Messages returns a copy of the window, oldest first.
func (s *Session) Messages() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]llm.Message(nil), s.messages...)
}

// Append adds one user/assistant exchange and drops the oldest messages
// two at a time until the window fits the cap.
func (s *Session) Append(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages,
		llm.Message{Role: llm.RoleUser, Content: user},
		llm.Message{Role: llm.RoleAssistant, Content: assistant},
	)
	drop := 0
	for len(s.messages)-drop > s.cap {
		drop += 2
	}
	if drop > 0 {
		s.messages = append([]llm.Message(nil), s.messages[drop:]...)
	}
}

// Len returns the number of messages in the window.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Reset empties the window. The session keeps its ID.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
