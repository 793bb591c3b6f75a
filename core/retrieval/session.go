package retrieval

import "sync"

// Message is one turn of a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SessionStore keeps the recent messages of each session in memory.
// The oldest session is evicted once maxSessions is reached.
type SessionStore struct {
	mu          sync.Mutex
	maxMessages int
	maxSessions int
	sessions    map[string][]Message
	order       []string
}

func NewSessionStore(maxMessages int, maxSessions int) *SessionStore {
	return &SessionStore{
		maxMessages: maxMessages,
		maxSessions: maxSessions,
		sessions:    map[string][]Message{},
	}
}

// History returns a copy of the stored messages of a session
func (s *SessionStore) History(id string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sessions[id]...)
}

// Append adds messages to a session and drops the oldest beyond maxMessages.
func (s *SessionStore) Append(id string, messages ...Message) {
	if s.maxMessages <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.sessions[id]
	if !ok {
		if s.maxSessions > 0 && len(s.order) >= s.maxSessions {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.sessions, oldest)
		}
		s.order = append(s.order, id)
	}

	history = append(history, messages...)
	if len(history) > s.maxMessages {
		history = append([]Message(nil), history[len(history)-s.maxMessages:]...)
	}
	s.sessions[id] = history
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
