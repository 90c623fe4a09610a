// Package session tracks per-chat conversational state: bounded message
// history, the story the user is currently asking about, and any settings
// field awaiting input.
package session

import "sync"

// Roles for history turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// historyCap bounds stored history; oldest turns are discarded first.
	historyCap = 40
	// ContextWindow is the hard cap on turns sent per Q&A call.
	ContextWindow = 20
)

// Turn is one history entry.
type Turn struct {
	Role string
	Text string
}

// PendingStory points at the article the user just asked to discuss.
type PendingStory struct {
	TopicKey string
	Index    int
}

// Session is per-chat state. A session holds at most one pending
// interaction at a time: setting a pending story clears any pending
// settings field and vice versa.
type Session struct {
	mu           sync.Mutex
	history      []Turn
	pendingStory *PendingStory
	pendingField string
	lastAnswer   string
}

// Append records a turn, truncating the oldest entries past the cap.
func (s *Session) Append(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{Role: role, Text: text})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
}

// Recent returns the most recent ContextWindow turns.
func (s *Session) Recent() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if len(s.history) > ContextWindow {
		start = len(s.history) - ContextWindow
	}
	out := make([]Turn, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// SetPendingStory marks the story the next free-text message refers to.
func (s *Session) SetPendingStory(topicKey string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingStory = &PendingStory{TopicKey: topicKey, Index: index}
	s.pendingField = ""
}

// TakePendingStory consumes and clears the pending story pointer.
func (s *Session) TakePendingStory() (PendingStory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingStory == nil {
		return PendingStory{}, false
	}
	p := *s.pendingStory
	s.pendingStory = nil
	return p, true
}

// SetPendingField marks which settings field the next message edits.
func (s *Session) SetPendingField(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingField = field
	s.pendingStory = nil
}

// TakePendingField consumes and clears the pending settings field.
func (s *Session) TakePendingField() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingField == "" {
		return "", false
	}
	f := s.pendingField
	s.pendingField = ""
	return f, true
}

// HasPending reports whether any pending interaction is set.
func (s *Session) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingStory != nil || s.pendingField != ""
}

// SetLastAnswer retains the latest assistant reply for voice replay.
func (s *Session) SetLastAnswer(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAnswer = text
}

// LastAnswer returns the latest assistant reply, if any.
func (s *Session) LastAnswer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAnswer
}

// Clear wipes history and pending state.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.pendingStory = nil
	s.pendingField = ""
	s.lastAnswer = ""
}

// Store holds sessions keyed by chat ID. Sessions live for the process
// lifetime; there is no persistence.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns the chat's session, creating it on first interaction.
func (st *Store) Get(chatID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[chatID]
	if !ok {
		s = &Session{}
		st.sessions[chatID] = s
	}
	return s
}
