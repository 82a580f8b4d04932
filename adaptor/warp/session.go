package warp

import (
	"sync"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"github.com/relaygate/core/errs"
)

// SessionTTL bounds how long a Warp multi-turn session is retained after its
// last touch; there is no durability requirement beyond this.
const SessionTTL = 30 * time.Minute

// MessageKind tags one stored Session message.
type MessageKind string

const (
	KindUserQuery    MessageKind = "user_query"
	KindAssistantText MessageKind = "assistant_text"
	KindToolCall     MessageKind = "tool_call"
	KindToolResult   MessageKind = "tool_result"
	KindReasoning    MessageKind = "reasoning"
)

// SessionMessage is one stored turn in a Session's history.
type SessionMessage struct {
	ID        string
	Kind      MessageKind
	Text      string
	CallID    string
	ToolName  string
	CreatedAt time.Time
}

// Session is the Warp multi-turn conversation state held across requests
// sharing the same conversation id.
type Session struct {
	ID         string
	CascadeID  string
	TurnID     string
	WorkingDir string
	HomeDir    string
	Shell      string
	Model      string
	Messages   []SessionMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time

	mu          sync.Mutex
	toolUseIDs  map[string]string // tool_use_id -> tool name, for cross-turn validation
}

// NewSession creates a Session seeded with a fresh id and turn.
func NewSession(model, workingDir, homeDir, shell string) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.NewString(),
		CascadeID:  uuid.NewString(),
		TurnID:     uuid.NewString(),
		WorkingDir: workingDir,
		HomeDir:    homeDir,
		Shell:      shell,
		Model:      model,
		CreatedAt:  now,
		UpdatedAt:  now,
		toolUseIDs: map[string]string{},
	}
}

// RotateTurn assigns a fresh turn id, called on every new user query.
func (s *Session) RotateTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TurnID = uuid.NewString()
	s.UpdatedAt = time.Now()
}

// RecordToolCall remembers the tool name for a tool_use_id so a later
// tool_result in the same session can be validated and correctly routed.
func (s *Session) RecordToolCall(toolUseID, toolName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolUseIDs[toolUseID] = toolName
}

// ToolNameFor returns the tool name registered for toolUseID, and whether a
// prior tool_call with that id exists in this session.
func (s *Session) ToolNameFor(toolUseID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.toolUseIDs[toolUseID]
	return name, ok
}

// AppendMessage records a turn and touches UpdatedAt.
func (s *Session) AppendMessage(m SessionMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = time.Now()
}

// SessionStore is the shared in-memory session map, TTL-swept opportunistically
// on every insert.
type SessionStore struct {
	cache *cache.Cache
}

func NewSessionStore() *SessionStore {
	return &SessionStore{cache: cache.New(SessionTTL, time.Minute)}
}

// GetOrCreate returns the session for id, creating one seeded from the given
// defaults if absent or expired.
func (s *SessionStore) GetOrCreate(id, model, workingDir, homeDir, shell string) *Session {
	if v, found := s.cache.Get(id); found {
		sess := v.(*Session)
		s.cache.Set(id, sess, SessionTTL)
		return sess
	}
	sess := NewSession(model, workingDir, homeDir, shell)
	sess.ID = id
	s.cache.Set(id, sess, SessionTTL)
	return sess
}

// Get returns the session for id if present and unexpired.
func (s *SessionStore) Get(id string) (*Session, bool) {
	v, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	return v.(*Session), true
}

// ValidateToolResult enforces the invariant that every tool_result references
// a tool_use_id emitted earlier in the same session.
func ValidateToolResult(sess *Session, toolUseID string) error {
	if _, ok := sess.ToolNameFor(toolUseID); !ok {
		return errs.ProtocolError("tool_result references unknown tool_use_id "+toolUseID, nil)
	}
	return nil
}
