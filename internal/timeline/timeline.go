// Package timeline keeps the ordered list of chat messages shown to the user.
package timeline

import (
	"errors"
	"sync"
	"time"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

var (
	ErrPendingExists = errors.New("a pending message already exists")
	ErrNoPending     = errors.New("no pending message")
)

// Message is one entry of the timeline. IDs are unique for the lifetime of
// the timeline and never reused.
type Message struct {
	ID        uint64    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Pending   bool      `json:"pending,omitempty"`
	// Replaces is the ID of the placeholder this message took the place of.
	Replaces uint64 `json:"replaces,omitempty"`
}

// Timeline is append-only apart from ResolvePending, which swaps the single
// pending placeholder for its final message in the same position.
type Timeline struct {
	mu       sync.RWMutex
	messages []Message
	lastID   uint64
	pending  int // index of the pending message, -1 when none

	now func() time.Time
}

func New() *Timeline {
	return &Timeline{pending: -1, now: time.Now}
}

func (t *Timeline) Append(role Role, content string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.newMessage(role, content)
	t.messages = append(t.messages, m)
	return m
}

// AppendPending adds the bot placeholder for an in-flight turn.
func (t *Timeline) AppendPending() (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending >= 0 {
		return Message{}, ErrPendingExists
	}

	m := t.newMessage(RoleBot, "")
	m.Pending = true
	t.messages = append(t.messages, m)
	t.pending = len(t.messages) - 1
	return m, nil
}

// ResolvePending replaces the placeholder with the final bot message.
func (t *Timeline) ResolvePending(content string) (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending < 0 {
		return Message{}, ErrNoPending
	}

	m := t.newMessage(RoleBot, content)
	m.Replaces = t.messages[t.pending].ID
	t.messages[t.pending] = m
	t.pending = -1
	return m, nil
}

func (t *Timeline) Pending() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.pending < 0 {
		return Message{}, false
	}
	return t.messages[t.pending], true
}

// Snapshot returns a copy of the messages in display order.
func (t *Timeline) Snapshot() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

func (t *Timeline) newMessage(role Role, content string) Message {
	t.lastID++
	return Message{
		ID:        t.lastID,
		Role:      role,
		Content:   content,
		CreatedAt: t.now(),
	}
}
