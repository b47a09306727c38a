/*
Package history keeps the bounded, append-only chat message log that is
replayed to every newly authenticated connection.

The log retains at most its configured limit; once full, the oldest messages
are dropped as new ones arrive. Messages are immutable after append and there
is no per-message deletion.

The log is not safe for concurrent use. It is owned by the hub goroutine,
which serializes every call (see the chat package).
*/
package history

import (
	"time"

	"huddle/internal/app/user"
)

// Kind distinguishes ordinary chat messages from server-generated notices.
type Kind string

const (
	// KindMessage is a user-authored chat message.
	KindMessage Kind = "message"

	// KindSystem is a server-generated notice, such as a join announcement.
	KindSystem Kind = "system"
)

// Message is one immutable chat log entry. Author is a snapshot of the
// sender's identity at send time; it does not track later reconnects.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    user.User `json:"user"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
}

// Log is the bounded message sequence.
type Log struct {
	limit    int
	messages []Message
}

// NewLog creates an empty Log retaining at most limit messages.
func NewLog(limit int) *Log {
	return &Log{
		limit:    limit,
		messages: make([]Message, 0, limit),
	}
}

// Append adds a message at the tail, then trims from the head until the log
// is back within its retention limit.
func (l *Log) Append(msg Message) {
	l.messages = append(l.messages, msg)

	if over := len(l.messages) - l.limit; over > 0 {
		l.messages = append(l.messages[:0:0], l.messages[over:]...)
	}
}

// History returns a copy of the current log in insertion order. Callers hold
// the copy across later appends without observing them.
func (l *Log) History() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len reports how many messages the log currently retains.
func (l *Log) Len() int {
	return len(l.messages)
}
