/*
Package chat contains the session & broadcast engine.

This file defines the typing set: the ephemeral membership of connections that
are currently signaling "typing". Markers have no timeout; they disappear on
an explicit stop or when the connection is torn down. The collaborating client
debounces its own typing-stop about a second after the last keystroke.
*/
package chat

// TypingSet tracks connection ids with an active typing marker. Only touched
// from the hub goroutine.
type TypingSet struct {
	members map[string]struct{}
}

// NewTypingSet creates an empty TypingSet.
func NewTypingSet() *TypingSet {
	return &TypingSet{
		members: make(map[string]struct{}),
	}
}

// Mark adds connID to the set. Idempotent.
func (t *TypingSet) Mark(connID string) {
	t.members[connID] = struct{}{}
}

// Unmark removes connID from the set. No-op when absent.
func (t *TypingSet) Unmark(connID string) {
	delete(t.members, connID)
}

// Contains reports whether connID currently has a typing marker.
func (t *TypingSet) Contains(connID string) bool {
	_, ok := t.members[connID]
	return ok
}

// Len reports how many connections are currently typing.
func (t *TypingSet) Len() int {
	return len(t.members)
}
