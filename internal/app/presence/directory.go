/*
Package presence tracks the durable user roster: every username that has ever
logged in, with its avatar and current online/offline status.

Entries survive disconnects; a user who drops off the network stays in the
roster as offline. This is deliberately separate from the connection registry,
which only knows about live connections.

The directory is not safe for concurrent use. It is owned by the hub
goroutine, which serializes every call (see the chat package).
*/
package presence

import "sort"

// Status is the online/offline state of a roster entry.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Entry is one roster row, keyed by username.
type Entry struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Status   Status `json:"status"`
}

// Directory maps usernames to their roster entry.
type Directory struct {
	entries map[string]Entry
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		entries: make(map[string]Entry),
	}
}

// SetOnline inserts or updates the entry for username, marking it online and
// refreshing the avatar.
func (d *Directory) SetOnline(username, avatar string) {
	d.entries[username] = Entry{
		Username: username,
		Avatar:   avatar,
		Status:   StatusOnline,
	}
}

// SetOffline marks the entry for username offline. Unknown usernames are a
// no-op; logging out a user that never appeared in the roster must not fail.
func (d *Directory) SetOffline(username string) {
	entry, ok := d.entries[username]
	if !ok {
		return
	}

	entry.Status = StatusOffline
	d.entries[username] = entry
}

// Snapshot returns a copy of the full roster sorted by username. The fixed
// order keeps consecutive snapshots diffable on the client side.
func (d *Directory) Snapshot() []Entry {
	users := make([]Entry, 0, len(d.entries))
	for _, entry := range d.entries {
		users = append(users, entry)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})

	return users
}

// OnlineCount reports how many roster entries are currently online.
func (d *Directory) OnlineCount() int {
	count := 0
	for _, entry := range d.entries {
		if entry.Status == StatusOnline {
			count++
		}
	}
	return count
}

// Len reports the total roster size, online or not.
func (d *Directory) Len() int {
	return len(d.entries)
}
