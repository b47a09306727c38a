/*
Package user contains the identity structures shared across the chat engine.

It defines the wire-facing User snapshot embedded in events and chat messages,
and the Connected record the connection registry keeps for every authenticated
connection.
*/
package user

import "time"

// User is the public identity snapshot of a chat participant as clients see
// it in events and message author fields.
type User struct {

	// ID is the identifier of the connection the participant is speaking
	// through. It changes on every reconnect; Username is the stable key.
	ID string `json:"id"`

	// Username is the display and account name of the participant.
	Username string `json:"username"`

	// Avatar is the display token (typically an emoji) chosen at registration.
	Avatar string `json:"avatar,omitempty"`
}

// System is the pseudo-identity attached to server-generated messages.
var System = User{ID: "system", Username: "system"}

// Connected is the registry record for one authenticated connection.
// Exactly one exists per connection between login and logout/disconnect.
type Connected struct {
	// ConnID is the transport connection this record is bound to.
	ConnID string

	// Username of the authenticated account.
	Username string

	// Avatar resolved at login time (the stored credential avatar wins over
	// whatever the client supplied).
	Avatar string

	// JoinedAt is when this connection authenticated.
	JoinedAt time.Time

	// SessionToken is the token acknowledged to the client for later resumption.
	SessionToken string
}

// User returns the wire-facing snapshot for this connection.
func (c Connected) User() User {
	return User{
		ID:       c.ConnID,
		Username: c.Username,
		Avatar:   c.Avatar,
	}
}
