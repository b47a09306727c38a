/*
Package randx generates the identifiers used across the chat engine.

Connections get UUID v4 identifiers; chat messages get ULIDs so that their ids
sort lexicographically in creation order, which keeps display ordering stable
for clients without a separate sequence number.
*/
package randx

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ConnectionID generates a UUID v4 string identifying a single transport connection.
func ConnectionID() string {
	return uuid.New().String()
}

// MessageID generates a ULID string for a chat message. ULIDs carry a
// millisecond timestamp prefix with monotonic entropy, so ids issued in
// sequence compare in issuance order.
func MessageID() string {
	return ulid.Make().String()
}

// TokenID generates the unique identifier embedded in a session token (the
// jti claim). Uniqueness here is what keeps two tokens issued to the same
// username in the same instant from colliding.
func TokenID() string {
	return uuid.New().String()
}

// IsValidMessageID reports whether the given string parses as a ULID.
func IsValidMessageID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
