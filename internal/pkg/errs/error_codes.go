/*
Package errs provides the custom error type and application error codes.

The codes identify specific business or transport failures both inside the
server and on the wire to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrRateLimitExceeded indicates that the request rate exceeded the configured limit.
	ErrRateLimitExceeded = 1002
)

// 2xxx: Chat Content Errors
const (
	// ErrMessageContentTooLong indicates that a chat message exceeded the maximum length.
	ErrMessageContentTooLong = 2001

	// ErrMessageEmpty indicates that a chat message carried no text.
	ErrMessageEmpty = 2002
)

// 3xxx: Authentication and Session Errors
const (
	// ErrInvalidPassword indicates a credential mismatch for an already registered username.
	ErrInvalidPassword = 3101

	// ErrInvalidSession indicates an unknown, expired, or mismatched session token on resumption.
	ErrInvalidSession = 3102
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000
)
