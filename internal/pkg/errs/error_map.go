/*
Package errs provides the custom error type and application error codes.

This file maps every error code to its CustomError template, standardizing the
message and HTTP status attached to each failure.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Chat Content Errors
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrMessageEmpty:          {Code: ErrMessageEmpty, Message: "Message is empty."},

	// 3xxx: Authentication and Session Errors
	ErrInvalidPassword: {Code: ErrInvalidPassword, Message: "Invalid password."},
	ErrInvalidSession:  {Code: ErrInvalidSession, Message: "Session invalid. Please log in again."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
