// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeMalformedRequest represents a request body that cannot be decoded.
	CodeMalformedRequest Code = "MALFORMED_REQUEST"

	// Credential errors
	CodeInvalidCredential Code = "INVALID_CREDENTIAL"

	// User errors
	CodeUserEmptyName Code = "USER_EMPTY_NAME"

	// Room errors
	CodeRoomEmptyID           Code = "ROOM_EMPTY_ID"
	CodeRoomInvalidLive       Code = "ROOM_INVALID_LIVE"
	CodeRoomInvalidDifficulty Code = "ROOM_INVALID_DIFFICULTY"
	CodeRoomInvalidResult     Code = "ROOM_INVALID_RESULT"

	// State errors
	CodeInvalidState Code = "INVALID_STATE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeMalformedRequest,
		CodeUserEmptyName,
		CodeRoomEmptyID,
		CodeRoomInvalidLive,
		CodeRoomInvalidDifficulty,
		CodeRoomInvalidResult:
		return http.StatusBadRequest

	// Unauthorized - credential does not resolve to a user
	case CodeInvalidCredential:
		return http.StatusUnauthorized

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - state doesn't allow operation
	case CodeInvalidState:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
