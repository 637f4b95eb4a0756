// Package errors provides coded domain errors for the race coordinator.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionNotFound       Code = "SESSION_NOT_FOUND"
	CodeSessionAlreadyStarted Code = "SESSION_ALREADY_STARTED"
	CodeSessionFull           Code = "SESSION_FULL"
	CodeSessionTracksRequired Code = "SESSION_TRACKS_REQUIRED"

	// Participant errors
	CodeParticipantNotFound Code = "PARTICIPANT_NOT_FOUND"

	// Event errors
	CodeEventMalformed Code = "EVENT_MALFORMED"

	// Storage errors
	CodeMirrorUnavailable Code = "MIRROR_UNAVAILABLE"
)

// HTTPStatus maps the code to an HTTP response status for the admission
// surface.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeSessionAlreadyStarted, CodeSessionFull:
		return http.StatusConflict
	case CodeSessionTracksRequired, CodeParticipantNotFound, CodeEventMalformed:
		return http.StatusBadRequest
	case CodeMirrorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
