package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeSessionNotFound, "race session not found")

	if !stderrors.Is(err, New(CodeSessionNotFound, "different message")) {
		t.Fatal("expected code match")
	}
	if stderrors.Is(err, New(CodeSessionFull, "race session not found")) {
		t.Fatal("unexpected match across codes")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Wrap(CodeMirrorUnavailable, "mirror write failed", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to match")
	}
}

func TestCodeOfWalksWrappedChain(t *testing.T) {
	inner := New(CodeSessionAlreadyStarted, "race already started")
	outer := fmt.Errorf("join session: %w", inner)

	if got := CodeOf(outer); got != CodeSessionAlreadyStarted {
		t.Fatalf("code = %q, want %q", got, CodeSessionAlreadyStarted)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeSessionNotFound, http.StatusNotFound},
		{CodeSessionAlreadyStarted, http.StatusConflict},
		{CodeSessionFull, http.StatusConflict},
		{CodeParticipantNotFound, http.StatusBadRequest},
		{CodeEventMalformed, http.StatusBadRequest},
		{CodeMirrorUnavailable, http.StatusServiceUnavailable},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s status = %d, want %d", tc.code, got, tc.want)
		}
	}
}
