package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeNotFound, "room missing")
	wrapped := fmt.Errorf("lookup: %w", err)

	if !stderrors.Is(wrapped, New(CodeNotFound, "anything")) {
		t.Fatal("expected code match through wrapping")
	}
	if stderrors.Is(wrapped, New(CodeInvalidState, "anything")) {
		t.Fatal("expected mismatch for different code")
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := stderrors.New("disk failure")
	err := Wrap(CodeUnknown, "read room", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in error chain")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil chain", stderrors.New("plain"), CodeUnknown},
		{"direct", New(CodeInvalidCredential, "bad token"), CodeInvalidCredential},
		{"wrapped", fmt.Errorf("resolve: %w", New(CodeInvalidState, "not waiting")), CodeInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Fatalf("GetCode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetMetadata(t *testing.T) {
	err := WithMetadata(CodeRoomInvalidDifficulty, "bad difficulty", map[string]string{"Difficulty": "5"})

	meta := GetMetadata(fmt.Errorf("join: %w", err))
	if meta["Difficulty"] != "5" {
		t.Fatalf("metadata Difficulty = %q, want %q", meta["Difficulty"], "5")
	}
	if GetMetadata(stderrors.New("plain")) != nil {
		t.Fatal("expected nil metadata for plain error")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeMalformedRequest, http.StatusBadRequest},
		{CodeUserEmptyName, http.StatusBadRequest},
		{CodeRoomEmptyID, http.StatusBadRequest},
		{CodeRoomInvalidLive, http.StatusBadRequest},
		{CodeRoomInvalidDifficulty, http.StatusBadRequest},
		{CodeRoomInvalidResult, http.StatusBadRequest},
		{CodeInvalidCredential, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeInvalidState, http.StatusConflict},
		{CodeUnknown, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
