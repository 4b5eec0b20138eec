package model

import (
	"errors"
	"strings"
	"testing"
)

func TestNewStorageError_HidesCauseFromMessage(t *testing.T) {
	cause := errors.New("pq: relation \"notes\" does not exist")
	err := NewStorageError(cause)

	if err.Message != "Database error" {
		t.Errorf("Message = %q, want %q", err.Message, "Database error")
	}
	if strings.Contains(err.Message, "relation") {
		t.Error("Message should not leak the underlying error")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestAPIError_ErrorString(t *testing.T) {
	err := NewUnauthorizedError()
	if got := err.Error(); got != "[UNAUTHORIZED] Unauthorized" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := NewUpstreamError(errors.New("dial tcp: refused"))
	if !strings.Contains(wrapped.Error(), "dial tcp: refused") {
		t.Errorf("Error() = %q, should contain cause", wrapped.Error())
	}
}

func TestAPIError_ErrorsAs(t *testing.T) {
	var err error = NewNoteNotFoundError()

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("errors.As should match *APIError")
	}
	if apiErr.Code != ErrCodeNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeNotFound)
	}
}

func TestNoteUpdate_IsEmpty(t *testing.T) {
	title := "t"
	tests := []struct {
		name string
		u    NoteUpdate
		want bool
	}{
		{"no fields", NoteUpdate{}, true},
		{"title only", NoteUpdate{Title: &title}, false},
		{"content only", NoteUpdate{Content: &title}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.u.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}
