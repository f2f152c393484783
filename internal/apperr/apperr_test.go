package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindInvalidCredential, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindProtected, http.StatusBadRequest},
		{KindInvalidState, http.StatusConflict},
		{KindInternal, http.StatusInternalServerError},
		{Kind("bogus"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	base := NotFound("group not found")
	wrapped := fmt.Errorf("loading group: %w", base)

	if got := KindOf(wrapped); got != KindNotFound {
		t.Errorf("KindOf() = %q, want %q", got, KindNotFound)
	}
	if !Is(wrapped, KindNotFound) {
		t.Error("expected Is(wrapped, KindNotFound) to be true")
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if got := KindOf(errors.New("connection reset")); got != KindInternal {
		t.Errorf("KindOf() = %q, want %q", got, KindInternal)
	}
	if Is(nil, KindInternal) {
		t.Error("nil error should not match any kind")
	}
}

func TestErrorsIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", Forbidden("not the admin"))
	if !errors.Is(err, New(KindForbidden, "")) {
		t.Error("expected errors.Is to match by kind")
	}
	if errors.Is(err, New(KindNotFound, "")) {
		t.Error("expected errors.Is not to match a different kind")
	}
}

func TestWrap_UnwrapsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(KindConflict, "email already registered", cause)

	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
	if err.Error() != "email already registered: duplicate key" {
		t.Errorf("unexpected Error() text %q", err.Error())
	}
}

func TestMessage_HidesInternalDetail(t *testing.T) {
	if got := Message(errors.New("pq: relation users does not exist")); got != "internal server error" {
		t.Errorf("Message() = %q, want generic message", got)
	}
	if got := Message(Wrap(KindInternal, "insert failed", errors.New("boom"))); got != "internal server error" {
		t.Errorf("Message() = %q, want generic message for internal kind", got)
	}
	if got := Message(Validation("name is required")); got != "name is required" {
		t.Errorf("Message() = %q, want %q", got, "name is required")
	}
}
