package supplier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", &NotFoundError{Input: "x"}, false},
		{"wrapped not found", fmt.Errorf("lookup: %w", &NotFoundError{Input: "x"}), false},
		{"auth expired", ErrAuthExpired, false},
		{"circuit open", ErrCircuitOpen, false},
		{"http 500", &StatusError{Status: 500}, true},
		{"http 502", &StatusError{Status: 502}, true},
		{"http 429", &StatusError{Status: 429}, true},
		{"http 403", &StatusError{Status: 403}, false},
		{"http 404", &StatusError{Status: 404}, false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"unexpected EOF", errors.New("unexpected EOF"), true},
		{"context canceled", context.Canceled, false},
		{"plain error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNotFoundError_Message(t *testing.T) {
	err := &NotFoundError{Input: "CJCT25677400001", Attempts: []string{MethodSecondaryKey, MethodPrimaryKey}}

	msg := err.Error()
	if !strings.Contains(msg, "CJCT25677400001") {
		t.Errorf("message %q must name the input", msg)
	}
	if !strings.Contains(msg, MethodSecondaryKey) || !strings.Contains(msg, MethodPrimaryKey) {
		t.Errorf("message %q must list the attempted methods", msg)
	}
}

func TestStatusError_TruncatesBody(t *testing.T) {
	err := &StatusError{Status: 502, Body: strings.Repeat("x", 500)}

	if len(err.Error()) > 300 {
		t.Errorf("error message is %d chars, body must be truncated", len(err.Error()))
	}
}
