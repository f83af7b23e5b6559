package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"rate limited", &AdapterError{Provider: "google", Status: 429}, true},
		{"server fault", &AdapterError{Provider: "openai", Status: 503}, true},
		{"bad request", &AdapterError{Provider: "openai", Status: 400}, false},
		{"temporary flag", &AdapterError{Provider: "anthropic", Temporary: true}, true},
		{"wrapped", fmt.Errorf("stage: %w", &AdapterError{Provider: "google", Status: 500}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestAdapterErrorMessage(t *testing.T) {
	err := &AdapterError{Provider: "google", Err: errors.New("quota exceeded")}
	if got := err.Error(); got != "google: quota exceeded" {
		t.Errorf("Error() = %q", got)
	}

	statusOnly := &AdapterError{Provider: "openai", Status: 502}
	if got := statusOnly.Error(); got != "openai: status 502" {
		t.Errorf("Error() = %q", got)
	}
}
