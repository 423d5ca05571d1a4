package reliability

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func TestBackoffCapped(t *testing.T) {
	base := 50 * time.Millisecond
	cap := 2 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 50 * time.Millisecond},
		{1, 50 * time.Millisecond},
		{3, 150 * time.Millisecond},
		{40, 2 * time.Second},
		{1000, 2 * time.Second},
	}
	for _, tc := range cases {
		if got := Backoff(tc.attempt, base, cap); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestRemoteErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewRemoteError("qdrant", inner)

	if !IsRemote(err) {
		t.Fatalf("IsRemote() should be true")
	}
	if !errors.Is(err, inner) {
		t.Fatalf("wrapped error should unwrap to inner")
	}
	if IsRemote(fmt.Errorf("plain: %w", inner)) {
		t.Errorf("IsRemote() should be false for plain errors")
	}

	wrapped := fmt.Errorf("pipeline: %w", err)
	if !IsRemote(wrapped) {
		t.Errorf("IsRemote() should see through wrapping")
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(context.DeadlineExceeded) {
		t.Errorf("deadline exceeded should be transient")
	}
	if !IsTransient(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)) {
		t.Errorf("connection refused should be transient")
	}
	if IsTransient(errors.New("malformed payload")) {
		t.Errorf("arbitrary errors are not transient")
	}
	if IsTransient(nil) {
		t.Errorf("nil is not transient")
	}
}
