package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// RemoteError marks a failure of one of the remote collaborators (embedding,
// vector search, generation). The pipeline decides per call site whether it
// is fatal or degrades to a fallback.
type RemoteError struct {
	Service string
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// NewRemoteError wraps err as a failure of the named service.
func NewRemoteError(service string, err error) *RemoteError {
	return &RemoteError{Service: service, Err: err}
}

// IsRemote reports whether err originates from a remote collaborator.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// Backoff computes a capped linear backoff duration: base scaled by the
// attempt number, never exceeding cap. Attempts are 1-based.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base * time.Duration(attempt)
	if d > cap {
		return cap
	}
	return d
}

// IsTransient classifies connectivity-level failures (refused connections,
// timeouts) that store operations degrade on rather than propagate.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
