package api

import "fmt"

// AuthError reports rejected credentials. The only remote failure surfaced
// to the user directly.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed: %s", e.Message)
	}
	return fmt.Sprintf("authentication failed (status %d)", e.StatusCode)
}

// FetchError reports a failed remote read. Callers recover by falling back
// to cached state; the error is logged, never shown as a blocking failure.
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.Op, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SendError reports a failed remote write. Optimistic local state is kept
// and the discrepancy is logged rather than reconciled.
type SendError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("send %s: status %d", e.Op, e.StatusCode)
}

func (e *SendError) Unwrap() error { return e.Err }
