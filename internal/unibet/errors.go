package unibet

import "fmt"

// TransportError is a network-level failure (refused connection, timeout).
// During login bootstrap it is recoverable by a single session rebuild;
// during placement it is surfaced as a fatal result so money-moving calls
// are never silently duplicated.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is an unexpected response shape. The raw body is kept so the
// failure can be diagnosed from logs.
type ProtocolError struct {
	Op   string
	Body string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (body: %s)", e.Op, e.Err, preview(e.Body))
	}
	return fmt.Sprintf("%s: unexpected response (body: %s)", e.Op, preview(e.Body))
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// AuthError is a terminal login failure: rejected credentials, a blocked
// account, or a bot challenge. It is never retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "login failed: " + e.Reason
}

func preview(s string) string {
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
