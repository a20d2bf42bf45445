package remote

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call. Callers branch on it to decide
// between a failure toast (network), a re-auth redirect (auth), and showing
// the backend's message verbatim (query).
type Kind int

const (
	// KindNetwork is a transport-level failure: the call never produced an
	// HTTP response. The mirror keeps its last-known-good snapshot.
	KindNetwork Kind = iota + 1
	// KindAuth is an invalid or expired session (401/403).
	KindAuth
	// KindQuery is any other backend rejection, constraint violations
	// included. The backend message is passed through untouched.
	KindQuery
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindQuery:
		return "query"
	}
	return "unknown"
}

// Error is the only error type this package returns. Nothing is retried and
// nothing is swallowed; every caller is expected to catch and present.
type Error struct {
	Kind       Kind
	Op         string // fetch, count, mutate, upload, signin, subscribe
	Collection string
	Status     int    // HTTP status, 0 when the call never got a response
	Message    string // backend-supplied message, verbatim
	Err        error
}

func (e *Error) Error() string {
	target := e.Op
	if e.Collection != "" {
		target = fmt.Sprintf("%s %s", e.Op, e.Collection)
	}
	if e.Message != "" {
		return fmt.Sprintf("remote %s: %s failed: %s", e.Kind, target, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("remote %s: %s failed: %v", e.Kind, target, e.Err)
	}
	return fmt.Sprintf("remote %s: %s failed: status %d", e.Kind, target, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func isKind(err error, k Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == k
}

func IsNetwork(err error) bool { return isKind(err, KindNetwork) }
func IsAuth(err error) bool    { return isKind(err, KindAuth) }
func IsQuery(err error) bool   { return isKind(err, KindQuery) }
