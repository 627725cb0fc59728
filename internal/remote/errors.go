package remote

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind partitions remote failures into the classes the write boundary
// and the sync engine care about.
type ErrorKind int

const (
	// KindNetwork covers transport-layer failures; the only kind that sends
	// a mutation to the offline queue instead of the caller.
	KindNetwork ErrorKind = iota
	// KindValidation covers bad input rejected by the backend.
	KindValidation
	// KindDuplicate covers unique-constraint violations such as a reused
	// invoice number.
	KindDuplicate
	// KindSchema covers unknown-column style errors; callers may retry once
	// with a reduced payload before surfacing it.
	KindSchema
	// KindConflict is synthesized from timestamp comparison by the sync
	// engine, never returned by an adapter.
	KindConflict
)

// StoreError is the typed error returned by every Store implementation.
type StoreError struct {
	Kind    ErrorKind
	Table   string
	Message string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("remote store: %s (table=%s)", e.Message, e.Table)
}

// Kind returns the classified kind of err, or (0, false) when err is not a
// StoreError.
func Kind(err error) (ErrorKind, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsNetwork reports whether err should route a mutation into the offline
// queue. Beyond typed errors it falls back to the transport keywords the
// source matched on, so errors wrapped by other layers still classify.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	if k, ok := Kind(err); ok {
		return k == KindNetwork
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"fetch", "network", "connection", "offline", "timeout", "no such host"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// IsSchema reports whether err is a schema-mismatch error eligible for the
// reduced-payload retry.
func IsSchema(err error) bool {
	k, ok := Kind(err)
	return ok && k == KindSchema
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	k, ok := Kind(err)
	return ok && k == KindDuplicate
}

// classify maps a PostgREST error payload onto an ErrorKind.
func classify(status int, code, message string) ErrorKind {
	switch {
	case code == "23505" || status == 409:
		return KindDuplicate
	case code == "PGRST204" || code == "42703":
		return KindSchema
	default:
		return KindValidation
	}
}
