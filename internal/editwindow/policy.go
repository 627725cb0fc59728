// Package editwindow implements the 5-hour lock on statistics and invoices.
// Lock state is a pure function of (now, createdAt, role), evaluated at
// action time rather than by a scheduled transition, which keeps the policy
// immune to clock-drift bugs.
package editwindow

import (
	"sync"
	"time"

	"github.com/razamarafat/morvarid-APP-sub000/internal/auth"
)

const (
	// Window is how long non-admin roles may edit a record after creation.
	Window = 5 * time.Hour
	// warnAfter..warnUntil is the span in which the expiration warning
	// fires, once per record per session.
	warnAfter = 4 * time.Hour
	warnUntil = 4*time.Hour + 10*time.Minute
)

// Editable reports whether a record created at createdAt may still be
// edited by the given role at time now. Administrators always may.
func Editable(now, createdAt time.Time, role auth.Role) bool {
	if role.IsAdmin() {
		return true
	}
	return now.Sub(createdAt) < Window
}

// Remaining returns how much of the edit window is left, clamped at zero.
func Remaining(now, createdAt time.Time) time.Duration {
	left := Window - now.Sub(createdAt)
	if left < 0 {
		return 0
	}
	return left
}

// Warner tracks which records have already received their expiration
// warning in this session.
type Warner struct {
	mu     sync.Mutex
	warned map[string]struct{}
}

// NewWarner creates an empty warning tracker.
func NewWarner() *Warner {
	return &Warner{warned: make(map[string]struct{})}
}

// ShouldWarn reports whether the expiration warning for recordID should
// fire now, and marks it fired if so. It only ever returns true once per
// record, and only inside the warning span.
func (w *Warner) ShouldWarn(recordID string, now, createdAt time.Time) bool {
	age := now.Sub(createdAt)
	if age < warnAfter || age >= warnUntil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, done := w.warned[recordID]; done {
		return false
	}
	w.warned[recordID] = struct{}{}
	return true
}
