package editwindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/razamarafat/morvarid-APP-sub000/internal/auth"
)

func TestEditable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		age  time.Duration
		role auth.Role
		want bool
	}{
		{"fresh record", time.Minute, auth.RoleRegistration, true},
		{"just inside window", 4*time.Hour + 59*time.Minute, auth.RoleRegistration, true},
		{"just outside window", 5*time.Hour + time.Minute, auth.RoleRegistration, false},
		{"exactly at boundary", 5 * time.Hour, auth.RoleRegistration, false},
		{"admin inside", time.Minute, auth.RoleAdmin, true},
		{"admin outside", 5*time.Hour + time.Minute, auth.RoleAdmin, true},
		{"sales outside", 6 * time.Hour, auth.RoleSales, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Editable(now, now.Add(-tt.age), tt.role))
		})
	}
}

func TestRemaining(t *testing.T) {
	now := time.Now()
	assert.Equal(t, time.Hour, Remaining(now, now.Add(-4*time.Hour)))
	assert.Equal(t, time.Duration(0), Remaining(now, now.Add(-6*time.Hour)))
}

func TestWarnerFiresOncePerRecord(t *testing.T) {
	w := NewWarner()
	now := time.Now()
	createdAt := now.Add(-(4*time.Hour + 5*time.Minute))

	assert.True(t, w.ShouldWarn("rec-1", now, createdAt))
	assert.False(t, w.ShouldWarn("rec-1", now, createdAt), "second check must not re-fire")
	assert.True(t, w.ShouldWarn("rec-2", now, createdAt), "independent records warn independently")
}

func TestWarnerRespectsSpan(t *testing.T) {
	w := NewWarner()
	now := time.Now()

	assert.False(t, w.ShouldWarn("early", now, now.Add(-3*time.Hour)))
	assert.False(t, w.ShouldWarn("late", now, now.Add(-(4*time.Hour+11*time.Minute))))
	assert.True(t, w.ShouldWarn("in-span", now, now.Add(-(4*time.Hour+9*time.Minute))))
}
