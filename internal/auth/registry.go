package auth

import "sync"

// Registry remembers the role each user last authenticated with. The
// expiry-warning sweeps consult it to skip records owned by administrators,
// whose edit window never closes.
type Registry struct {
	mu    sync.RWMutex
	roles map[string]Role
}

// NewRegistry creates an empty role registry.
func NewRegistry() *Registry {
	return &Registry{roles: make(map[string]Role)}
}

// Record stores the role carried by a parsed identity.
func (r *Registry) Record(ident Identity) {
	if ident.UserID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[ident.UserID] = ident.Role
}

// RoleOf reports the last known role for a user id.
func (r *Registry) RoleOf(userID string) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[userID]
	return role, ok
}
