// Package remote defines the boundary to the hosted table backend: row CRUD
// with filters, head-only counts, realtime change notifications and a
// pub/sub broadcast channel. The rest of the application only ever sees the
// Store interface.
package remote

import "context"

// Row is a single table row in wire form. The backend maintains an
// updated_at column on every table; it is the input to conflict detection.
type Row map[string]any

// Filter is a column-equality filter applied to Select/Count.
type Filter map[string]any

// Change is a realtime row-change notification.
type Change struct {
	Table string
	Row   Row
}

// Store is the remote data backend contract.
type Store interface {
	Select(ctx context.Context, table string, filter Filter) ([]Row, error)
	// Insert supports multi-row inserts in one call; a multi-row insert
	// fails or succeeds atomically.
	Insert(ctx context.Context, table string, rows []Row) error
	Update(ctx context.Context, table string, id string, patch Row) error
	Delete(ctx context.Context, table string, id string) error
	// Count issues a head-only count, also used as the connectivity probe.
	Count(ctx context.Context, table string, filter Filter) (int, error)
	// Subscribe registers a row-change listener and returns its unsubscribe.
	Subscribe(ctx context.Context, table string, fn func(Change)) (func(), error)
	Broadcast(ctx context.Context, channel, event string, payload any) error
	OnBroadcast(channel, event string, fn func(payload []byte)) func()
}

// ID extracts the row id, tolerating both string and numeric encodings.
func (r Row) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return toString(v)
	}
}
