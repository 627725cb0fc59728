package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Fake is an in-memory Store used by the test suites and by local
// development without backend credentials. It maintains updated_at the way
// the real backend does and supports per-table fault injection.
type Fake struct {
	mu        sync.Mutex
	tables    map[string][]Row
	seq       int
	offline   bool
	failures  map[string]error // table -> error returned by every call
	clock     func() time.Time
	listeners map[string][]func(Change)
	broadcast map[string][]func([]byte)

	InsertCalls [][]Row // recorded batch inserts, newest last
}

// NewFake returns an empty fake store.
func NewFake() *Fake {
	return &Fake{
		tables:    make(map[string][]Row),
		failures:  make(map[string]error),
		clock:     time.Now,
		listeners: make(map[string][]func(Change)),
		broadcast: make(map[string][]func([]byte)),
	}
}

// SetClock overrides the updated_at clock.
func (f *Fake) SetClock(fn func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = fn
}

// SetOffline makes every call fail with a network-classified error.
func (f *Fake) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// FailTable makes every call against table return err; nil clears it.
func (f *Fake) FailTable(table string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, table)
		return
	}
	f.failures[table] = err
}

// Seed inserts rows without touching updated_at bookkeeping or listeners.
func (f *Fake) Seed(table string, rows ...Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range rows {
		if row["id"] == nil {
			f.seq++
			row["id"] = fmt.Sprintf("row-%d", f.seq)
		}
		if row["updated_at"] == nil {
			row["updated_at"] = f.clock().UTC().Format(time.RFC3339Nano)
		}
		f.tables[table] = append(f.tables[table], row)
	}
}

// Touch bumps a row's updated_at to t, simulating a write by another client.
func (f *Fake) Touch(table, id string, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.tables[table] {
		if row.ID() == id {
			row["updated_at"] = t.UTC().Format(time.RFC3339Nano)
		}
	}
}

// Rows returns a copy of the table contents.
func (f *Fake) Rows(table string) []Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Row, len(f.tables[table]))
	copy(out, f.tables[table])
	return out
}

func (f *Fake) gate(table string) error {
	if f.offline {
		return &StoreError{Kind: KindNetwork, Table: table, Message: "connection refused"}
	}
	if err := f.failures[table]; err != nil {
		return err
	}
	return nil
}

func (f *Fake) Select(ctx context.Context, table string, filter Filter) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.gate(table); err != nil {
		return nil, err
	}
	var out []Row
	for _, row := range f.tables[table] {
		if matches(row, filter) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *Fake) Insert(ctx context.Context, table string, rows []Row) error {
	f.mu.Lock()
	if err := f.gate(table); err != nil {
		f.mu.Unlock()
		return err
	}
	f.InsertCalls = append(f.InsertCalls, rows)
	var changes []Change
	for _, row := range rows {
		if row["id"] == nil {
			f.seq++
			row["id"] = fmt.Sprintf("row-%d", f.seq)
		}
		row["updated_at"] = f.clock().UTC().Format(time.RFC3339Nano)
		f.tables[table] = append(f.tables[table], row)
		changes = append(changes, Change{Table: table, Row: row})
	}
	listeners := append([]func(Change){}, f.listeners[table]...)
	f.mu.Unlock()

	for _, fn := range listeners {
		for _, ch := range changes {
			fn(ch)
		}
	}
	return nil
}

func (f *Fake) Update(ctx context.Context, table string, id string, patch Row) error {
	f.mu.Lock()
	if err := f.gate(table); err != nil {
		f.mu.Unlock()
		return err
	}
	var changed *Change
	for _, row := range f.tables[table] {
		if row.ID() == id {
			for k, v := range patch {
				row[k] = v
			}
			row["updated_at"] = f.clock().UTC().Format(time.RFC3339Nano)
			changed = &Change{Table: table, Row: row}
			break
		}
	}
	listeners := append([]func(Change){}, f.listeners[table]...)
	f.mu.Unlock()

	if changed != nil {
		for _, fn := range listeners {
			fn(*changed)
		}
	}
	return nil
}

func (f *Fake) Delete(ctx context.Context, table string, id string) error {
	f.mu.Lock()
	if err := f.gate(table); err != nil {
		f.mu.Unlock()
		return err
	}
	var removed *Change
	rows := f.tables[table]
	for i, row := range rows {
		if row.ID() == id {
			f.tables[table] = append(rows[:i], rows[i+1:]...)
			removed = &Change{Table: table, Row: row}
			break
		}
	}
	listeners := append([]func(Change){}, f.listeners[table]...)
	f.mu.Unlock()

	if removed != nil {
		for _, fn := range listeners {
			fn(*removed)
		}
	}
	return nil
}

func (f *Fake) Count(ctx context.Context, table string, filter Filter) (int, error) {
	rows, err := f.Select(ctx, table, filter)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (f *Fake) Subscribe(ctx context.Context, table string, fn func(Change)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners[table] = append(f.listeners[table], fn)
	return func() {}, nil
}

func (f *Fake) Broadcast(ctx context.Context, channel, event string, payload any) error {
	f.mu.Lock()
	if err := f.gate(channel); err != nil {
		f.mu.Unlock()
		return err
	}
	handlers := append([]func([]byte){}, f.broadcast[channel+"|"+event]...)
	f.mu.Unlock()

	data, ok := payload.([]byte)
	if !ok {
		data, _ = json.Marshal(payload)
	}
	for _, fn := range handlers {
		fn(data)
	}
	return nil
}

func (f *Fake) OnBroadcast(channel, event string, fn func(payload []byte)) func() {
	key := channel + "|" + event
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast[key] = append(f.broadcast[key], fn)
	return func() {}
}

func matches(row Row, filter Filter) bool {
	for col, want := range filter {
		if toString(row[col]) != toString(want) {
			return false
		}
	}
	return true
}
