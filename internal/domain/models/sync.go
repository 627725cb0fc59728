package models

import (
	"encoding/json"
	"time"
)

// OpType identifies the kind of mutation held by a queued item.
type OpType string

const (
	OpCreateStat    OpType = "CREATE_STAT"
	OpCreateInvoice OpType = "CREATE_INVOICE"
	OpUpdateStat    OpType = "UPDATE_STAT"
	OpUpdateInvoice OpType = "UPDATE_INVOICE"
	OpDeleteStat    OpType = "DELETE_STAT"
	OpDeleteInvoice OpType = "DELETE_INVOICE"
)

// IsCreate reports whether the operation is a pure create, eligible for the
// batched phase of a queue drain.
func (t OpType) IsCreate() bool {
	return t == OpCreateStat || t == OpCreateInvoice
}

// IsUpdate reports whether the operation needs conflict detection before
// being replayed.
func (t OpType) IsUpdate() bool {
	return t == OpUpdateStat || t == OpUpdateInvoice
}

// Table returns the remote table the operation targets.
func (t OpType) Table() string {
	switch t {
	case OpCreateStat, OpUpdateStat, OpDeleteStat:
		return "daily_statistics"
	default:
		return "invoices"
	}
}

// SyncQueueItem is one pending offline mutation. Timestamp is the client
// time of the original user action, which the engine compares against the
// server-side updated_at during conflict detection.
type SyncQueueItem struct {
	ID         string          `json:"id"`
	Type       OpType          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
}

// SyncFailureLogEntry is an append-only diagnostic record of a failed or
// conflicted sync attempt. It never drives retry logic.
type SyncFailureLogEntry struct {
	ID        string    `json:"id"`
	ItemType  OpType    `json:"item_type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
