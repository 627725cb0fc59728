// Package syncqueue is the durable offline write queue. Pending mutations
// are held in a local SQLite database so they survive a full process
// restart; insertion order is preserved for the sync engine's sequential
// replay. The queue itself never touches the network.
package syncqueue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
)

// Queue is a persistent FIFO of pending offline mutations plus the
// append-only sync failure log.
type Queue struct {
	db *sql.DB
}

// Open opens (creating if needed) the queue database at path.
func Open(path string) (*Queue, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Queue{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_ops (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			op_type     TEXT NOT NULL,
			payload     TEXT NOT NULL,
			queued_at   TIMESTAMP NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS failure_log (
			id        TEXT PRIMARY KEY,
			item_type TEXT NOT NULL,
			message   TEXT NOT NULL,
			logged_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("init queue schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (q *Queue) Close() error { return q.db.Close() }

// Enqueue appends a pending operation and returns the stored item. The
// item's timestamp is the client time of the original user action.
func (q *Queue) Enqueue(opType models.OpType, payload any) (models.SyncQueueItem, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.SyncQueueItem{}, fmt.Errorf("marshal queue payload: %w", err)
	}

	item := models.SyncQueueItem{
		ID:        uuid.New().String(),
		Type:      opType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}

	_, err = q.db.Exec(`
		INSERT INTO pending_ops (id, op_type, payload, queued_at, retry_count)
		VALUES (?, ?, ?, ?, 0)
	`, item.ID, string(item.Type), string(item.Payload), item.Timestamp)
	if err != nil {
		return models.SyncQueueItem{}, fmt.Errorf("enqueue %s: %w", opType, err)
	}
	return item, nil
}

// Dequeue removes an item by id. Removing a missing id is a no-op.
func (q *Queue) Dequeue(id string) error {
	if _, err := q.db.Exec(`DELETE FROM pending_ops WHERE id = ?`, id); err != nil {
		return fmt.Errorf("dequeue %s: %w", id, err)
	}
	return nil
}

// Clear empties the queue. Only an explicit "discard unsynced changes" user
// action calls this; nothing clears the queue automatically.
func (q *Queue) Clear() error {
	if _, err := q.db.Exec(`DELETE FROM pending_ops`); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// Snapshot returns the pending items in enqueue order. The sync engine
// drains from a snapshot so concurrent enqueues cannot interleave with a
// pass in progress.
func (q *Queue) Snapshot() ([]models.SyncQueueItem, error) {
	rows, err := q.db.Query(`
		SELECT id, op_type, payload, queued_at, retry_count
		FROM pending_ops
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot queue: %w", err)
	}
	defer rows.Close()

	var items []models.SyncQueueItem
	for rows.Next() {
		var item models.SyncQueueItem
		var opType, payload string
		if err := rows.Scan(&item.ID, &opType, &payload, &item.Timestamp, &item.RetryCount); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		item.Type = models.OpType(opType)
		item.Payload = json.RawMessage(payload)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Len reports the number of pending items.
func (q *Queue) Len() (int, error) {
	var n int
	if err := q.db.QueryRow(`SELECT COUNT(*) FROM pending_ops`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return n, nil
}

// BumpRetry increments an item's retry counter, shown in diagnostics.
func (q *Queue) BumpRetry(id string) error {
	if _, err := q.db.Exec(`UPDATE pending_ops SET retry_count = retry_count + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("bump retry %s: %w", id, err)
	}
	return nil
}

// LogFailure appends a failure-log entry for a failed or conflicted item.
func (q *Queue) LogFailure(itemType models.OpType, message string) error {
	_, err := q.db.Exec(`
		INSERT INTO failure_log (id, item_type, message, logged_at)
		VALUES (?, ?, ?, ?)
	`, uuid.New().String(), string(itemType), message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("log failure: %w", err)
	}
	return nil
}

// Failures returns the failure log, newest first.
func (q *Queue) Failures() ([]models.SyncFailureLogEntry, error) {
	rows, err := q.db.Query(`
		SELECT id, item_type, message, logged_at
		FROM failure_log
		ORDER BY logged_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("read failure log: %w", err)
	}
	defer rows.Close()

	var entries []models.SyncFailureLogEntry
	for rows.Next() {
		var e models.SyncFailureLogEntry
		var itemType string
		if err := rows.Scan(&e.ID, &itemType, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan failure entry: %w", err)
		}
		e.ItemType = models.OpType(itemType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
