// Package syncengine drains the offline write queue against the remote
// store: creates go out as atomic batches, updates and deletes replay
// sequentially with per-item conflict detection against the server-side
// updated_at timestamp. Conflicts resolve server-wins and are reported as
// aggregated counts, never as per-item interruptions.
package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
	"github.com/razamarafat/morvarid-APP-sub000/internal/syncqueue"
)

// ErrDrainInProgress is returned when a second drain is requested while one
// is already running. Both the startup trigger and the online-transition
// listener can fire near-simultaneously; the guard makes that harmless.
var ErrDrainInProgress = errors.New("sync drain already in progress")

// Tuple identifies the statistic a replayed invoice operation touched.
type Tuple struct {
	FarmID    string `json:"farm_id"`
	Date      string `json:"date"`
	ProductID string `json:"product_id"`
}

// Report aggregates the outcome of one full queue pass.
type Report struct {
	Success   int `json:"success"`
	Conflicts int `json:"conflicts"`
	Failed    int `json:"failed"`

	// InvoiceTuples lists the tuples touched by successfully replayed
	// invoice operations, deduplicated. The caller re-runs the sales
	// aggregator over them; replaying an invoice without recomputing its
	// statistic would leave the derived inventory stale.
	InvoiceTuples []Tuple `json:"invoice_tuples,omitempty"`
}

// Empty reports whether the drain had nothing to act on.
func (r Report) Empty() bool {
	return r.Success == 0 && r.Conflicts == 0 && r.Failed == 0
}

func (r *Report) addTuple(t Tuple) {
	if t == (Tuple{}) {
		return
	}
	for _, existing := range r.InvoiceTuples {
		if existing == t {
			return
		}
	}
	r.InvoiceTuples = append(r.InvoiceTuples, t)
}

func tupleFromRow(row remote.Row) Tuple {
	var t Tuple
	t.FarmID, _ = row["farm_id"].(string)
	t.Date, _ = row["date"].(string)
	t.ProductID, _ = row["product_id"].(string)
	return t
}

// UpdatePayload is the queued form of an UPDATE_* operation.
type UpdatePayload struct {
	ID    string     `json:"id"`
	Patch remote.Row `json:"patch"`
}

// DeletePayload is the queued form of a DELETE_* operation.
type DeletePayload struct {
	ID string `json:"id"`
}

// Engine replays queued offline mutations.
type Engine struct {
	store  remote.Store
	queue  *syncqueue.Queue
	logger *zap.Logger

	draining int32
}

// New constructs a sync engine.
func New(store remote.Store, queue *syncqueue.Queue, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, queue: queue, logger: logger}
}

// ProcessQueue runs one full drain over a snapshot of the queue. It is
// reentrant-safe: a concurrent call returns ErrDrainInProgress immediately.
func (e *Engine) ProcessQueue(ctx context.Context) (Report, error) {
	if !atomic.CompareAndSwapInt32(&e.draining, 0, 1) {
		return Report{}, ErrDrainInProgress
	}
	defer atomic.StoreInt32(&e.draining, 0)

	snapshot, err := e.queue.Snapshot()
	if err != nil {
		return Report{}, err
	}
	if len(snapshot) == 0 {
		return Report{}, nil
	}

	e.logger.Info("draining offline queue", zap.Int("pending", len(snapshot)))

	var report Report
	remaining := e.batchPhase(ctx, snapshot, &report)
	e.sequentialPhase(ctx, remaining, &report)

	e.logger.Info("offline queue drained",
		zap.Int("success", report.Success),
		zap.Int("conflicts", report.Conflicts),
		zap.Int("failed", report.Failed))
	return report, nil
}

// batchPhase groups pure creates by operation type and issues one multi-row
// insert per group. A batch insert fails atomically on the backend, so the
// dequeue is all-or-nothing per group. Returns the non-create items in
// their original order.
func (e *Engine) batchPhase(ctx context.Context, snapshot []models.SyncQueueItem, report *Report) []models.SyncQueueItem {
	groups := map[models.OpType][]models.SyncQueueItem{}
	var remaining []models.SyncQueueItem
	for _, item := range snapshot {
		if item.Type.IsCreate() {
			groups[item.Type] = append(groups[item.Type], item)
		} else {
			remaining = append(remaining, item)
		}
	}

	for opType, items := range groups {
		rows := make([]remote.Row, 0, len(items))
		ok := true
		for _, item := range items {
			var row remote.Row
			if err := json.Unmarshal(item.Payload, &row); err != nil {
				// Unreadable payload can never succeed; drop it and log.
				e.dropItem(item, fmt.Sprintf("unreadable payload: %v", err), report)
				ok = false
				continue
			}
			rows = append(rows, row)
		}
		if !ok || len(rows) == 0 {
			continue
		}

		if err := e.store.Insert(ctx, opType.Table(), rows); err != nil {
			// Whole group stays queued for the next drain.
			e.logger.Warn("batch insert failed, keeping group queued",
				zap.String("op", string(opType)),
				zap.Int("items", len(items)),
				zap.Error(err))
			for _, item := range items {
				_ = e.queue.BumpRetry(item.ID)
			}
			report.Failed += len(items)
			continue
		}

		for _, item := range items {
			if err := e.queue.Dequeue(item.ID); err != nil {
				e.logger.Error("dequeue after batch success failed", zap.String("id", item.ID), zap.Error(err))
			}
		}
		report.Success += len(items)
		if opType == models.OpCreateInvoice {
			for _, row := range rows {
				report.addTuple(tupleFromRow(row))
			}
		}
	}

	return remaining
}

// sequentialPhase replays updates and deletes one at a time, in original
// enqueue order. Updates check the server's updated_at first; when the
// server changed after the offline edit was made, the server wins and the
// stale edit is dropped.
func (e *Engine) sequentialPhase(ctx context.Context, items []models.SyncQueueItem, report *Report) {
	for _, item := range items {
		switch {
		case item.Type.IsUpdate():
			e.replayUpdate(ctx, item, report)
		default:
			e.replayDelete(ctx, item, report)
		}
	}
}

func (e *Engine) replayUpdate(ctx context.Context, item models.SyncQueueItem, report *Report) {
	var payload UpdatePayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		e.dropItem(item, fmt.Sprintf("unreadable payload: %v", err), report)
		return
	}

	remoteRow, found, err := e.fetchRow(ctx, item.Type.Table(), payload.ID)
	if err != nil {
		e.keepItem(item, err, report)
		return
	}
	var remoteUpdated time.Time
	if found {
		raw, _ := remoteRow["updated_at"].(string)
		remoteUpdated, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			e.keepItem(item, fmt.Errorf("parse remote updated_at %q: %w", raw, err), report)
			return
		}
	}
	if found && remoteUpdated.After(item.Timestamp) {
		// Someone else modified the row after this offline edit was made.
		e.logger.Info("dropping conflicted offline edit",
			zap.String("op", string(item.Type)),
			zap.String("row", payload.ID),
			zap.Time("local", item.Timestamp),
			zap.Time("remote", remoteUpdated))
		_ = e.queue.LogFailure(item.Type, fmt.Sprintf("conflict on %s: server modified at %s, local edit from %s",
			payload.ID, remoteUpdated.Format(time.RFC3339), item.Timestamp.Format(time.RFC3339)))
		_ = e.queue.Dequeue(item.ID)
		report.Conflicts++
		return
	}

	if err := e.store.Update(ctx, item.Type.Table(), payload.ID, payload.Patch); err != nil {
		e.keepItem(item, err, report)
		return
	}
	_ = e.queue.Dequeue(item.ID)
	report.Success++
	if item.Type == models.OpUpdateInvoice {
		// Both the tuple the invoice used to belong to and the one the
		// patch moves it to need a recompute.
		if found {
			report.addTuple(tupleFromRow(remoteRow))
		}
		report.addTuple(tupleFromRow(payload.Patch))
	}
}

func (e *Engine) replayDelete(ctx context.Context, item models.SyncQueueItem, report *Report) {
	var payload DeletePayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		e.dropItem(item, fmt.Sprintf("unreadable payload: %v", err), report)
		return
	}

	// Capture the invoice's tuple before the row disappears so the caller
	// can recompute its statistic.
	var tuple Tuple
	if item.Type == models.OpDeleteInvoice {
		row, found, err := e.fetchRow(ctx, item.Type.Table(), payload.ID)
		if err != nil {
			e.keepItem(item, err, report)
			return
		}
		if found {
			tuple = tupleFromRow(row)
		}
	}

	if err := e.store.Delete(ctx, item.Type.Table(), payload.ID); err != nil {
		e.keepItem(item, err, report)
		return
	}
	_ = e.queue.Dequeue(item.ID)
	report.Success++
	report.addTuple(tuple)
}

// fetchRow reads a single row by id. A missing row reports found=false,
// which lets deletes-by-others fall through to a normal (failing or no-op)
// replay rather than a conflict.
func (e *Engine) fetchRow(ctx context.Context, table, id string) (remote.Row, bool, error) {
	rows, err := e.store.Select(ctx, table, remote.Filter{"id": id})
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// dropItem removes an item that can never succeed and records why.
func (e *Engine) dropItem(item models.SyncQueueItem, reason string, report *Report) {
	e.logger.Warn("dropping unprocessable queue item",
		zap.String("id", item.ID),
		zap.String("op", string(item.Type)),
		zap.String("reason", reason))
	_ = e.queue.LogFailure(item.Type, reason)
	_ = e.queue.Dequeue(item.ID)
	report.Failed++
}

// keepItem leaves a transiently-failed item queued for the next drain.
func (e *Engine) keepItem(item models.SyncQueueItem, err error, report *Report) {
	e.logger.Warn("queue item failed, will retry on next drain",
		zap.String("id", item.ID),
		zap.String("op", string(item.Type)),
		zap.Error(err))
	_ = e.queue.BumpRetry(item.ID)
	report.Failed++
}
