package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/syncengine"
	"github.com/razamarafat/morvarid-APP-sub000/internal/syncqueue"
)

// SyncController is the slice of the sync subsystem the API needs.
type SyncController struct {
	Queue   *syncqueue.Queue
	Engine  *syncengine.Engine
	Monitor *syncengine.Monitor
}

// SyncStatus reports connectivity and the pending queue for the UI badge.
func (a *API) SyncStatus(c *gin.Context) {
	items, err := a.Sync.Queue.Snapshot()
	if err != nil {
		a.respondError(c, err)
		return
	}
	if items == nil {
		items = []models.SyncQueueItem{}
	}
	c.JSON(http.StatusOK, gin.H{
		"online":  a.Sync.Monitor.Online(),
		"pending": len(items),
		"items":   items,
	})
}

// RetrySync triggers a manual queue drain.
func (a *API) RetrySync(c *gin.Context) {
	report, err := a.Sync.Engine.ProcessQueue(c.Request.Context())
	if err != nil {
		if errors.Is(err, syncengine.ErrDrainInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DiscardQueue empties the offline queue. This is the explicit "discard
// unsynced changes" user action; nothing else clears the queue.
func (a *API) DiscardQueue(c *gin.Context) {
	if err := a.Sync.Queue.Clear(); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "discarded"})
}

// SyncFailures returns the append-only failure log for diagnostics.
func (a *API) SyncFailures(c *gin.Context) {
	entries, err := a.Sync.Queue.Failures()
	if err != nil {
		a.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []models.SyncFailureLogEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// Healthz probes the remote store and reports both local and remote health.
func (a *API) Healthz(c *gin.Context) {
	online := a.Sync.Monitor.Probe(context.WithoutCancel(c.Request.Context()))
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store_online": online})
}
