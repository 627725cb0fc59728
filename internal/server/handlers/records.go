package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/razamarafat/morvarid-APP-sub000/internal/service/sales"
	"github.com/razamarafat/morvarid-APP-sub000/internal/service/statistics"
)

// ListStatistics returns the cached statistics collection.
func (a *API) ListStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, a.Stats.List())
}

// CreateStatistic records (or upserts) a daily statistic.
func (a *API) CreateStatistic(c *gin.Context) {
	var in statistics.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := a.Stats.Create(c.Request.Context(), in, Identity(c))
	if err != nil {
		a.respondError(c, err)
		return
	}
	if outcome.Queued {
		c.JSON(http.StatusAccepted, gin.H{"status": "saved to offline queue"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

// UpdateStatistic edits a statistic inside the edit window.
func (a *API) UpdateStatistic(c *gin.Context) {
	var in statistics.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := a.Stats.Update(c.Request.Context(), c.Param("id"), in, Identity(c))
	if err != nil {
		a.respondError(c, err)
		return
	}
	if outcome.Queued {
		c.JSON(http.StatusAccepted, gin.H{"status": "saved to offline queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteStatistic removes a statistic inside the edit window.
func (a *API) DeleteStatistic(c *gin.Context) {
	outcome, err := a.Stats.Delete(c.Request.Context(), c.Param("id"), Identity(c))
	if err != nil {
		a.respondError(c, err)
		return
	}
	if outcome.Queued {
		c.JSON(http.StatusAccepted, gin.H{"status": "saved to offline queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ListInvoices returns the cached invoice collection.
func (a *API) ListInvoices(c *gin.Context) {
	c.JSON(http.StatusOK, a.Sales.List())
}

// CreateInvoice records an invoice and triggers the sales recompute.
func (a *API) CreateInvoice(c *gin.Context) {
	var in sales.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := a.Sales.Create(c.Request.Context(), in, Identity(c))
	if err != nil {
		a.respondError(c, err)
		return
	}
	if outcome.Queued {
		c.JSON(http.StatusAccepted, gin.H{"status": "saved to offline queue"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

// UpdateInvoice edits an invoice inside the edit window.
func (a *API) UpdateInvoice(c *gin.Context) {
	var in sales.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := a.Sales.Update(c.Request.Context(), c.Param("id"), in, Identity(c))
	if err != nil {
		a.respondError(c, err)
		return
	}
	if outcome.Queued {
		c.JSON(http.StatusAccepted, gin.H{"status": "saved to offline queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteInvoice removes an invoice inside the edit window.
func (a *API) DeleteInvoice(c *gin.Context) {
	outcome, err := a.Sales.Delete(c.Request.Context(), c.Param("id"), Identity(c))
	if err != nil {
		a.respondError(c, err)
		return
	}
	if outcome.Queued {
		c.JSON(http.StatusAccepted, gin.H{"status": "saved to offline queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
