// Package handlers exposes the dashboard REST API consumed by the web UI.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/razamarafat/morvarid-APP-sub000/internal/auth"
	"github.com/razamarafat/morvarid-APP-sub000/internal/domain/models"
	"github.com/razamarafat/morvarid-APP-sub000/internal/inventory"
	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
	"github.com/razamarafat/morvarid-APP-sub000/internal/service/farms"
	"github.com/razamarafat/morvarid-APP-sub000/internal/service/sales"
	"github.com/razamarafat/morvarid-APP-sub000/internal/service/statistics"
)

const identityKey = "identity"

// API bundles the services behind the HTTP surface.
type API struct {
	Farms  *farms.Service
	Stats  *statistics.Service
	Sales  *sales.Service
	Sync   SyncController
	Roles  *auth.Registry
	Logger *zap.Logger
}

// Identity extracts the parsed caller identity from the request context.
func Identity(c *gin.Context) auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if ident, ok := v.(auth.Identity); ok {
			return ident
		}
	}
	return auth.Identity{Role: auth.RoleSales}
}

// AuthMiddleware parses the bearer token into an Identity and records its
// role in the registry. Requests without a token proceed with the read-only
// sales role; the backend's row-level security is the real gate.
func AuthMiddleware(registry *auth.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			if ident, err := auth.ParseIdentity(header); err == nil {
				c.Set(identityKey, ident)
				if registry != nil {
					registry.Record(ident)
				}
			}
		}
		c.Next()
	}
}

// RequireAdmin rejects non-admin callers.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Identity(c).Role.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "administrator role required"})
			return
		}
		c.Next()
	}
}

// respondError maps the error taxonomy onto HTTP statuses.
func (a *API) respondError(c *gin.Context, err error) {
	var ve *inventory.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.Is(err, statistics.ErrWindowClosed), errors.Is(err, sales.ErrWindowClosed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case remote.IsDuplicate(err):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate record: " + err.Error()})
	default:
		a.Logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

// ListFarms returns the farm directory.
func (a *API) ListFarms(c *gin.Context) {
	c.JSON(http.StatusOK, a.Farms.Farms())
}

// CreateFarm creates a farm (admin only, enforced by route middleware).
func (a *API) CreateFarm(c *gin.Context) {
	var farm models.Farm
	if err := c.ShouldBindJSON(&farm); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if farm.Type == "" {
		farm.Type = models.FarmStandard
	}
	if err := a.Farms.CreateFarm(c.Request.Context(), farm); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

// UpdateFarm patches a farm.
func (a *API) UpdateFarm(c *gin.Context) {
	var patch remote.Row
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.Farms.UpdateFarm(c.Request.Context(), c.Param("id"), patch); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteFarm removes a farm; historical records keep dangling references.
func (a *API) DeleteFarm(c *gin.Context) {
	if err := a.Farms.DeleteFarm(c.Request.Context(), c.Param("id")); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ListProducts returns the product directory.
func (a *API) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, a.Farms.Products())
}
