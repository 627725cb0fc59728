package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/razamarafat/morvarid-APP-sub000/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(api *handlers.API, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(handlers.AuthMiddleware(api.Roles))

	r.GET("/healthz", api.Healthz)

	v1 := r.Group("/api")
	{
		v1.GET("/farms", api.ListFarms)
		admin := v1.Group("", handlers.RequireAdmin())
		{
			admin.POST("/farms", api.CreateFarm)
			admin.PATCH("/farms/:id", api.UpdateFarm)
			admin.DELETE("/farms/:id", api.DeleteFarm)
		}
		v1.GET("/products", api.ListProducts)

		v1.GET("/statistics", api.ListStatistics)
		v1.POST("/statistics", api.CreateStatistic)
		v1.PUT("/statistics/:id", api.UpdateStatistic)
		v1.DELETE("/statistics/:id", api.DeleteStatistic)

		v1.GET("/invoices", api.ListInvoices)
		v1.POST("/invoices", api.CreateInvoice)
		v1.PUT("/invoices/:id", api.UpdateInvoice)
		v1.DELETE("/invoices/:id", api.DeleteInvoice)

		v1.GET("/sync/queue", api.SyncStatus)
		v1.POST("/sync/retry", api.RetrySync)
		v1.DELETE("/sync/queue", api.DiscardQueue)
		v1.GET("/sync/failures", api.SyncFailures)
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
