package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares. metrics may be nil.
func New(stock *handlers.StockHandler, shipments *handlers.ShipmentHandler, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	api := r.Group("/api")
	api.GET("/catalog/status", stock.CatalogStatus)

	stockGroup := api.Group("/stock/:partition")
	stockGroup.GET("", stock.ListStock)
	stockGroup.POST("/receipts", stock.Receive)
	stockGroup.POST("/receipts/upload", stock.Upload)
	stockGroup.POST("/delete", stock.DeleteStock)

	cart := api.Group("/cart/:partition")
	cart.GET("", shipments.Cart)
	cart.DELETE("", shipments.Forget)
	cart.POST("/items", shipments.AddItems)
	cart.POST("/items/remove", shipments.RemoveItems)
	cart.POST("/clear", shipments.Clear)
	cart.POST("/dialog", shipments.OpenDialog)
	cart.POST("/manifest", shipments.Manifest)
	cart.POST("/commit", shipments.Commit)

	archive := api.Group("/archive")
	archive.GET("/:partition", stock.ListArchive)
	archive.GET("/:partition/export", stock.ExportArchive)
	archive.POST("/restore", stock.Restore)
	archive.POST("/purge", stock.Purge)

	reports := api.Group("/reports")
	reports.GET("/inventory", stock.InventoryReport)
	reports.GET("/totals", stock.Totals)
	reports.GET("/totals/export", stock.TotalsReport)
	reports.GET("/storage", stock.StorageOverview)

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
