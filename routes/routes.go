package routes

import (
	"net/http"
	"time"

	"vendra/handlers"
	"vendra/middleware"
	"vendra/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterOrderRoutes registers the escrow endpoints.
func RegisterOrderRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/orders")
	{
		// All escrow endpoints require an authenticated actor.
		api.Use(middleware.ActorAuthMiddleware())
		api.POST("/quote", hb.QuoteHandler)
		api.POST("", hb.CreateOrderHandler)
		api.GET("/:orderNumber", hb.GetOrderHandler)
		api.POST("/:orderNumber/proofs", hb.SubmitProofHandler)
		api.POST("/:orderNumber/dispute", hb.OpenDisputeHandler)
		api.POST("/:orderNumber/cancel", hb.CancelOrderHandler)

		// Arbitration outcomes are applied by admin tooling only.
		admin := api.Group("")
		admin.Use(middleware.RequireRole("admin"))
		admin.POST("/:orderNumber/dispute/resolve", hb.ResolveDisputeHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint backed by the
// dependency monitor.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		code := http.StatusOK
		if !status.CheckedAt.IsZero() && !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
}

// RegisterRoutes wires CORS and all route groups.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterOrderRoutes(r, hb)
}
