package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"billrecon/internal/auth"
	"billrecon/internal/handler"
	"billrecon/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	tokens auth.TokenService,
	reconH *handler.ReconciliationHandler,
	healthH *handler.HealthHandler,
	allowedOrigins []string,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(tokens))

	runs := v1.Group("/reconciliations")
	runs.POST("", reconH.Run)
	runs.GET("", reconH.List)
	runs.GET("/:id", reconH.GetByID)
	runs.GET("/:id/reports/:file", reconH.ReportURL)

	v1.POST("/orders/purge", reconH.PurgeOrders)

	return r
}
