package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/upstream-billing-gateway/internal/gateway/handler"
	"github.com/upstream-billing-gateway/internal/gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	credentialHandler *handler.CredentialHandler,
	transactionHandler *handler.TransactionHandler,
	providerHandler *handler.ProviderHandler,
	invokeHandler *handler.InvokeHandler,
) {
	// CorrelationID must run before Logger so request logs carry the id.
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Credential operations
		credentials := v1.Group("/credentials")
		{
			credentials.POST("", credentialHandler.Create)
			credentials.GET("/:id", credentialHandler.GetByID)
			credentials.POST("/:id/credit", credentialHandler.Credit)
			credentials.POST("/:id/archive", credentialHandler.Archive)
			credentials.GET("/:id/transactions", transactionHandler.GetByCredentialID)
		}

		// Transaction history reads
		transactions := v1.Group("/transactions")
		{
			transactions.GET("/:id", transactionHandler.GetByID)
		}

		// Provider registration and metadata
		providers := v1.Group("/providers")
		{
			providers.POST("", providerHandler.Register)
			providers.GET("/:id", providerHandler.Get)
		}

		// Billed proxy calls to provider operations
		v1.POST("/invoke/:provider/:operation", invokeHandler.Invoke)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
