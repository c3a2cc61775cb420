package invoice_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoice-ledger/internal/invoice_gateway/handler"
	"github.com/invoice-ledger/internal/invoice_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	operationHandler *handler.OperationHandler,
	invoiceHandler *handler.InvoiceHandler,
	enableMint bool,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.CallerIdentity())
	r.Use(middleware.Logger(logger))

	v1 := r.Group("/api/v1")
	{
		invoices := v1.Group("/invoices")
		{
			invoices.POST("", operationHandler.CreateInvoice)
			invoices.GET("/:id", invoiceHandler.GetByID)
			invoices.POST("/:id/pay", operationHandler.PayInvoice)
			invoices.GET("/:id/payment", invoiceHandler.GetPayment)
		}

		v1.POST("/allowances", operationHandler.Approve)
		if enableMint {
			v1.POST("/mints", operationHandler.Mint)
		}
		v1.GET("/operations/:id", operationHandler.GetOperation)
		v1.GET("/merchants/:address/invoices", invoiceHandler.ListByMerchant)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
