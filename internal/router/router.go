// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/synclear/synclear-backend/internal/config"
	"github.com/synclear/synclear-backend/internal/handlers"
	"github.com/synclear/synclear-backend/internal/middleware"
	"github.com/synclear/synclear-backend/internal/providers"
	"github.com/synclear/synclear-backend/internal/services"
	"github.com/synclear/synclear-backend/internal/utils"
)

// Initialize wires providers, services, and routes. The reconcile service is
// returned alongside the engine so the server can run the pending-artifact
// sweep on a ticker.
func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, *services.ReconcileService) {
	// Providers
	signatureProvider := providers.NewSignatureProvider(cfg.Signature)
	paymentProvider := providers.NewPaymentProvider(cfg.Payment)

	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	auditService := services.NewAuditService(db)
	licenseService := services.NewLicenseService(db)
	contractService := services.NewContractService(db)
	archiveService, _ := services.NewArchiveService(db, cfg.Storage)
	dispatchService := services.NewDispatchService(db, signatureProvider, paymentProvider, contractService, cfg)
	requestService := services.NewRequestService(db, licenseService, contractService, archiveService, auditService, dispatchService, notificationService)
	reconcileService := services.NewReconcileService(db, auditService, licenseService, archiveService, signatureProvider, notificationService, cfg.Workflow)

	// Initialize handlers
	requestHandler := handlers.NewRequestHandler(requestService, auditService, archiveService, licenseService)
	webhookHandler := handlers.NewWebhookHandler(reconcileService, cfg)
	licenseHandler := handlers.NewLicenseHandler(licenseService, archiveService)
	adminHandler := handlers.NewAdminHandler(notificationService, reconcileService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.BaseURL))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Licensing request routes (licensee side)
		requests := v1.Group("/requests")
		{
			requests.POST("", middleware.IntakeRateLimit(), requestHandler.CreateRequest)
			requests.GET("/:id", middleware.OptionalAuth(), requestHandler.GetRequest)
			requests.POST("/:id/submit", middleware.OptionalAuth(), requestHandler.SubmitRequest)
			requests.POST("/:id/resubmit", middleware.OptionalAuth(), requestHandler.ResubmitRequest)
			requests.GET("/:id/history", middleware.OptionalAuth(), requestHandler.GetHistory)
			requests.GET("/:id/documents", middleware.OptionalAuth(), requestHandler.GetDocuments)
			requests.GET("/:id/licenses", middleware.OptionalAuth(), requestHandler.GetLicenses)
		}

		// License verification (public)
		licenses := v1.Group("/licenses")
		{
			licenses.GET("/:ref/verify", licenseHandler.VerifyLicense)
		}

		// Document downloads
		documents := v1.Group("/documents")
		documents.Use(middleware.AuthRequired())
		{
			documents.GET("/:id/download", licenseHandler.DownloadDocument)
		}

		// Provider webhooks. Authenticated by payload signature, not by
		// bearer token; the general rate limit is replaced by the webhook
		// allowance so provider redelivery bursts are not dropped.
		webhooks := v1.Group("/webhooks")
		webhooks.Use(middleware.WebhookRateLimit())
		{
			webhooks.POST("/signature", webhookHandler.HandleSignatureWebhook)
			webhooks.POST("/payment", webhookHandler.HandlePaymentWebhook)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			adminRequests := admin.Group("/requests")
			{
				adminRequests.GET("", requestHandler.ListRequests)
				adminRequests.PUT("/:id/review", requestHandler.StartReview)
				adminRequests.PUT("/:id/needs-info", requestHandler.RequestInfo)
				adminRequests.PUT("/:id/approve", requestHandler.ApproveRequest)
				adminRequests.PUT("/:id/close", requestHandler.CloseRequest)
				adminRequests.POST("/:id/notes", requestHandler.AddNote)
			}

			adminLicenses := admin.Group("/licenses")
			{
				adminLicenses.POST("/:id/supersede", licenseHandler.SupersedeLicense)
			}

			adminNotifications := admin.Group("/notifications")
			{
				adminNotifications.GET("", adminHandler.ListNotifications)
				adminNotifications.PUT("/:id/read", adminHandler.MarkNotificationRead)
			}

			admin.POST("/artifacts/retry", adminHandler.RetryPendingArtifacts)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", cfg.Storage.LocalDir)
	}

	return r, reconcileService
}
