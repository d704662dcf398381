// internal/handlers/admin.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/synclear/synclear-backend/internal/services"
	"github.com/synclear/synclear-backend/internal/utils"
)

type AdminHandler struct {
	notificationService *services.NotificationService
	reconcileService    *services.ReconcileService
}

func NewAdminHandler(notificationService *services.NotificationService, reconcileService *services.ReconcileService) *AdminHandler {
	return &AdminHandler{
		notificationService: notificationService,
		reconcileService:    reconcileService,
	}
}

// GET /v1/admin/notifications
func (h *AdminHandler) ListNotifications(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	notifications, total, err := h.notificationService.ListForAdmin(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(notifications, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /v1/admin/notifications/:id/read
func (h *AdminHandler) MarkNotificationRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid notification ID", nil)
		return
	}

	if err := h.notificationService.MarkRead(id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.NotFoundResponse(c, "notification")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Notification marked as read"})
}

// POST /v1/admin/artifacts/retry
//
// Manual trigger for the pending-artifact sweep, for operators who do not
// want to wait for the ticker after a vendor outage.
func (h *AdminHandler) RetryPendingArtifacts(c *gin.Context) {
	if err := h.reconcileService.RetryPendingArtifacts(c.Request.Context()); err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, gin.H{"message": "Pending artifact retrieval triggered"})
}
