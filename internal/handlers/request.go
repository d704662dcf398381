// internal/handlers/request.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/synclear/synclear-backend/internal/i18n"
	"github.com/synclear/synclear-backend/internal/services"
	"github.com/synclear/synclear-backend/internal/utils"
)

type RequestHandler struct {
	requestService *services.RequestService
	auditService   *services.AuditService
	archiveService *services.ArchiveService
	licenseService *services.LicenseService
}

func NewRequestHandler(requestService *services.RequestService, auditService *services.AuditService, archiveService *services.ArchiveService, licenseService *services.LicenseService) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		auditService:   auditService,
		archiveService: archiveService,
		licenseService: licenseService,
	}
}

// POST /v1/requests
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var input services.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&input)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	request, err := h.requestService.CreateDraft(input)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.CreatedResponse(c, request)
}

// POST /v1/requests/:id/submit
func (h *RequestHandler) SubmitRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	request, err := h.requestService.Submit(id)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// POST /v1/requests/:id/resubmit
func (h *RequestHandler) ResubmitRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	var body struct {
		Note string `json:"note"`
	}
	c.ShouldBindJSON(&body)

	request, err := h.requestService.Resubmit(id, body.Note)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// GET /v1/requests/:id
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	request, err := h.requestService.Get(id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.NotFoundResponse(c, "request")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, request)
}

// GET /v1/admin/requests
func (h *RequestHandler) ListRequests(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	requests, total, err := h.requestService.List(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(requests, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /v1/admin/requests/:id/review
func (h *RequestHandler) StartReview(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	actorID, actorName, ok := h.actor(c)
	if !ok {
		return
	}

	request, err := h.requestService.StartReview(id, actorID, actorName)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// PUT /v1/admin/requests/:id/needs-info
func (h *RequestHandler) RequestInfo(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	actorID, actorName, ok := h.actor(c)
	if !ok {
		return
	}

	var body struct {
		Note string `json:"note"`
	}
	c.ShouldBindJSON(&body)

	request, err := h.requestService.RequestInfo(id, actorID, actorName, body.Note)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// PUT /v1/admin/requests/:id/approve
func (h *RequestHandler) ApproveRequest(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	actorID, actorName, ok := h.actor(c)
	if !ok {
		return
	}

	request, err := h.requestService.Approve(c.Request.Context(), id, actorID, actorName)
	if err != nil {
		if errors.Is(err, services.ErrDispatchFailed) {
			// Approval committed, provider dispatch did not. The request is
			// parked in approved; the admin retries the same call.
			utils.ErrorResponse(c, 502, "DISPATCH_FAILED", err.Error(), gin.H{"request": request})
			return
		}
		h.transitionError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyRequestApproved),
		"request": request,
	})
}

// PUT /v1/admin/requests/:id/close
func (h *RequestHandler) CloseRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	actorID, actorName, ok := h.actor(c)
	if !ok {
		return
	}

	var body struct {
		Note string `json:"note"`
	}
	c.ShouldBindJSON(&body)

	request, err := h.requestService.Close(id, actorID, actorName, body.Note)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// POST /v1/admin/requests/:id/notes
func (h *RequestHandler) AddNote(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	actorID, actorName, ok := h.actor(c)
	if !ok {
		return
	}

	var body struct {
		Note string `json:"note" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "note"), err.Error())
		return
	}

	if err := h.requestService.AddNote(id, actorID, actorName, body.Note); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.NotFoundResponse(c, "request")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyRequestNoteAdded)})
}

// GET /v1/requests/:id/history
func (h *RequestHandler) GetHistory(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	entries, total, err := h.auditService.Timeline(id, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(entries, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /v1/requests/:id/documents
func (h *RequestHandler) GetDocuments(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	docs, err := h.archiveService.ListByRequest(id)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, docs)
}

// GET /v1/requests/:id/licenses
func (h *RequestHandler) GetLicenses(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	licenses, err := h.licenseService.ListByRequest(id)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, licenses)
}

func (h *RequestHandler) requestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid request ID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *RequestHandler) actor(c *gin.Context) (uuid.UUID, string, bool) {
	idStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, "", false
	}
	name, _ := utils.GetUserNameFromContext(c)
	return id, name, true
}

// transitionError maps lifecycle errors onto HTTP statuses. A conflict means
// the caller raced another writer and should re-fetch; an invalid or
// terminal transition is a plain client error.
func (h *RequestHandler) transitionError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, "request")
	case errors.Is(err, services.ErrStatusConflict):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyRequestConflict))
	case errors.Is(err, services.ErrTerminalStatus):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyRequestTerminal), nil)
	case errors.Is(err, services.ErrInvalidTransition):
		utils.BadRequestResponse(c, err.Error(), nil)
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}
