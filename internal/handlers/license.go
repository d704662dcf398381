// internal/handlers/license.go
package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/synclear/synclear-backend/internal/i18n"
	"github.com/synclear/synclear-backend/internal/services"
	"github.com/synclear/synclear-backend/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
	archiveService *services.ArchiveService
}

func NewLicenseHandler(licenseService *services.LicenseService, archiveService *services.ArchiveService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
		archiveService: archiveService,
	}
}

// GET /v1/licenses/:ref/verify
//
// Public endpoint: anyone holding a license reference can check whether the
// grant is genuine and still active.
func (h *LicenseHandler) VerifyLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	ref := c.Param("ref")

	license, err := h.licenseService.VerifyByRef(ref)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.NotFoundResponse(c, "license")
			return
		}
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyLicenseInactive), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyLicenseVerified),
		"license_ref": license.LicenseRef,
		"type_code":   license.TypeCode,
		"status":      license.Status,
		"territory":   license.Territory,
		"term":        license.Term,
		"executed_at": license.ExecutedAt,
	})
}

// POST /v1/admin/licenses/:id/supersede
func (h *LicenseHandler) SupersedeLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	var body struct {
		Fee       float64 `json:"fee" validate:"min=0"`
		Term      string  `json:"term" validate:"required,max=100"`
		Territory string  `json:"territory" validate:"required,max=100"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&body)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	replacement, err := h.licenseService.Supersede(id, body.Fee, body.Term, body.Territory)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.NotFoundResponse(c, "license")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.CreatedResponse(c, replacement)
}

// GET /v1/documents/:id/download
func (h *LicenseHandler) DownloadDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid document ID", nil)
		return
	}

	doc, err := h.archiveService.Get(id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.NotFoundResponse(c, "document")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	url, err := h.archiveService.PresignedURL(doc, 15*time.Minute)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"name":         doc.Name,
		"kind":         doc.Kind,
		"content_type": doc.ContentType,
		"size_bytes":   doc.SizeBytes,
		"download_url": url,
	})
}
