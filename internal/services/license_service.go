// internal/services/license_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synclear/synclear-backend/internal/models"
	"github.com/synclear/synclear-backend/internal/utils"
)

// LicenseService owns the fan-out of an approved request into its license
// batch and the queries over the resulting grants.
type LicenseService struct {
	db *gorm.DB
}

func NewLicenseService(db *gorm.DB) *LicenseService {
	return &LicenseService{db: db}
}

// FanOut creates one license per selected type code as a single atomic batch
// and stamps the request's package reference and aggregate fee. It runs on
// the caller's transaction so a persistence failure mid-batch leaves nothing
// visible.
//
// Fan-out is exactly-once per request: if licenses already exist the existing
// set is returned unchanged, so retries are safe no-ops.
func (s *LicenseService) FanOut(tx *gorm.DB, request *models.Request) ([]models.License, error) {
	if tx == nil {
		// The batch must be all-or-nothing even without a caller transaction.
		var licenses []models.License
		err := s.db.Transaction(func(inner *gorm.DB) error {
			var err error
			licenses, err = s.FanOut(inner, request)
			return err
		})
		if err != nil {
			return nil, err
		}
		return licenses, nil
	}

	var existing []models.License
	if err := tx.Where("request_id = ?", request.ID).Order("created_at ASC").Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing licenses: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	if len(request.SelectedTypes) == 0 {
		return nil, fmt.Errorf("request has no selected license types")
	}

	licenses := make([]models.License, 0, len(request.SelectedTypes))
	var aggregateFee float64

	for _, code := range request.SelectedTypes {
		var typeCfg models.LicenseTypeConfig
		if err := tx.Where("code = ? AND is_active = ?", code, true).First(&typeCfg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("license type %q is not configured: %w", code, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to resolve license type %q: %w", code, err)
		}

		license := models.License{
			RequestID:    request.ID,
			LicenseRef:   utils.NewLicenseRef(typeCfg.Code),
			TypeCode:     typeCfg.Code,
			Fee:          typeCfg.DefaultFee,
			Currency:     request.Currency,
			Term:         typeCfg.Term,
			Territory:    typeCfg.Territory,
			GrantText:    typeCfg.GrantText,
			Restrictions: typeCfg.Restrictions,
			Status:       models.LicenseStatusApproved,
		}

		if err := tx.Create(&license).Error; err != nil {
			return nil, fmt.Errorf("failed to create license for type %q: %w", code, err)
		}

		licenses = append(licenses, license)
		aggregateFee += license.Fee
	}

	request.PackageReference = licenses[0].LicenseRef
	request.AggregateFee = aggregateFee

	if err := tx.Model(&models.Request{}).Where("id = ?", request.ID).Updates(map[string]interface{}{
		"package_reference": request.PackageReference,
		"aggregate_fee":     request.AggregateFee,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to persist package reference: %w", err)
	}

	return licenses, nil
}

// MarkExecuted moves every approved child license to executed when the
// package completes. Package-level execution is mirrored onto the children
// for display only.
func (s *LicenseService) MarkExecuted(tx *gorm.DB, requestID uuid.UUID, executedAt time.Time) error {
	if tx == nil {
		tx = s.db
	}

	if err := tx.Model(&models.License{}).
		Where("request_id = ? AND status = ?", requestID, models.LicenseStatusApproved).
		Updates(map[string]interface{}{
			"status":      models.LicenseStatusExecuted,
			"executed_at": executedAt,
		}).Error; err != nil {
		return fmt.Errorf("failed to mark licenses executed: %w", err)
	}

	return nil
}

// Supersede issues a replacement for an executed license. The executed grant
// is never mutated; the correction is a new license carrying a fresh
// identifier and a pointer back to the one it replaces.
func (s *LicenseService) Supersede(licenseID uuid.UUID, fee float64, term, territory string) (*models.License, error) {
	var original models.License
	if err := s.db.First(&original, licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var replacement models.License
	err := s.db.Transaction(func(tx *gorm.DB) error {
		replacement = models.License{
			RequestID:    original.RequestID,
			LicenseRef:   utils.NewLicenseRef(original.TypeCode),
			TypeCode:     original.TypeCode,
			Fee:          fee,
			Currency:     original.Currency,
			Term:         term,
			Territory:    territory,
			GrantText:    original.GrantText,
			Restrictions: original.Restrictions,
			Status:       models.LicenseStatusApproved,
			SupersedesID: &original.ID,
		}
		if err := tx.Create(&replacement).Error; err != nil {
			return fmt.Errorf("failed to create superseding license: %w", err)
		}

		if err := tx.Model(&models.License{}).Where("id = ?", original.ID).
			Update("status", models.LicenseStatusSuperseded).Error; err != nil {
			return fmt.Errorf("failed to mark license superseded: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &replacement, nil
}

// ListByRequest returns the request's licenses in creation order; the first
// one carries the package reference.
func (s *LicenseService) ListByRequest(requestID uuid.UUID) ([]models.License, error) {
	var licenses []models.License
	if err := s.db.Where("request_id = ?", requestID).Order("created_at ASC").Find(&licenses).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch licenses: %w", err)
	}
	return licenses, nil
}

// VerifyByRef is the public license check: the license must exist and be
// executed (or approved pending execution) and not superseded or void.
func (s *LicenseService) VerifyByRef(licenseRef string) (*models.License, error) {
	var license models.License
	if err := s.db.Preload("Request").Where("license_ref = ?", licenseRef).First(&license).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if license.Status == models.LicenseStatusSuperseded || license.Status == models.LicenseStatusVoid {
		return nil, fmt.Errorf("license %s is not active", licenseRef)
	}

	return &license, nil
}
