// internal/services/dispatch_service.go
package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/synclear/synclear-backend/internal/config"
	"github.com/synclear/synclear-backend/internal/models"
	"github.com/synclear/synclear-backend/internal/providers"
)

// DispatchService initiates the two execution legs after approval: the
// e-signature document and, when the package carries a fee, the checkout
// session. Both legs are idempotent; an existing non-failed reference is
// reused rather than re-created, so a retried approval never double-bills or
// double-sends.
type DispatchService struct {
	db        *gorm.DB
	signature providers.SignatureProvider
	payment   providers.PaymentProvider
	contracts *ContractService
	cfg       *config.Config
}

func NewDispatchService(db *gorm.DB, signature providers.SignatureProvider, payment providers.PaymentProvider, contracts *ContractService, cfg *config.Config) *DispatchService {
	return &DispatchService{
		db:        db,
		signature: signature,
		payment:   payment,
		contracts: contracts,
		cfg:       cfg,
	}
}

// Dispatch sends the signature document and opens the checkout session for an
// approved request. Each leg that already holds a reference is skipped. Any
// provider failure returns ErrDispatchFailed so the caller leaves the request
// in approved for a later retry instead of advancing it.
func (s *DispatchService) Dispatch(ctx context.Context, request *models.Request, licenses []models.License) error {
	log := logrus.WithFields(logrus.Fields{
		"request_id":        request.ID,
		"package_reference": request.PackageReference,
	})

	if request.SignatureDocumentID == "" {
		docID, err := s.sendSignatureDocument(ctx, request, licenses)
		if err != nil {
			log.WithError(err).Error("Signature dispatch failed")
			return fmt.Errorf("%w: signature document: %v", ErrDispatchFailed, err)
		}
		if err := s.db.Model(&models.Request{}).Where("id = ?", request.ID).
			Updates(map[string]interface{}{
				"signature_document_id": docID,
				"signature_status":      models.SignatureStatusSent,
			}).Error; err != nil {
			return fmt.Errorf("failed to record signature document id: %w", err)
		}
		request.SignatureDocumentID = docID
		request.SignatureStatus = models.SignatureStatusSent
		log.WithField("document_id", docID).Info("Signature document sent")
	}

	if request.PaymentRequired() && request.PaymentSessionID == "" {
		sessionID, err := s.openCheckoutSession(ctx, request)
		if err != nil {
			log.WithError(err).Error("Payment dispatch failed")
			return fmt.Errorf("%w: checkout session: %v", ErrDispatchFailed, err)
		}
		if err := s.db.Model(&models.Request{}).Where("id = ?", request.ID).
			Updates(map[string]interface{}{
				"payment_session_id": sessionID,
				"payment_status":     models.PaymentStatusPending,
			}).Error; err != nil {
			return fmt.Errorf("failed to record payment session id: %w", err)
		}
		request.PaymentSessionID = sessionID
		request.PaymentStatus = models.PaymentStatusPending
		log.WithField("session_id", sessionID).Info("Checkout session opened")
	}

	return nil
}

func (s *DispatchService) sendSignatureDocument(ctx context.Context, request *models.Request, licenses []models.License) (string, error) {
	tokens := s.contracts.TokenMap(request, licenses)

	return s.signature.CreateDocument(ctx, providers.SignatureDocumentParams{
		Name:           fmt.Sprintf("%s - %s", request.PackageReference, request.WorkTitle),
		RecipientName:  request.LicenseeName,
		RecipientEmail: request.LicenseeEmail,
		TemplateID:     s.cfg.Signature.TemplateID,
		Tokens:         tokens,
		Metadata: map[string]string{
			"request_id":        request.ID.String(),
			"package_reference": request.PackageReference,
		},
	})
}

func (s *DispatchService) openCheckoutSession(ctx context.Context, request *models.Request) (string, error) {
	return s.payment.CreateCheckoutSession(ctx, providers.CheckoutParams{
		PackageReference: request.PackageReference,
		Description:      fmt.Sprintf("Music license package for %q", request.WorkTitle),
		CustomerEmail:    request.LicenseeEmail,
		Currency:         request.Currency,
		AmountMinorUnits: toMinorUnits(request.AggregateFee),
		Metadata: map[string]string{
			"request_id":        request.ID.String(),
			"package_reference": request.PackageReference,
		},
		SuccessURL: s.cfg.Payment.SuccessURL,
		CancelURL:  s.cfg.Payment.CancelURL,
	})
}

// RetryFailed re-dispatches a leg whose sub-status indicates a failure an
// operator has resolved (declined document re-sent, failed payment retried).
func (s *DispatchService) RetryFailed(ctx context.Context, request *models.Request, licenses []models.License) error {
	if request.SignatureStatus == models.SignatureStatusDeclined || request.SignatureStatus == models.SignatureStatusVoided {
		request.SignatureDocumentID = ""
	}
	if request.PaymentStatus == models.PaymentStatusFailed {
		request.PaymentSessionID = ""
	}
	return s.Dispatch(ctx, request, licenses)
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// DispatchTimeout bounds a single dispatch attempt; providers get their own
// shorter HTTP timeouts underneath it.
const DispatchTimeout = 60 * time.Second
