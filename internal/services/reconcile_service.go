// internal/services/reconcile_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/synclear/synclear-backend/internal/config"
	"github.com/synclear/synclear-backend/internal/models"
	"github.com/synclear/synclear-backend/internal/providers"
)

// SignatureEvent is a verified, decoded callback from the e-signature
// provider. RequestID comes from the metadata echoed back by the vendor and
// may be empty on older payloads; the document reference then resolves the
// request.
type SignatureEvent struct {
	EventType  string
	DocumentID string
	RequestID  string
	Payload    models.JSONB
}

// PaymentEvent is a verified, decoded callback from the payment provider.
type PaymentEvent struct {
	EventType   string
	ExternalRef string
	RequestID   string
	Payload     models.JSONB
}

// ReconcileService merges the two asynchronous provider event streams back
// into the single request status. It is the only writer of the post-approval
// system transitions.
//
// Correctness rests on three mechanisms working together: a per-request
// mutex serializes concurrent deliveries for the same request, the
// (provider, external_ref, status) event record makes redelivery a no-op,
// and the pure Converge function makes the outcome independent of arrival
// order.
type ReconcileService struct {
	db            *gorm.DB
	audit         *AuditService
	licenses      *LicenseService
	archive       *ArchiveService
	signature     providers.SignatureProvider
	notifications *NotificationService
	workflow      config.WorkflowConfig

	locks sync.Map // request ID -> *sync.Mutex
}

func NewReconcileService(db *gorm.DB, audit *AuditService, licenses *LicenseService, archive *ArchiveService, signature providers.SignatureProvider, notifications *NotificationService, workflow config.WorkflowConfig) *ReconcileService {
	return &ReconcileService{
		db:            db,
		audit:         audit,
		licenses:      licenses,
		archive:       archive,
		signature:     signature,
		notifications: notifications,
		workflow:      workflow,
	}
}

// normalizeSignatureEvent maps the vendor's event vocabulary onto the closed
// internal enumeration. Anything outside it is rejected before touching any
// state.
func normalizeSignatureEvent(eventType string) (models.SignatureStatus, error) {
	switch eventType {
	case "document.completed", "document_state_changed.completed":
		return models.SignatureStatusCompleted, nil
	case "document.declined", "document_state_changed.declined":
		return models.SignatureStatusDeclined, nil
	case "document.voided", "document_state_changed.voided":
		return models.SignatureStatusVoided, nil
	}
	return "", fmt.Errorf("%w: signature event %q", ErrUnrecognizedEvent, eventType)
}

// normalizePaymentEvent maps Stripe event types onto the internal payment
// axis. checkout.session.completed and payment_intent.succeeded both mean
// paid; whichever arrives first wins and the other deduplicates against the
// same applied state.
func normalizePaymentEvent(eventType string) (models.PaymentStatus, error) {
	switch eventType {
	case "checkout.session.completed", "payment_intent.succeeded":
		return models.PaymentStatusPaid, nil
	case "payment_intent.payment_failed":
		return models.PaymentStatusFailed, nil
	case "charge.refunded":
		return models.PaymentStatusRefunded, nil
	}
	return "", fmt.Errorf("%w: payment event %q", ErrUnrecognizedEvent, eventType)
}

// HandleSignatureEvent applies one signature callback. Duplicate deliveries
// return nil without touching the request, the history, or the documents.
func (s *ReconcileService) HandleSignatureEvent(ctx context.Context, event SignatureEvent) error {
	sigStatus, err := normalizeSignatureEvent(event.EventType)
	if err != nil {
		return err
	}

	request, err := s.resolveRequest(event.RequestID, "signature_document_id", event.DocumentID)
	if err != nil {
		return err
	}

	unlock := s.lockRequest(request.ID)
	defer unlock()

	var advanced bool
	applied, err := s.applyEvent(request.ID, models.ProviderSignature, event.DocumentID, string(sigStatus), event.EventType, event.Payload,
		func(tx *gorm.DB, req *models.Request) (models.RequestStatus, error) {
			if !CanSignatureAdvance(req.SignatureStatus, sigStatus) {
				// Fact-only: the event is recorded but the axis holds.
				return req.Status, nil
			}

			updates := map[string]interface{}{"signature_status": sigStatus}
			if sigStatus == models.SignatureStatusCompleted {
				// The webhook is acknowledged before the PDF exists on the
				// vendor side; the pending flag commits with the status so a
				// crash cannot lose the retrieval marker the sweep keys on.
				updates["artifact_pending"] = true
			}
			if err := tx.Model(&models.Request{}).Where("id = ?", req.ID).
				Updates(updates).Error; err != nil {
				return "", fmt.Errorf("failed to update signature status: %w", err)
			}
			req.SignatureStatus = sigStatus
			advanced = true
			return Converge(req.Status, sigStatus, req.PaymentStatus, req.PaymentRequired()), nil
		})
	if err != nil || !applied {
		return err
	}

	switch sigStatus {
	case models.SignatureStatusCompleted:
		if advanced {
			go s.retrieveArtifactLater(request.ID, event.DocumentID)
		}
	case models.SignatureStatusDeclined, models.SignatureStatusVoided:
		// A late decline on an already completed document is noise, not
		// something for the remediation queue.
		if advanced {
			s.notifications.NotifyRemediation(request, fmt.Sprintf("signature document %s %s", event.DocumentID, sigStatus))
		}
	}

	return nil
}

// HandlePaymentEvent applies one payment callback. Negative events (failed,
// refunded) are recorded as facts and flagged for remediation; they never
// move the status backward.
func (s *ReconcileService) HandlePaymentEvent(ctx context.Context, event PaymentEvent) error {
	payStatus, err := normalizePaymentEvent(event.EventType)
	if err != nil {
		return err
	}

	request, err := s.resolveRequest(event.RequestID, "payment_session_id", event.ExternalRef)
	if err != nil {
		return err
	}

	unlock := s.lockRequest(request.ID)
	defer unlock()

	var advanced bool
	applied, err := s.applyEvent(request.ID, models.ProviderPayment, event.ExternalRef, string(payStatus), event.EventType, event.Payload,
		func(tx *gorm.DB, req *models.Request) (models.RequestStatus, error) {
			if !CanPaymentAdvance(req.PaymentStatus, payStatus) {
				// Fact-only: a late failure never overwrites paid.
				return req.Status, nil
			}
			if err := tx.Model(&models.Request{}).Where("id = ?", req.ID).
				Update("payment_status", payStatus).Error; err != nil {
				return "", fmt.Errorf("failed to update payment status: %w", err)
			}
			req.PaymentStatus = payStatus
			advanced = true
			return Converge(req.Status, req.SignatureStatus, payStatus, req.PaymentRequired()), nil
		})
	if err != nil || !applied {
		return err
	}

	if advanced && (payStatus == models.PaymentStatusFailed || payStatus == models.PaymentStatusRefunded) {
		s.notifications.NotifyRemediation(request, fmt.Sprintf("payment %s on session %s", payStatus, event.ExternalRef))
	}

	return nil
}

// applyEvent is the shared reconciliation step. Inside one transaction it
// records the deduplication row, lets the caller apply its sub-status write,
// converges, and compare-and-swaps the request status with its audit entry.
// It returns false when the event was already applied.
func (s *ReconcileService) applyEvent(requestID uuid.UUID, provider models.ProviderName, externalRef, normalized, eventType string, payload models.JSONB,
	apply func(tx *gorm.DB, req *models.Request) (models.RequestStatus, error)) (bool, error) {

	var duplicate, becameDone bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.ProviderEvent
		err := tx.Where("provider = ? AND external_ref = ? AND status = ?", provider, externalRef, normalized).
			First(&existing).Error
		if err == nil {
			duplicate = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check event dedup: %w", err)
		}

		var request models.Request
		if err := tx.First(&request, requestID).Error; err != nil {
			return fmt.Errorf("failed to reload request: %w", err)
		}

		now := time.Now()
		record := &models.ProviderEvent{
			Provider:    provider,
			ExternalRef: externalRef,
			Status:      normalized,
			EventType:   eventType,
			RequestID:   &requestID,
			Payload:     payload,
			ProcessedAt: &now,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to record provider event: %w", err)
		}

		next, err := apply(tx, &request)
		if err != nil {
			return err
		}

		note := fmt.Sprintf("%s event %s (%s)", provider, eventType, externalRef)
		if next == request.Status {
			// Sub-status moved but the visible status holds; keep the trail
			// reconstructible with an audit-only fact.
			return s.audit.AppendFact(tx, requestID, request.Status, nil, "system", note)
		}

		from := request.Status
		updates := map[string]interface{}{"status": next}
		if next == models.RequestStatusDone {
			updates["executed_at"] = now
		}

		result := tx.Model(&models.Request{}).
			Where("id = ? AND status = ?", requestID, from).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrStatusConflict
		}

		if next == models.RequestStatusDone {
			becameDone = true
			if err := s.licenses.MarkExecuted(tx, requestID, now); err != nil {
				return err
			}
		}

		return s.audit.Append(tx, requestID, &from, next, nil, "system", note)
	})
	if err != nil {
		return false, err
	}
	if duplicate {
		logrus.WithFields(logrus.Fields{
			"provider":     provider,
			"external_ref": externalRef,
			"status":       normalized,
		}).Info("Duplicate provider event ignored")
		return false, nil
	}

	// Completion side effects run after commit, and only for the event that
	// actually closed the package.
	if becameDone {
		var request models.Request
		if err := s.db.First(&request, requestID).Error; err == nil {
			s.notifications.NotifyExecuted(&request)
		}
	}

	return true, nil
}

func (s *ReconcileService) resolveRequest(requestID, refColumn, externalRef string) (*models.Request, error) {
	var request models.Request

	if requestID != "" {
		if id, err := uuid.Parse(requestID); err == nil {
			if err := s.db.First(&request, id).Error; err == nil {
				return &request, nil
			}
		}
	}

	if externalRef == "" {
		return nil, ErrNotFound
	}
	if err := s.db.Where(refColumn+" = ?", externalRef).First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &request, nil
}

func (s *ReconcileService) lockRequest(id uuid.UUID) func() {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// retrieveArtifactLater waits for the vendor to finalize the PDF, then
// fetches and archives it. Failures leave artifact_pending set for the retry
// sweep; the workflow itself is never blocked on the artifact.
func (s *ReconcileService) retrieveArtifactLater(requestID uuid.UUID, documentID string) {
	time.Sleep(time.Duration(s.workflow.ArtifactSettleSeconds) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.workflow.ArtifactFetchTimeout)*time.Second)
	defer cancel()

	if err := s.FetchExecutedArtifact(ctx, requestID, documentID); err != nil {
		logrus.WithError(err).WithField("request_id", requestID).
			Warn("Executed artifact retrieval deferred")
	}
}

// FetchExecutedArtifact downloads and archives the executed counterpart for a
// request whose signature leg completed. It is idempotent: an already
// archived artifact just clears the pending flag. The per-request lock
// serializes the background retrieval, the ticker sweep, and the manual admin
// trigger so only one of them archives.
func (s *ReconcileService) FetchExecutedArtifact(ctx context.Context, requestID uuid.UUID, documentID string) error {
	unlock := s.lockRequest(requestID)
	defer unlock()

	var request models.Request
	if err := s.db.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}
	if documentID == "" {
		documentID = request.SignatureDocumentID
	}

	content, err := s.signature.DownloadCompletedPDF(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to download executed document: %w", err)
	}

	if _, err := s.archive.ArchiveExecuted(nil, &request, content); err != nil && !errors.Is(err, ErrDuplicateArtifact) {
		return err
	}

	if err := s.db.Model(&models.Request{}).Where("id = ?", requestID).
		Update("artifact_pending", false).Error; err != nil {
		return fmt.Errorf("failed to clear pending artifact flag: %w", err)
	}
	return nil
}

// RetryPendingArtifacts sweeps requests whose completed signature still lacks
// its archived counterpart. Wired to a periodic ticker in the server.
func (s *ReconcileService) RetryPendingArtifacts(ctx context.Context) error {
	var requests []models.Request
	if err := s.db.Where("artifact_pending = ? AND signature_status = ?", true, models.SignatureStatusCompleted).
		Find(&requests).Error; err != nil {
		return fmt.Errorf("failed to list pending artifacts: %w", err)
	}

	for _, request := range requests {
		if err := s.FetchExecutedArtifact(ctx, request.ID, request.SignatureDocumentID); err != nil {
			logrus.WithError(err).WithField("request_id", request.ID).
				Warn("Pending artifact retry failed")
		}
	}
	return nil
}
