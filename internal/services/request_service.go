// internal/services/request_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/synclear/synclear-backend/internal/models"
	"github.com/synclear/synclear-backend/internal/utils"
)

// RequestService orchestrates the licensing request lifecycle: intake,
// review, approval with license fan-out and contract generation, and
// closure. Every status write goes through a compare-and-swap against the
// status the caller observed, so two concurrent admin actions cannot both
// land.
type RequestService struct {
	db            *gorm.DB
	licenses      *LicenseService
	contracts     *ContractService
	archive       *ArchiveService
	audit         *AuditService
	dispatch      *DispatchService
	notifications *NotificationService
}

func NewRequestService(db *gorm.DB, licenses *LicenseService, contracts *ContractService, archive *ArchiveService, audit *AuditService, dispatch *DispatchService, notifications *NotificationService) *RequestService {
	return &RequestService{
		db:            db,
		licenses:      licenses,
		contracts:     contracts,
		archive:       archive,
		audit:         audit,
		dispatch:      dispatch,
		notifications: notifications,
	}
}

// CreateRequestInput is the intake payload.
type CreateRequestInput struct {
	LicenseeName  string                 `json:"licensee_name" validate:"required,min=2,max=255"`
	LicenseeEmail string                 `json:"licensee_email" validate:"required,email"`
	CompanyName   string                 `json:"company_name" validate:"max=255"`
	WorkTitle     string                 `json:"work_title" validate:"required,min=1,max=255"`
	ArtistName    string                 `json:"artist_name" validate:"max=255"`
	ProjectTitle  string                 `json:"project_title" validate:"max=255"`
	UsageDetails  map[string]interface{} `json:"usage_details"`
	ProposedFee   float64                `json:"proposed_fee" validate:"min=0"`
	Currency      string                 `json:"currency" validate:"omitempty,currency"`
	Territory     string                 `json:"territory" validate:"max=100"`
	Term          string                 `json:"term" validate:"max=100"`
	SelectedTypes []string               `json:"selected_types" validate:"required,min=1,dive,license_type_code"`
}

// CreateDraft opens a new request in draft and writes the birth entry of its
// audit trail (nil from-status marks creation).
func (s *RequestService) CreateDraft(input CreateRequestInput) (*models.Request, error) {
	request := &models.Request{
		LicenseeName:  input.LicenseeName,
		LicenseeEmail: input.LicenseeEmail,
		CompanyName:   input.CompanyName,
		WorkTitle:     input.WorkTitle,
		ArtistName:    input.ArtistName,
		ProjectTitle:  input.ProjectTitle,
		UsageDetails:  models.JSONB(input.UsageDetails),
		ProposedFee:   input.ProposedFee,
		Currency:      input.Currency,
		Territory:     input.Territory,
		Term:          input.Term,
		SelectedTypes: pq.StringArray(input.SelectedTypes),
		Status:        models.RequestStatusDraft,
	}
	if request.Currency == "" {
		request.Currency = "USD"
	}
	if request.Territory == "" {
		request.Territory = "worldwide"
	}
	if request.Term == "" {
		request.Term = "perpetual"
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(request).Error; err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return s.audit.Append(tx, request.ID, nil, models.RequestStatusDraft, nil, request.LicenseeName, "request created")
	})
	if err != nil {
		return nil, err
	}

	return request, nil
}

// Submit hands the draft to the review queue.
func (s *RequestService) Submit(id uuid.UUID) (*models.Request, error) {
	request, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, request, models.RequestStatusSubmitted,
			nil, request.LicenseeName, "submitted for review",
			map[string]interface{}{"submitted_at": now})
	})
	if err != nil {
		return nil, err
	}
	request.SubmittedAt = &now

	s.notifications.NotifySubmitted(request)
	return request, nil
}

// StartReview claims a submitted (or resubmitted) request for review.
func (s *RequestService) StartReview(id uuid.UUID, actorID uuid.UUID, actorName string) (*models.Request, error) {
	return s.adminTransition(id, models.RequestStatusInReview, actorID, actorName, "review started")
}

// RequestInfo bounces the request back to the licensee with a note saying
// what is missing.
func (s *RequestService) RequestInfo(id uuid.UUID, actorID uuid.UUID, actorName, note string) (*models.Request, error) {
	if note == "" {
		note = "additional information requested"
	}
	request, err := s.adminTransition(id, models.RequestStatusNeedsInfo, actorID, actorName, note)
	if err != nil {
		return nil, err
	}
	s.notifications.NotifyNeedsInfo(request, note)
	return request, nil
}

// Resubmit returns a needs_info request to the review queue after the
// licensee supplied what was asked for.
func (s *RequestService) Resubmit(id uuid.UUID, note string) (*models.Request, error) {
	request, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if note == "" {
		note = "information provided, returned to review"
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, request, models.RequestStatusInReview, nil, request.LicenseeName, note, nil)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Approve is the pivotal transition. In one transaction it compare-and-swaps
// in_review to approved, fans the request out into its license batch, and
// renders and archives the draft contract; a failure anywhere rolls all of it
// back. Dispatch to the two providers then runs outside the transaction, and
// only after both legs hold references does the request advance to
// awaiting_signature. A dispatch failure leaves it parked in approved for a
// retry.
func (s *RequestService) Approve(ctx context.Context, id uuid.UUID, actorID uuid.UUID, actorName string) (*models.Request, error) {
	request, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	var licenses []models.License

	if request.Status == models.RequestStatusInReview {
		now := time.Now()
		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.transition(tx, request, models.RequestStatusApproved,
				&actorID, actorName, "request approved",
				map[string]interface{}{"approved_at": now, "approved_by": actorID}); err != nil {
				return err
			}

			licenses, err = s.licenses.FanOut(tx, request)
			if err != nil {
				return err
			}

			draft, err := s.contracts.RenderDraft(tx, request, licenses)
			if err != nil {
				return err
			}
			if _, err := s.archive.ArchiveDraft(tx, request, []byte(draft)); err != nil {
				return err
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		request.ApprovedAt = &now
		request.ApprovedBy = &actorID
	} else if request.Status == models.RequestStatusApproved {
		// Retried approval after a dispatch failure: fan-out and draft
		// already committed, only the provider legs are outstanding.
		licenses, err = s.licenses.ListByRequest(request.ID)
		if err != nil {
			return nil, err
		}
	} else {
		if request.Status.IsTerminal() {
			return nil, ErrTerminalStatus
		}
		return nil, ErrInvalidTransition
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, DispatchTimeout)
	defer cancel()
	if err := s.dispatch.Dispatch(dispatchCtx, request, licenses); err != nil {
		logrus.WithError(err).WithField("request_id", request.ID).
			Warn("Dispatch incomplete, request parked in approved")
		return request, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, request, models.RequestStatusAwaitingSignature,
			&actorID, actorName, "contract sent for signature", nil)
	})
	if err != nil {
		return nil, err
	}

	s.notifications.NotifySentForSignature(request)
	return request, nil
}

// Close terminates the request from any non-terminal status.
func (s *RequestService) Close(id uuid.UUID, actorID uuid.UUID, actorName, note string) (*models.Request, error) {
	if note == "" {
		note = "request closed"
	}
	return s.adminTransition(id, models.RequestStatusClosed, actorID, actorName, note)
}

// AddNote appends an audit-only annotation without touching the status. Notes
// are allowed on terminal requests; the trail stays writable even when the
// workflow is finished.
func (s *RequestService) AddNote(id uuid.UUID, actorID uuid.UUID, actorName, note string) error {
	request, err := s.Get(id)
	if err != nil {
		return err
	}
	return s.audit.AppendFact(nil, request.ID, request.Status, &actorID, actorName, note)
}

// Get loads a request with its licenses and documents.
func (s *RequestService) Get(id uuid.UUID) (*models.Request, error) {
	var request models.Request
	if err := s.db.Preload("Licenses").Preload("Documents").First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &request, nil
}

// List returns the admin queue with optional status and search filters.
func (s *RequestService) List(params utils.PaginationParams) ([]models.Request, int64, error) {
	query := s.db.Model(&models.Request{})

	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Search != "" {
		search := "%" + params.Search + "%"
		query = query.Where("work_title ILIKE ? OR licensee_name ILIKE ? OR licensee_email ILIKE ? OR package_reference ILIKE ?",
			search, search, search, search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	var requests []models.Request
	query = utils.ApplySort(query, params, []string{"created_at", "updated_at", "submitted_at", "status", "work_title"})
	if err := utils.ApplyPagination(query, params).Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch requests: %w", err)
	}

	return requests, total, nil
}

func (s *RequestService) adminTransition(id uuid.UUID, to models.RequestStatus, actorID uuid.UUID, actorName, note string) (*models.Request, error) {
	request, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, request, to, &actorID, actorName, note, nil)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// transition performs the compare-and-swap status write plus its audit entry
// in the caller's transaction. The WHERE clause pins the status the caller
// observed; zero rows affected means someone else moved the request first and
// the caller gets ErrStatusConflict instead of a silent overwrite.
func (s *RequestService) transition(tx *gorm.DB, request *models.Request, to models.RequestStatus, actorID *uuid.UUID, actorName, note string, extra map[string]interface{}) error {
	from := request.Status

	if from.IsTerminal() {
		return ErrTerminalStatus
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}

	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.Model(&models.Request{}).
		Where("id = ? AND status = ?", request.ID, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}

	if err := s.audit.Append(tx, request.ID, &from, to, actorID, actorName, note); err != nil {
		return err
	}

	request.Status = to
	return nil
}
