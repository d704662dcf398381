// internal/services/audit_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synclear/synclear-backend/internal/models"
	"github.com/synclear/synclear-backend/internal/utils"
)

// AuditService appends immutable status-history records. It deliberately
// exposes no update or delete operations: the trail is a compliance
// deliverable and must stay historically reconstructible.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Append writes one entry for an observed transition. Pass the transaction
// handle when the entry must commit atomically with the status write. A nil
// actor marks a system-driven transition; the note should then name the
// originating event.
func (s *AuditService) Append(tx *gorm.DB, requestID uuid.UUID, from *models.RequestStatus, to models.RequestStatus, actorID *uuid.UUID, actorName, note string) error {
	if tx == nil {
		tx = s.db
	}

	entry := &models.StatusHistory{
		RequestID:  requestID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		ActorName:  actorName,
		Note:       note,
	}

	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	return nil
}

// AppendFact records an audit-only fact that does not change the status
// (notes, negative provider events left for human remediation). The from and
// to statuses are equal by construction.
func (s *AuditService) AppendFact(tx *gorm.DB, requestID uuid.UUID, current models.RequestStatus, actorID *uuid.UUID, actorName, note string) error {
	cur := current
	return s.Append(tx, requestID, &cur, current, actorID, actorName, note)
}

// Timeline returns the request's history, most recent first.
func (s *AuditService) Timeline(requestID uuid.UUID, params utils.PaginationParams) ([]models.StatusHistory, int64, error) {
	query := s.db.Model(&models.StatusHistory{}).Where("request_id = ?", requestID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count status history: %w", err)
	}

	var entries []models.StatusHistory
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch status history: %w", err)
	}

	return entries, total, nil
}
