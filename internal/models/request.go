// internal/models/request.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Request is one licensing application. Its Status only ever moves through an
// admin action or the webhook reconciler; the signature/payment sub-status
// fields are independent axes updated from provider callbacks.
type Request struct {
	BaseModel
	LicenseeName  string `json:"licensee_name" gorm:"size:255;not null"`
	LicenseeEmail string `json:"licensee_email" gorm:"size:255;not null;index"`
	CompanyName   string `json:"company_name,omitempty" gorm:"size:255"`

	WorkTitle    string `json:"work_title" gorm:"size:255;not null"`
	ArtistName   string `json:"artist_name" gorm:"size:255"`
	ProjectTitle string `json:"project_title" gorm:"size:255"`
	UsageDetails JSONB  `json:"usage_details" gorm:"type:jsonb"`

	ProposedFee   float64        `json:"proposed_fee" gorm:"type:decimal(10,2);default:0"`
	Currency      string         `json:"currency" gorm:"size:3;default:'USD'"`
	Territory     string         `json:"territory" gorm:"size:100;default:'worldwide'"`
	Term          string         `json:"term" gorm:"size:100;default:'perpetual'"`
	SelectedTypes pq.StringArray `json:"selected_types" gorm:"type:text[]"`

	Status          RequestStatus   `json:"status" gorm:"type:varchar(20);default:'draft';index"`
	SignatureStatus SignatureStatus `json:"signature_status" gorm:"type:varchar(20);default:'none';index"`
	PaymentStatus   PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);default:'none';index"`

	// Package reference is the identifier of the first fanned-out license;
	// aggregate fee is the sum over the batch. Both are set exactly once.
	PackageReference string  `json:"package_reference,omitempty" gorm:"size:40;index"`
	AggregateFee     float64 `json:"aggregate_fee" gorm:"type:decimal(10,2);default:0"`

	// External execution references (package-level scope).
	SignatureDocumentID string `json:"signature_document_id,omitempty" gorm:"size:255;index"`
	PaymentSessionID    string `json:"payment_session_id,omitempty" gorm:"size:255;index"`

	// Set when a signature-completed callback was acknowledged but the
	// executed artifact has not been archived yet.
	ArtifactPending bool `json:"artifact_pending" gorm:"default:false"`

	SubmittedAt *time.Time `json:"submitted_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
	ApprovedBy  *uuid.UUID `json:"approved_by" gorm:"type:uuid"`
	ExecutedAt  *time.Time `json:"executed_at"`

	// Relationships
	Licenses  []License           `json:"licenses,omitempty" gorm:"foreignKey:RequestID"`
	History   []StatusHistory     `json:"history,omitempty" gorm:"foreignKey:RequestID"`
	Documents []GeneratedDocument `json:"documents,omitempty" gorm:"foreignKey:RequestID"`
}

// PaymentRequired reports whether the package needs a paid checkout before it
// can converge to done.
func (r *Request) PaymentRequired() bool {
	return r.AggregateFee > 0
}
