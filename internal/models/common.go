// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields. IDs are assigned in BeforeCreate so the same
// models work against Postgres and the in-memory test database.
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return nil
}

// Enums

// RequestStatus is the single visible status of a licensing request. The set
// is closed; provider payloads are normalized before they can touch it.
type RequestStatus string

const (
	RequestStatusDraft             RequestStatus = "draft"
	RequestStatusSubmitted         RequestStatus = "submitted"
	RequestStatusInReview          RequestStatus = "in_review"
	RequestStatusNeedsInfo         RequestStatus = "needs_info"
	RequestStatusApproved          RequestStatus = "approved"
	RequestStatusAwaitingSignature RequestStatus = "awaiting_signature"
	RequestStatusAwaitingPayment   RequestStatus = "awaiting_payment"
	RequestStatusDone              RequestStatus = "done"
	RequestStatusClosed            RequestStatus = "closed"
)

// IsTerminal reports whether a request in this status rejects further
// status-changing operations. Notes and audit reads are still allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusDone || s == RequestStatusClosed
}

// SignatureStatus tracks the e-signature execution axis independently of the
// request status.
type SignatureStatus string

const (
	SignatureStatusNone      SignatureStatus = "none"
	SignatureStatusSent      SignatureStatus = "sent"
	SignatureStatusCompleted SignatureStatus = "completed"
	SignatureStatusDeclined  SignatureStatus = "declined"
	SignatureStatusVoided    SignatureStatus = "voided"
)

// PaymentStatus tracks the payment execution axis.
type PaymentStatus string

const (
	PaymentStatusNone     PaymentStatus = "none"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type LicenseStatus string

const (
	LicenseStatusApproved   LicenseStatus = "approved"
	LicenseStatusExecuted   LicenseStatus = "executed"
	LicenseStatusSuperseded LicenseStatus = "superseded"
	LicenseStatusVoid       LicenseStatus = "void"
)

type DocumentKind string

const (
	DocumentKindDraft    DocumentKind = "draft"
	DocumentKindExecuted DocumentKind = "executed"
)

type ProviderName string

const (
	ProviderSignature ProviderName = "signature"
	ProviderPayment   ProviderName = "payment"
)

type UserRole string

const (
	UserRoleLicensee UserRole = "licensee"
	UserRoleAdmin    UserRole = "admin"
)
