// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// License is one independently enforceable grant, always a child of exactly
// one Request. Identity and type are immutable after fan-out; corrections are
// made by issuing a superseding license, never by mutating an executed one.
type License struct {
	BaseModel
	RequestID uuid.UUID `json:"request_id" gorm:"type:uuid;not null;index"`

	LicenseRef   string  `json:"license_ref" gorm:"size:40;not null;uniqueIndex"`
	TypeCode     string  `json:"type_code" gorm:"size:30;not null;index"`
	Fee          float64 `json:"fee" gorm:"type:decimal(10,2);not null"`
	Currency     string  `json:"currency" gorm:"size:3;default:'USD'"`
	Term         string  `json:"term" gorm:"size:100;not null"`
	Territory    string  `json:"territory" gorm:"size:100;not null"`
	GrantText    string  `json:"grant_text" gorm:"type:text"`
	Restrictions string  `json:"restrictions" gorm:"type:text"`

	Status     LicenseStatus `json:"status" gorm:"type:varchar(20);default:'approved';index"`
	ExecutedAt *time.Time    `json:"executed_at"`

	// Set on the replacement license when an executed one is corrected.
	SupersedesID *uuid.UUID `json:"supersedes_id" gorm:"type:uuid;index"`

	// Relationships
	Request    *Request `json:"request,omitempty" gorm:"foreignKey:RequestID"`
	Supersedes *License `json:"supersedes,omitempty" gorm:"foreignKey:SupersedesID"`
}

// LicenseTypeConfig holds the configured defaults resolved during fan-out:
// one row per selectable license-type code.
type LicenseTypeConfig struct {
	BaseModel
	Code         string  `json:"code" gorm:"size:30;not null;uniqueIndex"`
	Name         string  `json:"name" gorm:"size:100;not null"`
	DefaultFee   float64 `json:"default_fee" gorm:"type:decimal(10,2);not null"`
	Term         string  `json:"term" gorm:"size:100;default:'perpetual'"`
	Territory    string  `json:"territory" gorm:"size:100;default:'worldwide'"`
	GrantText    string  `json:"grant_text" gorm:"type:text"`
	Restrictions string  `json:"restrictions" gorm:"type:text"`
	IsActive     bool    `json:"is_active" gorm:"default:true"`
}
