// internal/models/admin.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// AdminNotification feeds the admin review queue (new submissions, executed
// packages, events left for human remediation).
type AdminNotification struct {
	BaseModel
	Type             string     `json:"type" gorm:"type:varchar(50);not null;index"`
	Title            string     `json:"title" gorm:"size:255;not null"`
	Message          string     `json:"message" gorm:"type:text;not null"`
	Priority         string     `json:"priority" gorm:"type:varchar(20);default:'medium';index"`
	Status           string     `json:"status" gorm:"type:varchar(20);default:'unread';index"`
	RelatedRequestID *uuid.UUID `json:"related_request_id" gorm:"type:uuid;index"`
	ReadAt           *time.Time `json:"read_at"`
}

// AuditLog is the HTTP-level audit record written by middleware for mutating
// admin calls. Domain transitions have their own StatusHistory trail.
type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`
}
