// internal/models/history.go
package models

import "github.com/google/uuid"

// StatusHistory is the append-only audit record for request transitions.
// Rows are never updated or deleted; system-driven entries have a nil actor
// and name the originating event in the note.
type StatusHistory struct {
	BaseModel
	RequestID  uuid.UUID      `json:"request_id" gorm:"type:uuid;not null;index"`
	FromStatus *RequestStatus `json:"from_status" gorm:"type:varchar(20)"`
	ToStatus   RequestStatus  `json:"to_status" gorm:"type:varchar(20);not null"`
	ActorID    *uuid.UUID     `json:"actor_id" gorm:"type:uuid"`
	ActorName  string         `json:"actor_name,omitempty" gorm:"size:255"`
	Note       string         `json:"note,omitempty" gorm:"type:text"`
}
