// internal/models/document.go
package models

import "github.com/google/uuid"

// GeneratedDocument is an immutable artifact reference. A request may collect
// several drafts over its life, but at most one executed document; the
// executed entry is never replaced once written.
type GeneratedDocument struct {
	BaseModel
	RequestID   uuid.UUID    `json:"request_id" gorm:"type:uuid;not null;index"`
	Kind        DocumentKind `json:"kind" gorm:"type:varchar(10);not null;index"`
	Name        string       `json:"name" gorm:"size:255;not null"`
	StorageKey  string       `json:"storage_key" gorm:"size:512;not null"`
	StorageURL  string       `json:"storage_url" gorm:"size:512"`
	ContentType string       `json:"content_type" gorm:"size:100;default:'application/pdf'"`
	SizeBytes   int64        `json:"size_bytes"`

	// Relationships
	Request *Request `json:"request,omitempty" gorm:"foreignKey:RequestID"`
}

// ClauseTemplate is one ordered contract clause with {{placeholder}} tokens.
type ClauseTemplate struct {
	BaseModel
	Slug     string `json:"slug" gorm:"size:60;not null;uniqueIndex"`
	Title    string `json:"title" gorm:"size:255;not null"`
	Body     string `json:"body" gorm:"type:text;not null"`
	Position int    `json:"position" gorm:"not null;index"`
	IsActive bool   `json:"is_active" gorm:"default:true"`
}
