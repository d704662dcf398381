// internal/models/webhook_event.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderEvent stores inbound provider webhook payloads with deduplication
// metadata. The unique (provider, external_ref, status) index is the
// idempotency key: redelivery of an already-applied pair is a no-op.
type ProviderEvent struct {
	BaseModel
	Provider    ProviderName `json:"provider" gorm:"type:varchar(20);not null;uniqueIndex:ux_provider_events_key,priority:1"`
	ExternalRef string       `json:"external_ref" gorm:"size:255;not null;uniqueIndex:ux_provider_events_key,priority:2"`
	Status      string       `json:"status" gorm:"size:60;not null;uniqueIndex:ux_provider_events_key,priority:3"`
	EventType   string       `json:"event_type" gorm:"size:100;not null;index"`
	RequestID   *uuid.UUID   `json:"request_id" gorm:"type:uuid;index"`
	Payload     JSONB        `json:"payload" gorm:"type:jsonb"`
	ProcessedAt *time.Time   `json:"processed_at"`
}
