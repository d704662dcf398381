// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"

	// Requests
	KeyRequestCreated    = "request.created"
	KeyRequestSubmitted  = "request.submitted"
	KeyRequestNotFound   = "request.not_found"
	KeyRequestInReview   = "request.in_review"
	KeyRequestNeedsInfo  = "request.needs_info"
	KeyRequestApproved   = "request.approved"
	KeyRequestClosed     = "request.closed"
	KeyRequestConflict   = "request.status_conflict"
	KeyRequestTerminal   = "request.terminal"
	KeyRequestNoteAdded  = "request.note_added"

	// Licenses
	KeyLicenseNotFound  = "license.not_found"
	KeyLicenseVerified  = "license.verified"
	KeyLicenseInactive  = "license.inactive"

	// Documents
	KeyDocumentNotFound  = "document.not_found"
	KeyDocumentImmutable = "document.immutable"

	// Webhooks
	KeyWebhookInvalidSignature = "webhook.invalid_signature"
	KeyWebhookUnknownEvent     = "webhook.unknown_event"
	KeyWebhookProcessed        = "webhook.processed"
	KeyWebhookDuplicate        = "webhook.duplicate"

	// Payments
	KeyPaymentSessionCreated = "payment.session_created"
	KeyPaymentFailed         = "payment.failed"

	// Admin
	KeyAdminActionSuccess = "admin.action_success"
	KeyAdminAccessDenied  = "admin.access_denied"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
)
