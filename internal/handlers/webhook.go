// internal/handlers/webhook.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/synclear/synclear-backend/internal/config"
	"github.com/synclear/synclear-backend/internal/i18n"
	"github.com/synclear/synclear-backend/internal/models"
	"github.com/synclear/synclear-backend/internal/services"
	"github.com/synclear/synclear-backend/internal/utils"
)

const webhookBodyLimit = 1 << 20 // 1 MiB

// WebhookHandler is the untrusted edge of the reconciler. It verifies the
// provider's signature over the raw body, decodes the payload, and hands a
// normalized event to the reconcile service. Everything past this point
// trusts its input.
type WebhookHandler struct {
	reconcileService *services.ReconcileService
	cfg              *config.Config
}

func NewWebhookHandler(reconcileService *services.ReconcileService, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{
		reconcileService: reconcileService,
		cfg:              cfg,
	}
}

// signatureWebhookPayload is the e-signature vendor's callback shape.
type signatureWebhookPayload struct {
	EventType string `json:"event_type"`
	Data      struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	} `json:"data"`
}

// POST /v1/webhooks/signature
func (h *WebhookHandler) HandleSignatureWebhook(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read request body", nil)
		return
	}

	if secret := h.cfg.Signature.WebhookSecret; secret != "" {
		signature := c.GetHeader("X-Signature")
		if !utils.VerifyPayloadSignature(secret, body, signature) {
			logrus.WithField("ip", c.ClientIP()).Warn("Signature webhook failed verification")
			utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_SIGNATURE",
				i18n.T(lang, i18n.KeyWebhookInvalidSignature), nil)
			return
		}
	}

	var payload signatureWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.BadRequestResponse(c, "Malformed webhook payload", nil)
		return
	}

	var raw models.JSONB
	if err := json.Unmarshal(body, &raw); err != nil {
		// The typed decode above succeeded, so the body is valid JSON but
		// not an object. Keep the event, drop the raw copy.
		raw = nil
	}

	event := services.SignatureEvent{
		EventType:  payload.EventType,
		DocumentID: payload.Data.ID,
		RequestID:  payload.Data.Metadata["request_id"],
		Payload:    raw,
	}

	if err := h.reconcileService.HandleSignatureEvent(c.Request.Context(), event); err != nil {
		h.reconcileError(c, err, "signature", payload.EventType)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyWebhookProcessed)})
}

// POST /v1/webhooks/payment
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read request body", nil)
		return
	}

	event, err := webhook.ConstructEvent(body, c.GetHeader("Stripe-Signature"), h.cfg.Payment.StripeWebhookSecret)
	if err != nil {
		logrus.WithError(err).WithField("ip", c.ClientIP()).Warn("Stripe webhook failed verification")
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_SIGNATURE",
			i18n.T(lang, i18n.KeyWebhookInvalidSignature), nil)
		return
	}

	externalRef, requestID, err := extractPaymentReferences(event)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	var raw models.JSONB
	if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
		// Stripe already verified and parsed the envelope; a non-object
		// data block only costs us the stored raw copy.
		raw = nil
	}

	paymentEvent := services.PaymentEvent{
		EventType:   string(event.Type),
		ExternalRef: externalRef,
		RequestID:   requestID,
		Payload:     raw,
	}

	if err := h.reconcileService.HandlePaymentEvent(c.Request.Context(), paymentEvent); err != nil {
		h.reconcileError(c, err, "payment", string(event.Type))
		return
	}

	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyWebhookProcessed)})
}

func extractPaymentReferences(event stripe.Event) (externalRef, requestID string, err error) {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return "", "", errors.New("malformed checkout session payload")
		}
		return sess.ID, sess.Metadata["request_id"], nil
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return "", "", errors.New("malformed payment intent payload")
		}
		return intent.ID, intent.Metadata["request_id"], nil
	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return "", "", errors.New("malformed charge payload")
		}
		return charge.ID, charge.Metadata["request_id"], nil
	}
	// Unrecognized types fall through to the reconciler's closed
	// enumeration and are rejected there.
	return "", "", nil
}

// reconcileError maps reconciliation failures onto webhook responses. A 4xx
// tells the provider the delivery is unprocessable and will never succeed; a
// 5xx asks for redelivery.
func (h *WebhookHandler) reconcileError(c *gin.Context, err error, provider, eventType string) {
	lang := utils.GetLangFromContext(c)

	log := logrus.WithFields(logrus.Fields{"provider": provider, "event_type": eventType})

	switch {
	case errors.Is(err, services.ErrUnrecognizedEvent):
		log.Warn("Unrecognized webhook event type")
		utils.ErrorResponse(c, http.StatusBadRequest, "UNKNOWN_EVENT",
			i18n.T(lang, i18n.KeyWebhookUnknownEvent), nil)
	case errors.Is(err, services.ErrNotFound):
		log.Warn("Webhook references unknown request")
		utils.ErrorResponse(c, http.StatusBadRequest, "UNKNOWN_REFERENCE",
			i18n.T(lang, i18n.KeyRequestNotFound), nil)
	case errors.Is(err, services.ErrStatusConflict):
		// Lost a race with another writer; the provider's retry will land.
		log.Info("Webhook lost a status race, requesting redelivery")
		utils.ErrorResponse(c, http.StatusConflict, "CONFLICT",
			i18n.T(lang, i18n.KeyRequestConflict), nil)
	default:
		log.WithError(err).Error("Webhook processing failed")
		utils.InternalErrorResponse(c, "")
	}
}
