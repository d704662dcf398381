// internal/services/convergence_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synclear/synclear-backend/internal/models"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.RequestStatusDraft, models.RequestStatusSubmitted))
	assert.True(t, CanTransition(models.RequestStatusSubmitted, models.RequestStatusInReview))
	assert.True(t, CanTransition(models.RequestStatusInReview, models.RequestStatusNeedsInfo))
	assert.True(t, CanTransition(models.RequestStatusNeedsInfo, models.RequestStatusInReview))
	assert.True(t, CanTransition(models.RequestStatusInReview, models.RequestStatusApproved))
	assert.True(t, CanTransition(models.RequestStatusApproved, models.RequestStatusAwaitingSignature))
	assert.True(t, CanTransition(models.RequestStatusAwaitingSignature, models.RequestStatusAwaitingPayment))
	assert.True(t, CanTransition(models.RequestStatusAwaitingSignature, models.RequestStatusDone))
	assert.True(t, CanTransition(models.RequestStatusAwaitingPayment, models.RequestStatusDone))

	// Closure is reachable from every live status.
	for _, from := range []models.RequestStatus{
		models.RequestStatusDraft, models.RequestStatusSubmitted, models.RequestStatusNeedsInfo,
		models.RequestStatusInReview, models.RequestStatusApproved,
		models.RequestStatusAwaitingSignature, models.RequestStatusAwaitingPayment,
	} {
		assert.True(t, CanTransition(from, models.RequestStatusClosed), "close from %s", from)
	}
}

func TestCanTransitionRejectsSkipsAndReversals(t *testing.T) {
	assert.False(t, CanTransition(models.RequestStatusDraft, models.RequestStatusApproved))
	assert.False(t, CanTransition(models.RequestStatusSubmitted, models.RequestStatusDone))
	assert.False(t, CanTransition(models.RequestStatusApproved, models.RequestStatusInReview))
	assert.False(t, CanTransition(models.RequestStatusAwaitingPayment, models.RequestStatusAwaitingSignature))

	// Terminal statuses have no outgoing edges.
	assert.False(t, CanTransition(models.RequestStatusDone, models.RequestStatusClosed))
	assert.False(t, CanTransition(models.RequestStatusClosed, models.RequestStatusDraft))
	assert.False(t, CanTransition(models.RequestStatusDone, models.RequestStatusAwaitingPayment))
}

func TestConvergeSignatureThenPayment(t *testing.T) {
	// Signature completes first on a paid package.
	status := Converge(models.RequestStatusAwaitingSignature,
		models.SignatureStatusCompleted, models.PaymentStatusPending, true)
	assert.Equal(t, models.RequestStatusAwaitingPayment, status)

	// Then payment lands.
	status = Converge(status, models.SignatureStatusCompleted, models.PaymentStatusPaid, true)
	assert.Equal(t, models.RequestStatusDone, status)
}

func TestConvergePaymentThenSignature(t *testing.T) {
	// Payment lands while the document is still out for signature; the
	// visible status holds.
	status := Converge(models.RequestStatusAwaitingSignature,
		models.SignatureStatusSent, models.PaymentStatusPaid, true)
	assert.Equal(t, models.RequestStatusAwaitingSignature, status)

	// Signature completion then converges straight to done.
	status = Converge(status, models.SignatureStatusCompleted, models.PaymentStatusPaid, true)
	assert.Equal(t, models.RequestStatusDone, status)
}

func TestConvergeZeroFeePackage(t *testing.T) {
	// No payment leg: signature completion alone finishes the package.
	status := Converge(models.RequestStatusAwaitingSignature,
		models.SignatureStatusCompleted, models.PaymentStatusNone, false)
	assert.Equal(t, models.RequestStatusDone, status)
}

func TestConvergeNegativeEventsHoldStatus(t *testing.T) {
	for _, sig := range []models.SignatureStatus{
		models.SignatureStatusDeclined, models.SignatureStatusVoided, models.SignatureStatusSent,
	} {
		status := Converge(models.RequestStatusAwaitingSignature, sig, models.PaymentStatusFailed, true)
		assert.Equal(t, models.RequestStatusAwaitingSignature, status, "sig=%s", sig)
	}
}

func TestConvergeTerminalIsSticky(t *testing.T) {
	// A refund after completion never reopens the request.
	status := Converge(models.RequestStatusDone,
		models.SignatureStatusCompleted, models.PaymentStatusRefunded, true)
	assert.Equal(t, models.RequestStatusDone, status)

	status = Converge(models.RequestStatusClosed,
		models.SignatureStatusCompleted, models.PaymentStatusPaid, true)
	assert.Equal(t, models.RequestStatusClosed, status)
}
