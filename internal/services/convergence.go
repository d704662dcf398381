// internal/services/convergence.go
package services

import "github.com/synclear/synclear-backend/internal/models"

// allowedTransitions is the reachable request status graph. Admin-driven
// edges are validated here before the compare-and-swap write; system edges
// (approved onward) are produced by the dispatcher and the reconciler.
var allowedTransitions = map[models.RequestStatus][]models.RequestStatus{
	models.RequestStatusDraft:     {models.RequestStatusSubmitted, models.RequestStatusClosed},
	models.RequestStatusSubmitted: {models.RequestStatusInReview, models.RequestStatusNeedsInfo, models.RequestStatusClosed},
	models.RequestStatusNeedsInfo: {models.RequestStatusInReview, models.RequestStatusClosed},
	models.RequestStatusInReview:  {models.RequestStatusApproved, models.RequestStatusNeedsInfo, models.RequestStatusClosed},
	models.RequestStatusApproved:  {models.RequestStatusAwaitingSignature, models.RequestStatusClosed},
	models.RequestStatusAwaitingSignature: {
		models.RequestStatusAwaitingPayment,
		models.RequestStatusDone,
		models.RequestStatusClosed,
	},
	models.RequestStatusAwaitingPayment: {models.RequestStatusDone, models.RequestStatusClosed},
}

// CanTransition reports whether the edge exists in the status graph.
// Terminal statuses have no outgoing edges.
func CanTransition(from, to models.RequestStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanSignatureAdvance guards the signature axis. A completed signature is
// final on its axis; a late declined or voided callback is recorded as a fact
// without regressing it. Declined and voided may still advance because a
// re-sent document reports completion under the same request.
func CanSignatureAdvance(from, to models.SignatureStatus) bool {
	return from != models.SignatureStatusCompleted
}

// CanPaymentAdvance guards the payment axis: paid only moves to refunded, a
// refund is final, and a failed attempt may still be retried to paid. A late
// payment_failed can never overwrite paid.
func CanPaymentAdvance(from, to models.PaymentStatus) bool {
	switch from {
	case models.PaymentStatusPaid:
		return to == models.PaymentStatusRefunded
	case models.PaymentStatusRefunded:
		return false
	}
	return true
}

// Converge maps the two independent execution sub-states onto the single
// visible request status. It is a pure function so the dual-provider state
// machine is testable without any provider SDK.
//
// Rules:
//   - terminal statuses never move (no automatic backward transitions, even
//     on refunds);
//   - signature completed and payment satisfied (paid, or not required for
//     the package) means done;
//   - signature completed but payment outstanding means awaiting_payment;
//   - anything else leaves the current status untouched: a payment arriving
//     before the signature keeps the request in awaiting_signature, and
//     declined/voided/failed facts are surfaced via the sub-status fields
//     for human remediation.
func Converge(current models.RequestStatus, sig models.SignatureStatus, pay models.PaymentStatus, paymentRequired bool) models.RequestStatus {
	if current.IsTerminal() {
		return current
	}

	if sig == models.SignatureStatusCompleted {
		if pay == models.PaymentStatusPaid || !paymentRequired {
			return models.RequestStatusDone
		}
		return models.RequestStatusAwaitingPayment
	}

	return current
}
