// internal/services/reconcile_service_test.go
package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synclear/synclear-backend/internal/models"
)

func completedSignatureEvent(request *models.Request) SignatureEvent {
	return SignatureEvent{
		EventType:  "document.completed",
		DocumentID: request.SignatureDocumentID,
		RequestID:  request.ID.String(),
		Payload:    models.JSONB{"id": request.SignatureDocumentID},
	}
}

func paidPaymentEvent(request *models.Request) PaymentEvent {
	return PaymentEvent{
		EventType:   "checkout.session.completed",
		ExternalRef: request.PaymentSessionID,
		RequestID:   request.ID.String(),
		Payload:     models.JSONB{"id": request.PaymentSessionID},
	}
}

func TestNormalizeRejectsUnknownEventTypes(t *testing.T) {
	_, err := normalizeSignatureEvent("document.viewed")
	assert.ErrorIs(t, err, ErrUnrecognizedEvent)

	_, err = normalizePaymentEvent("invoice.finalized")
	assert.ErrorIs(t, err, ErrUnrecognizedEvent)
}

func TestReconcileSignatureThenPayment(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)
	ctx := context.Background()

	require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, completedSignatureEvent(request)))

	mid, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAwaitingPayment, mid.Status)
	assert.Equal(t, models.SignatureStatusCompleted, mid.SignatureStatus)

	require.NoError(t, env.reconcile.HandlePaymentEvent(ctx, paidPaymentEvent(request)))

	final, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusDone, final.Status)
	assert.Equal(t, models.PaymentStatusPaid, final.PaymentStatus)
	assert.NotNil(t, final.ExecutedAt)

	// Child licenses follow the package into executed.
	for _, lic := range final.Licenses {
		assert.Equal(t, models.LicenseStatusExecuted, lic.Status)
		assert.NotNil(t, lic.ExecutedAt)
	}
}

func TestReconcilePaymentBeforeSignature(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)
	ctx := context.Background()

	// Payment lands first; the visible status holds until the signature.
	require.NoError(t, env.reconcile.HandlePaymentEvent(ctx, paidPaymentEvent(request)))

	mid, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAwaitingSignature, mid.Status)
	assert.Equal(t, models.PaymentStatusPaid, mid.PaymentStatus)

	// Signature completion converges straight to done, skipping
	// awaiting_payment entirely.
	require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, completedSignatureEvent(request)))

	final, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusDone, final.Status)

	// Both orderings produce the same terminal state; the trail differs only
	// in the intermediate entries.
	var viaAwaitingPayment int64
	env.db.Model(&models.StatusHistory{}).
		Where("request_id = ? AND to_status = ?", request.ID, models.RequestStatusAwaitingPayment).
		Count(&viaAwaitingPayment)
	assert.Equal(t, int64(0), viaAwaitingPayment)
}

func TestReconcileReplayIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)
	ctx := context.Background()

	event := completedSignatureEvent(request)
	require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, event))

	countRows := func(model interface{}) int64 {
		var n int64
		env.db.Model(model).Count(&n)
		return n
	}
	historyBefore := countRows(&models.StatusHistory{})
	eventsBefore := countRows(&models.ProviderEvent{})
	docsBefore := countRows(&models.GeneratedDocument{})

	// Redeliver the exact same event three times.
	for i := 0; i < 3; i++ {
		require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, event))
	}

	assert.Equal(t, historyBefore, countRows(&models.StatusHistory{}))
	assert.Equal(t, eventsBefore, countRows(&models.ProviderEvent{}))
	assert.Equal(t, docsBefore, countRows(&models.GeneratedDocument{}))

	reloaded, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAwaitingPayment, reloaded.Status)
}

func TestReconcileNegativeEventsRecordFactsOnly(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)
	ctx := context.Background()

	declined := SignatureEvent{
		EventType:  "document.declined",
		DocumentID: request.SignatureDocumentID,
		RequestID:  request.ID.String(),
	}
	require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, declined))

	reloaded, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAwaitingSignature, reloaded.Status)
	assert.Equal(t, models.SignatureStatusDeclined, reloaded.SignatureStatus)

	// The fact is on the trail as a non-transition entry, and the admin
	// queue carries a remediation item.
	var facts int64
	env.db.Model(&models.StatusHistory{}).
		Where("request_id = ? AND from_status = to_status", request.ID).
		Count(&facts)
	assert.GreaterOrEqual(t, facts, int64(1))

	var remediation int64
	env.db.Model(&models.AdminNotification{}).
		Where("type = ? AND related_request_id = ?", NotificationTypeRemediation, request.ID).
		Count(&remediation)
	assert.Equal(t, int64(1), remediation)
}

func TestReconcileRefundAfterDoneDoesNotReopen(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)
	ctx := context.Background()

	require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, completedSignatureEvent(request)))
	require.NoError(t, env.reconcile.HandlePaymentEvent(ctx, paidPaymentEvent(request)))

	refund := PaymentEvent{
		EventType:   "charge.refunded",
		ExternalRef: "ch_" + request.PaymentSessionID,
		RequestID:   request.ID.String(),
	}
	require.NoError(t, env.reconcile.HandlePaymentEvent(ctx, refund))

	reloaded, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusDone, reloaded.Status)
	assert.Equal(t, models.PaymentStatusRefunded, reloaded.PaymentStatus)
}

func TestReconcileLateFailureNeverOverwritesPaid(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)
	ctx := context.Background()

	require.NoError(t, env.reconcile.HandlePaymentEvent(ctx, paidPaymentEvent(request)))

	// A straggling failure callback from an earlier attempt arrives after
	// the successful one.
	failed := PaymentEvent{
		EventType:   "payment_intent.payment_failed",
		ExternalRef: "pi_" + request.PaymentSessionID,
		RequestID:   request.ID.String(),
	}
	require.NoError(t, env.reconcile.HandlePaymentEvent(ctx, failed))

	reloaded, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, reloaded.PaymentStatus)
	assert.Equal(t, models.RequestStatusAwaitingSignature, reloaded.Status)

	// The delivery still lands on the trail as a fact, but nothing is queued
	// for remediation.
	var facts int64
	env.db.Model(&models.StatusHistory{}).
		Where("request_id = ? AND from_status = to_status", request.ID).
		Count(&facts)
	assert.GreaterOrEqual(t, facts, int64(1))

	var remediation int64
	env.db.Model(&models.AdminNotification{}).
		Where("type = ? AND related_request_id = ?", NotificationTypeRemediation, request.ID).
		Count(&remediation)
	assert.Equal(t, int64(0), remediation)
}

func TestReconcilePaymentRetryAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)
	ctx := context.Background()

	failed := PaymentEvent{
		EventType:   "payment_intent.payment_failed",
		ExternalRef: "pi_first_attempt",
		RequestID:   request.ID.String(),
	}
	require.NoError(t, env.reconcile.HandlePaymentEvent(ctx, failed))

	mid, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, mid.PaymentStatus)

	// The licensee retries checkout and succeeds.
	require.NoError(t, env.reconcile.HandlePaymentEvent(ctx, paidPaymentEvent(request)))

	reloaded, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, reloaded.PaymentStatus)
}

func TestReconcileLateDeclineHoldsCompletedSignature(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)
	ctx := context.Background()

	require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, completedSignatureEvent(request)))

	declined := SignatureEvent{
		EventType:  "document.declined",
		DocumentID: request.SignatureDocumentID,
		RequestID:  request.ID.String(),
	}
	require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, declined))

	reloaded, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SignatureStatusCompleted, reloaded.SignatureStatus)
	assert.Equal(t, models.RequestStatusAwaitingPayment, reloaded.Status)

	var remediation int64
	env.db.Model(&models.AdminNotification{}).
		Where("type = ? AND related_request_id = ?", NotificationTypeRemediation, request.ID).
		Count(&remediation)
	assert.Equal(t, int64(0), remediation)
}

func TestSignatureCompletionCommitsArtifactPendingWithStatus(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)
	ctx := context.Background()

	require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, completedSignatureEvent(request)))

	// The pending flag is part of the same committed write as the status, so
	// it is visible the moment the webhook is acknowledged.
	reloaded, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SignatureStatusCompleted, reloaded.SignatureStatus)
	assert.True(t, reloaded.ArtifactPending)
}

func TestConcurrentArtifactRetrievalArchivesOnce(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)
	ctx := context.Background()

	require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, completedSignatureEvent(request)))
	require.NoError(t, env.reconcile.HandlePaymentEvent(ctx, paidPaymentEvent(request)))

	// The background retrieval, the sweep, and a manual trigger may all race
	// for the same artifact.
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.reconcile.FetchExecutedArtifact(ctx, request.ID, request.SignatureDocumentID)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var executed int64
	env.db.Model(&models.GeneratedDocument{}).
		Where("request_id = ? AND kind = ?", request.ID, models.DocumentKindExecuted).
		Count(&executed)
	assert.Equal(t, int64(1), executed)
}

func TestFetchExecutedArtifactIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)
	ctx := context.Background()

	require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, completedSignatureEvent(request)))
	require.NoError(t, env.reconcile.HandlePaymentEvent(ctx, paidPaymentEvent(request)))

	require.NoError(t, env.reconcile.FetchExecutedArtifact(ctx, request.ID, request.SignatureDocumentID))
	require.NoError(t, env.reconcile.FetchExecutedArtifact(ctx, request.ID, request.SignatureDocumentID))

	var executed []models.GeneratedDocument
	require.NoError(t, env.db.Where("request_id = ? AND kind = ?", request.ID, models.DocumentKindExecuted).
		Find(&executed).Error)
	require.Len(t, executed, 1)
	assert.Contains(t, executed[0].Name, "executed")

	reloaded, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.ArtifactPending)
}

func TestArchiveExecutedImmutability(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)

	_, err := env.archive.ArchiveExecuted(nil, request, []byte("signed counterpart"))
	require.NoError(t, err)

	_, err = env.archive.ArchiveExecuted(nil, request, []byte("tampered counterpart"))
	assert.ErrorIs(t, err, ErrDuplicateArtifact)

	// Drafts are unaffected by the executed guard.
	_, err = env.archive.ArchiveDraft(nil, request, []byte("another draft"))
	assert.NoError(t, err)
}

func TestReconcileUnknownReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.reconcile.HandleSignatureEvent(ctx, SignatureEvent{
		EventType:  "document.completed",
		DocumentID: "sigdoc-that-never-was",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEndToEndZeroFeePackage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A package whose configured fees sum to zero needs no payment leg.
	require.NoError(t, env.db.Create(&models.LicenseTypeConfig{
		Code: "gratis", Name: "Gratis License", DefaultFee: 0,
		Term: "1 year", Territory: "worldwide",
		GrantText: "Licensor grants Licensee a no-fee evaluation right.",
		IsActive:  true,
	}).Error)

	input := testIntakeInput()
	input.SelectedTypes = []string{"gratis"}
	request, err := env.requests.CreateDraft(input)
	require.NoError(t, err)
	_, err = env.requests.Submit(request.ID)
	require.NoError(t, err)
	_, err = env.requests.StartReview(request.ID, testAdminID, "Taylor Admin")
	require.NoError(t, err)
	request, err = env.requests.Approve(ctx, request.ID, testAdminID, "Taylor Admin")
	require.NoError(t, err)

	assert.Equal(t, float64(0), request.AggregateFee)
	assert.Empty(t, request.PaymentSessionID, "zero-fee packages open no checkout session")

	require.NoError(t, env.reconcile.HandleSignatureEvent(ctx, completedSignatureEvent(request)))

	final, err := env.requests.Get(request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusDone, final.Status)
}
