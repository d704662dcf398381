// internal/services/testhelper_test.go
package services

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/synclear/synclear-backend/internal/config"
	"github.com/synclear/synclear-backend/internal/database"
	"github.com/synclear/synclear-backend/internal/models"
	"github.com/synclear/synclear-backend/internal/providers"
	"github.com/synclear/synclear-backend/internal/utils"
)

// newTestDB opens an isolated in-memory database with the full schema and
// seed catalogs. A single connection keeps the :memory: database alive and
// serializes access the way a pooled Postgres connection would not need.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Request{},
		&models.License{},
		&models.LicenseTypeConfig{},
		&models.StatusHistory{},
		&models.GeneratedDocument{},
		&models.ClauseTemplate{},
		&models.ProviderEvent{},
		&models.AdminNotification{},
		&models.AuditLog{},
	))
	require.NoError(t, database.SeedInitialData(db))

	return db
}

// testEnv bundles the whole service graph over one test database, with
// placeholder providers standing in for the vendors.
type testEnv struct {
	db        *gorm.DB
	cfg       *config.Config
	audit     *AuditService
	licenses  *LicenseService
	contracts *ContractService
	archive   *ArchiveService
	dispatch  *DispatchService
	requests  *RequestService
	reconcile *ReconcileService
	notify    *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	cfg := &config.Config{
		Environment: "test",
		Storage:     config.StorageConfig{LocalDir: t.TempDir()},
		Payment: config.PaymentConfig{
			SuccessURL: "http://localhost:3000/payment/success",
			CancelURL:  "http://localhost:3000/payment/cancelled",
		},
		// Long settle delay so background artifact retrieval never races the
		// assertions; tests fetch synchronously where they need the artifact.
		Workflow: config.WorkflowConfig{ArtifactSettleSeconds: 3600, ArtifactFetchTimeout: 5},
	}

	signatureProvider := providers.NewSignatureProvider(cfg.Signature)
	paymentProvider := providers.NewPaymentProvider(cfg.Payment)

	notify := NewNotificationService(db, cfg)
	audit := NewAuditService(db)
	licenses := NewLicenseService(db)
	contracts := NewContractService(db)
	archive, err := NewArchiveService(db, cfg.Storage)
	require.NoError(t, err)
	dispatch := NewDispatchService(db, signatureProvider, paymentProvider, contracts, cfg)
	requests := NewRequestService(db, licenses, contracts, archive, audit, dispatch, notify)
	reconcile := NewReconcileService(db, audit, licenses, archive, signatureProvider, notify, cfg.Workflow)

	return &testEnv{
		db:        db,
		cfg:       cfg,
		audit:     audit,
		licenses:  licenses,
		contracts: contracts,
		archive:   archive,
		dispatch:  dispatch,
		requests:  requests,
		reconcile: reconcile,
		notify:    notify,
	}
}

func testPaginationParams() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"}
}

func testIntakeInput() CreateRequestInput {
	return CreateRequestInput{
		LicenseeName:  "Ada Reyes",
		LicenseeEmail: "ada@example.com",
		WorkTitle:     "Midnight Run",
		ArtistName:    "The Nightowls",
		ProjectTitle:  "Indie Film 2026",
		UsageDetails:  map[string]interface{}{"medium": "film", "duration_seconds": 45},
		Currency:      "USD",
		SelectedTypes: []string{"sync", "master"},
	}
}

var testAdminID = uuid.New()

// approvedRequest walks a fresh request through intake, submission, review,
// and approval, landing it in awaiting_signature with provider references.
func approvedRequest(t *testing.T, env *testEnv) *models.Request {
	t.Helper()

	request, err := env.requests.CreateDraft(testIntakeInput())
	require.NoError(t, err)

	request, err = env.requests.Submit(request.ID)
	require.NoError(t, err)

	request, err = env.requests.StartReview(request.ID, testAdminID, "Taylor Admin")
	require.NoError(t, err)

	request, err = env.requests.Approve(context.Background(), request.ID, testAdminID, "Taylor Admin")
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusAwaitingSignature, request.Status)
	require.NotEmpty(t, request.SignatureDocumentID)
	require.NotEmpty(t, request.PaymentSessionID)

	return request
}
