// internal/services/contract_service_test.go
package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/synclear/synclear-backend/internal/models"
)

func TestRenderDraftSubstitutesTokens(t *testing.T) {
	env := newTestEnv(t)

	request, err := env.requests.CreateDraft(testIntakeInput())
	require.NoError(t, err)
	licenses, err := env.licenses.FanOut(nil, request)
	require.NoError(t, err)

	draft, err := env.contracts.RenderDraft(nil, request, licenses)
	require.NoError(t, err)

	assert.Contains(t, draft, "Ada Reyes")
	assert.Contains(t, draft, "Midnight Run")
	assert.Contains(t, draft, "The Nightowls")
	assert.Contains(t, draft, request.PackageReference)
	assert.Contains(t, draft, "800.00")
	assert.Contains(t, draft, "USD")

	// Grant text is assembled per license, tagged with its reference.
	for _, lic := range licenses {
		assert.Contains(t, draft, "["+lic.LicenseRef+"]")
	}

	// No raw tokens may survive rendering.
	assert.NotContains(t, draft, "{{")
}

func TestRenderDraftClauseOrderAndNumbering(t *testing.T) {
	env := newTestEnv(t)

	request, err := env.requests.CreateDraft(testIntakeInput())
	require.NoError(t, err)
	licenses, err := env.licenses.FanOut(nil, request)
	require.NoError(t, err)

	draft, err := env.contracts.RenderDraft(nil, request, licenses)
	require.NoError(t, err)

	parties := strings.Index(draft, "1. Parties")
	work := strings.Index(draft, "2. The Work")
	execution := strings.Index(draft, "7. Execution")
	require.GreaterOrEqual(t, parties, 0)
	assert.Greater(t, work, parties)
	assert.Greater(t, execution, work)
}

func TestRenderDraftMissingValuesUseSentinel(t *testing.T) {
	env := newTestEnv(t)

	// Render before fan-out: no package reference, no fee, no grants.
	request, err := env.requests.CreateDraft(testIntakeInput())
	require.NoError(t, err)

	draft, err := env.contracts.RenderDraft(nil, request, nil)
	require.NoError(t, err)

	assert.Contains(t, draft, UnresolvedPlaceholder)
	assert.NotContains(t, draft, "{{")
}

func TestRenderDraftExecutionDateStaysUnresolved(t *testing.T) {
	env := newTestEnv(t)

	request, err := env.requests.CreateDraft(testIntakeInput())
	require.NoError(t, err)
	licenses, err := env.licenses.FanOut(nil, request)
	require.NoError(t, err)

	// The execution date is filled by the signature provider at signing
	// time, never by the draft renderer.
	tokens := env.contracts.TokenMap(request, licenses)
	_, present := tokens["execution_date"]
	assert.False(t, present)

	draft, err := env.contracts.RenderDraft(nil, request, licenses)
	require.NoError(t, err)
	assert.Contains(t, draft, "Executed electronically on "+UnresolvedPlaceholder)
}

// The approval flow renders inside an open transaction. On a single-connection
// database a render that reached for its own connection would block forever,
// so this must complete on the caller's handle.
func TestRenderDraftRunsOnCallerTransaction(t *testing.T) {
	env := newTestEnv(t)

	request, err := env.requests.CreateDraft(testIntakeInput())
	require.NoError(t, err)

	var draft string
	err = env.db.Transaction(func(tx *gorm.DB) error {
		licenses, err := env.licenses.FanOut(tx, request)
		if err != nil {
			return err
		}
		draft, err = env.contracts.RenderDraft(tx, request, licenses)
		return err
	})
	require.NoError(t, err)
	assert.Contains(t, draft, request.PackageReference)
	assert.NotContains(t, draft, "{{")
}

func TestRenderDraftInactiveClausesSkipped(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.db.Model(&models.ClauseTemplate{}).
		Where("slug = ?", "restrictions").Update("is_active", false).Error)

	request, err := env.requests.CreateDraft(testIntakeInput())
	require.NoError(t, err)
	licenses, err := env.licenses.FanOut(nil, request)
	require.NoError(t, err)

	draft, err := env.contracts.RenderDraft(nil, request, licenses)
	require.NoError(t, err)
	assert.NotContains(t, draft, "Restrictions")
}
