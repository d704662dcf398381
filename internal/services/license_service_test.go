// internal/services/license_service_test.go
package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synclear/synclear-backend/internal/models"
)

func TestFanOutCreatesBatchWithDefaults(t *testing.T) {
	env := newTestEnv(t)

	request, err := env.requests.CreateDraft(testIntakeInput())
	require.NoError(t, err)

	licenses, err := env.licenses.FanOut(nil, request)
	require.NoError(t, err)
	require.Len(t, licenses, 2)

	assert.Equal(t, "sync", licenses[0].TypeCode)
	assert.Equal(t, float64(500), licenses[0].Fee)
	assert.Equal(t, "master", licenses[1].TypeCode)
	assert.Equal(t, float64(300), licenses[1].Fee)

	for _, lic := range licenses {
		assert.Equal(t, models.LicenseStatusApproved, lic.Status)
		assert.Equal(t, request.ID, lic.RequestID)
		assert.True(t, strings.HasPrefix(lic.LicenseRef, "SL-"), "ref %s", lic.LicenseRef)
		assert.NotEmpty(t, lic.GrantText)
	}

	// Package reference is the first license's ref; aggregate fee is the sum.
	assert.Equal(t, licenses[0].LicenseRef, request.PackageReference)
	assert.Equal(t, float64(800), request.AggregateFee)

	var persisted models.Request
	require.NoError(t, env.db.First(&persisted, request.ID).Error)
	assert.Equal(t, licenses[0].LicenseRef, persisted.PackageReference)
	assert.Equal(t, float64(800), persisted.AggregateFee)
}

func TestFanOutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	request, err := env.requests.CreateDraft(testIntakeInput())
	require.NoError(t, err)

	first, err := env.licenses.FanOut(nil, request)
	require.NoError(t, err)

	second, err := env.licenses.FanOut(nil, request)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].LicenseRef, second[i].LicenseRef)
	}

	var count int64
	env.db.Model(&models.License{}).Where("request_id = ?", request.ID).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestFanOutRejectsUnknownTypeCode(t *testing.T) {
	env := newTestEnv(t)

	input := testIntakeInput()
	input.SelectedTypes = []string{"sync", "hologram"}
	request, err := env.requests.CreateDraft(input)
	require.NoError(t, err)

	_, err = env.licenses.FanOut(nil, request)
	assert.ErrorIs(t, err, ErrNotFound)

	// Atomic batch: the resolvable type must not have been created either.
	var count int64
	env.db.Model(&models.License{}).Where("request_id = ?", request.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestSupersedeIssuesReplacement(t *testing.T) {
	env := newTestEnv(t)
	request := approvedRequest(t, env)

	licenses, err := env.licenses.ListByRequest(request.ID)
	require.NoError(t, err)
	original := licenses[0]

	replacement, err := env.licenses.Supersede(original.ID, 450, "10 years", "north america")
	require.NoError(t, err)

	assert.NotEqual(t, original.LicenseRef, replacement.LicenseRef)
	assert.Equal(t, original.TypeCode, replacement.TypeCode)
	assert.Equal(t, float64(450), replacement.Fee)
	require.NotNil(t, replacement.SupersedesID)
	assert.Equal(t, original.ID, *replacement.SupersedesID)

	var reloaded models.License
	require.NoError(t, env.db.First(&reloaded, original.ID).Error)
	assert.Equal(t, models.LicenseStatusSuperseded, reloaded.Status)

	// A superseded license no longer verifies; the replacement does.
	_, err = env.licenses.VerifyByRef(original.LicenseRef)
	assert.Error(t, err)
	verified, err := env.licenses.VerifyByRef(replacement.LicenseRef)
	require.NoError(t, err)
	assert.Equal(t, replacement.LicenseRef, verified.LicenseRef)
}

func TestVerifyByRefUnknown(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.licenses.VerifyByRef("SL-2026-SYNC-DOESNOTEXIST")
	assert.ErrorIs(t, err, ErrNotFound)
}
