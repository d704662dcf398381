// internal/providers/payment_test.go
package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCheckoutSessionParamsCarriesMetadataOnBothLevels(t *testing.T) {
	params := CheckoutParams{
		PackageReference: "SL-2026-SYNC-ABCDEF123456",
		Description:      "Music license package",
		CustomerEmail:    "ada@example.com",
		Currency:         "USD",
		AmountMinorUnits: 80000,
		Metadata: map[string]string{
			"request_id":        "11111111-2222-3333-4444-555555555555",
			"package_reference": "SL-2026-SYNC-ABCDEF123456",
		},
		SuccessURL: "http://localhost:3000/payment/success",
		CancelURL:  "http://localhost:3000/payment/cancelled",
	}

	sessionParams := buildCheckoutSessionParams(params)

	// Session metadata resolves checkout.session.completed webhooks.
	assert.Equal(t, params.Metadata["request_id"], sessionParams.Metadata["request_id"])

	// Payment intent metadata resolves payment_intent.* and charge.* webhooks,
	// which carry the intent, not the session.
	require.NotNil(t, sessionParams.PaymentIntentData)
	assert.Equal(t, params.Metadata["request_id"], sessionParams.PaymentIntentData.Metadata["request_id"])
	assert.Equal(t, params.Metadata["package_reference"], sessionParams.PaymentIntentData.Metadata["package_reference"])

	require.Len(t, sessionParams.LineItems, 1)
	assert.Equal(t, int64(80000), *sessionParams.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "USD", *sessionParams.LineItems[0].PriceData.Currency)
}
