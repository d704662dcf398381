// internal/providers/payment.go
package providers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"

	"github.com/synclear/synclear-backend/internal/config"
)

// CheckoutParams describes the single package-level line item: the aggregate
// fee in minor currency units, the customer, and metadata carrying the
// package reference back on webhooks.
type CheckoutParams struct {
	PackageReference string
	Description      string
	CustomerEmail    string
	Currency         string
	AmountMinorUnits int64
	Metadata         map[string]string
	SuccessURL       string
	CancelURL        string
}

// PaymentProvider is the port to the payment vendor.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
}

func NewPaymentProvider(cfg config.PaymentConfig) PaymentProvider {
	if cfg.StripeSecretKey == "" {
		logrus.Warn("Payment provider not configured, using placeholder mode")
		return &placeholderPaymentProvider{}
	}
	stripe.Key = cfg.StripeSecretKey
	return &stripePaymentProvider{cfg: cfg}
}

type stripePaymentProvider struct {
	cfg config.PaymentConfig
}

// buildCheckoutSessionParams assembles the session request. Metadata rides on
// both the session and the payment intent so every webhook variant can resolve
// the owning request.
func buildCheckoutSessionParams(params CheckoutParams) *stripe.CheckoutSessionParams {
	sessionParams := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(params.CustomerEmail),
		SuccessURL:    stripe.String(params.SuccessURL),
		CancelURL:     stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(params.AmountMinorUnits),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(params.PackageReference),
						Description: stripe.String(params.Description),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: params.Metadata,
		},
	}

	for k, v := range params.Metadata {
		sessionParams.AddMetadata(k, v)
	}

	return sessionParams
}

func (p *stripePaymentProvider) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	sess, err := session.New(buildCheckoutSessionParams(params))
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess.ID, nil
}

// placeholderPaymentProvider fabricates session references when Stripe is not
// configured so the workflow stays exercisable end to end.
type placeholderPaymentProvider struct{}

func (p *placeholderPaymentProvider) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	return PlaceholderPrefix + "cs-" + uuid.New().String(), nil
}
