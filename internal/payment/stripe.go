package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/instaphotobooth/booth-server/internal/model"
)

// Metadata keys carried through checkout. These must survive the round
// trip from checkout creation to webhook fulfillment unchanged.
const (
	metaDuration        = "duration"
	metaEmailLimit      = "email_limit"
	metaHasDesignStudio = "has_design_studio"
)

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	webhookSecret string
	siteURL       string
}

// NewStripeProvider configures the global Stripe client key and returns
// a provider. siteURL is where checkout redirects land after payment.
func NewStripeProvider(secretKey, webhookSecret, siteURL string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{
		webhookSecret: webhookSecret,
		siteURL:       strings.TrimRight(siteURL, "/"),
	}
}

func (p *StripeProvider) CreateCheckout(ctx context.Context, pkg *model.Package) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("usd"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(fmt.Sprintf("InstaPhotoBooth - %s Pass", pkg.Name)),
						Description: stripe.String(strings.Join(pkg.Features, ", ")),
					},
					UnitAmount: stripe.Int64(pkg.PriceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(p.siteURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:           stripe.String(p.siteURL),
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata(metaDuration, strconv.Itoa(pkg.DurationSeconds))
	params.AddMetadata(metaEmailLimit, strconv.Itoa(pkg.EmailLimit))
	params.AddMetadata(metaHasDesignStudio, strconv.FormatBool(pkg.HasDesignStudio))

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, sess.ID, nil
}

func (p *StripeProvider) ConfirmPayment(ctx context.Context, sessionID string) (*Confirmation, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := checkoutsession.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}

	conf := &Confirmation{
		Paid: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	conf.CustomerEmail = customerEmail(sess)
	conf.DurationSeconds, conf.EmailLimit, conf.HasDesignStudio = parseMetadata(sess.Metadata)
	return conf, nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signatureHeader string) (*CheckoutCompleted, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal checkout session: %w", err)
	}

	completed := &CheckoutCompleted{
		SessionID:     sess.ID,
		CustomerEmail: customerEmail(&sess),
	}
	completed.DurationSeconds, completed.EmailLimit, completed.HasDesignStudio = parseMetadata(sess.Metadata)
	return completed, nil
}

func customerEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	return sess.CustomerEmail
}

// parseMetadata falls back to the Starter package parameters when a
// field is missing, matching fulfillment behavior for legacy sessions.
func parseMetadata(meta map[string]string) (duration, emailLimit int, hasDesignStudio bool) {
	duration = 3600
	emailLimit = 150

	if v, err := strconv.Atoi(meta[metaDuration]); err == nil {
		duration = v
	}
	if v, err := strconv.Atoi(meta[metaEmailLimit]); err == nil {
		emailLimit = v
	}
	hasDesignStudio = meta[metaHasDesignStudio] == "true"
	return duration, emailLimit, hasDesignStudio
}

var _ Provider = (*StripeProvider)(nil)
