package payment

import (
	"context"

	"github.com/instaphotobooth/booth-server/internal/model"
)

// Confirmation is the result of checking a checkout session's payment
// state with the provider.
type Confirmation struct {
	Paid            bool
	CustomerEmail   string
	DurationSeconds int
	EmailLimit      int
	HasDesignStudio bool
}

// CheckoutCompleted is a fulfilled purchase delivered by the provider's
// webhook. Metadata fields round-trip exactly into the created access code.
type CheckoutCompleted struct {
	SessionID       string
	CustomerEmail   string
	DurationSeconds int
	EmailLimit      int
	HasDesignStudio bool
}

// Provider is the payment collaborator boundary.
type Provider interface {
	// CreateCheckout opens a hosted checkout for the package and
	// returns the redirect URL and the provider's session id.
	CreateCheckout(ctx context.Context, pkg *model.Package) (redirectURL, sessionID string, err error)
	// ConfirmPayment retrieves the checkout session and reports whether
	// it has been paid, along with the purchased package parameters.
	ConfirmPayment(ctx context.Context, sessionID string) (*Confirmation, error)
	// ParseWebhook verifies the event signature and extracts a
	// completed checkout. Returns (nil, nil) for event types this
	// service does not handle.
	ParseWebhook(payload []byte, signatureHeader string) (*CheckoutCompleted, error)
}
