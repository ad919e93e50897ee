package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/instaphotobooth/booth-server/internal/config"
	apperrors "github.com/instaphotobooth/booth-server/internal/errors"
	"github.com/instaphotobooth/booth-server/internal/payment"
	"github.com/instaphotobooth/booth-server/internal/service"
)

// CheckoutHandler serves purchase creation and the payment provider's
// webhook callback.
type CheckoutHandler struct {
	checkout *service.CheckoutService
	payments payment.Provider
}

func NewCheckoutHandler(checkout *service.CheckoutService, payments payment.Provider) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		payments: payments,
	}
}

func (h *CheckoutHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/checkout", h.CreateCheckout)
	r.Post("/stripe/webhook", h.StripeWebhook)

	return r
}

// POST /api/checkout
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PackageID string `json:"packageId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	url, err := h.checkout.CreateCheckout(r.Context(), req.PackageID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// POST /api/stripe/webhook
//
// Signature verification happens against the raw body, so the payload is
// read before any decoding. Unhandled event types are acknowledged with
// 200 so the provider stops retrying them.
func (h *CheckoutHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.WebhookMaxBodyBytes))
	if err != nil {
		writeError(w, apperrors.ValidationError("Unable to read webhook payload"))
		return
	}

	event, err := h.payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("webhook signature verification failed")
		writeError(w, apperrors.ValidationError("Invalid webhook signature"))
		return
	}

	if event == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.checkout.Fulfill(r.Context(), event); err != nil {
		log.Error().Err(err).Str("checkoutSession", event.SessionID).Msg("fulfillment failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
