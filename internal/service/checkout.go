package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/instaphotobooth/booth-server/internal/audit"
	"github.com/instaphotobooth/booth-server/internal/config"
	"github.com/instaphotobooth/booth-server/internal/email"
	apperrors "github.com/instaphotobooth/booth-server/internal/errors"
	"github.com/instaphotobooth/booth-server/internal/model"
	"github.com/instaphotobooth/booth-server/internal/payment"
	"github.com/instaphotobooth/booth-server/internal/repository"
	"github.com/instaphotobooth/booth-server/internal/util"
)

// CheckoutService opens hosted checkouts and fulfills completed
// purchases by provisioning access codes.
type CheckoutService struct {
	codes    repository.AccessCodeRepository
	payments payment.Provider
	mailer   email.Mailer
}

func NewCheckoutService(
	codes repository.AccessCodeRepository,
	payments payment.Provider,
	mailer email.Mailer,
) *CheckoutService {
	return &CheckoutService{
		codes:    codes,
		payments: payments,
		mailer:   mailer,
	}
}

// CreateCheckout resolves the package and hands off to the payment
// provider. The returned URL is where the kiosk redirects the buyer.
func (s *CheckoutService) CreateCheckout(ctx context.Context, packageID string) (string, error) {
	if packageID == "" {
		return "", apperrors.MissingRequired("packageId")
	}

	pkg, ok := model.PackageByID(packageID)
	if !ok {
		return "", apperrors.NotFound("Purchase option")
	}

	url, sessionID, err := s.payments.CreateCheckout(ctx, pkg)
	if err != nil {
		return "", apperrors.External("payment provider", err)
	}

	log.Info().Str("package", pkg.ID).Str("checkoutSession", sessionID).Msg("checkout session created")
	return url, nil
}

// Fulfill provisions a code for a completed checkout: create the record
// with the purchased parameters, link the checkout session for later
// verification, and email the code to the buyer. Email failure does not
// fail fulfillment; the buyer can still verify from the success page.
func (s *CheckoutService) Fulfill(ctx context.Context, ev *payment.CheckoutCompleted) error {
	if ev.CustomerEmail == "" {
		return apperrors.MissingRequired("customer email")
	}

	created, err := s.createUniqueCode(ctx, model.CreateAccessCodeParams{
		DurationSeconds: ev.DurationSeconds,
		EmailLimit:      ev.EmailLimit,
		HasDesignStudio: ev.HasDesignStudio,
	})
	if err != nil {
		return apperrors.Persistence(err)
	}

	if err := s.codes.LinkCheckoutSession(ctx, created.Code, ev.SessionID); err != nil {
		return apperrors.Persistence(err)
	}

	audit.Log(ctx, audit.Event{Type: audit.EventPurchaseFulfilled, Code: util.MaskCode(created.Code),
		Details: map[string]interface{}{
			"checkoutSession": ev.SessionID,
			"duration":        ev.DurationSeconds,
			"emailLimit":      ev.EmailLimit,
			"hasDesignStudio": ev.HasDesignStudio,
		}})

	if err := s.mailer.SendAccessCode(ctx, ev.CustomerEmail, created.Code); err != nil {
		log.Error().Err(err).Str("code", util.MaskCode(created.Code)).Msg("failed to send access code email")
	}

	return nil
}

// createUniqueCode retries generation until the code is collision-free
// against currently stored keys. At this key space size exhaustion is
// not expected; the attempt cap guards a pathological store.
func (s *CheckoutService) createUniqueCode(ctx context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error) {
	for attempt := 0; attempt < config.CodeGenMaxAttempts; attempt++ {
		code, err := generateAccessCode()
		if err != nil {
			return nil, err
		}
		params.Code = code

		created, err := s.codes.Create(ctx, params)
		if err == repository.ErrDuplicateCode {
			continue
		}
		if err != nil {
			return nil, err
		}

		audit.Log(ctx, audit.Event{Type: audit.EventCodeCreate, Code: util.MaskCode(created.Code)})
		return created, nil
	}
	return nil, fmt.Errorf("code generation exhausted after %d attempts", config.CodeGenMaxAttempts)
}
