package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/instaphotobooth/booth-server/internal/audit"
	apperrors "github.com/instaphotobooth/booth-server/internal/errors"
	"github.com/instaphotobooth/booth-server/internal/model"
	"github.com/instaphotobooth/booth-server/internal/payment"
	redisclient "github.com/instaphotobooth/booth-server/internal/redis"
	"github.com/instaphotobooth/booth-server/internal/repository"
	"github.com/instaphotobooth/booth-server/internal/util"
)

// AdminBypassConfig controls the operational-testing bypass path. The
// path is dead unless Enabled is set and a bcrypt hash is configured.
type AdminBypassConfig struct {
	Enabled    bool
	CodeHash   string
	SessionTTL time.Duration
	EmailLimit int
}

// SessionService is the single policy layer between raw access code
// records and client-facing sessions. Every entry point (manual
// activation, payment verification, admin bypass) funnels through the
// same expiry and quota rules here.
type SessionService struct {
	codes    repository.AccessCodeRepository
	payments payment.Provider
	quota    QuotaCounter
	admin    AdminBypassConfig
}

func NewSessionService(
	codes repository.AccessCodeRepository,
	payments payment.Provider,
	quota QuotaCounter,
	admin AdminBypassConfig,
) *SessionService {
	return &SessionService{
		codes:    codes,
		payments: payments,
		quota:    quota,
		admin:    admin,
	}
}

// NormalizeCode folds user input into the stored code format.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *SessionService) isAdminCode(code string) bool {
	return s.admin.Enabled && s.admin.CodeHash != "" && util.CheckPasswordHash(code, s.admin.CodeHash)
}

// Activate turns a dormant code into a running session, or returns the
// already-running session for a live code. An expired code is never
// re-armed.
func (s *SessionService) Activate(ctx context.Context, code string) (*model.ActiveSession, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, apperrors.MissingRequired("code")
	}

	if s.isAdminCode(code) {
		audit.Log(ctx, audit.Event{Type: audit.EventAdminBypass, Code: util.MaskCode(code)})
		return s.adminSession(code), nil
	}

	found, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	if found == nil {
		audit.Log(ctx, audit.Event{Type: audit.EventActivationFailure, Code: util.MaskCode(code),
			Details: map[string]interface{}{"reason": "not_found"}})
		return nil, apperrors.NotFound("Code")
	}
	if found.IsExpired(time.Now()) {
		audit.Log(ctx, audit.Event{Type: audit.EventActivationFailure, Code: util.MaskCode(code),
			Details: map[string]interface{}{"reason": "expired"}})
		return nil, apperrors.Expired()
	}

	activated, err := s.codes.Activate(ctx, code)
	if err != nil {
		if err == repository.ErrCodeExpired {
			return nil, apperrors.Expired()
		}
		return nil, apperrors.Persistence(err)
	}
	if activated == nil {
		return nil, apperrors.ActivationFailed()
	}

	audit.Log(ctx, audit.Event{Type: audit.EventCodeActivate, Code: util.MaskCode(code),
		Details: map[string]interface{}{"expiresAt": activated.ExpiresAtMillis()}})

	return model.SessionFromCode(activated), nil
}

// VerifyAndActivate resolves a completed checkout back to its code and
// activates it. RecordNotFound is an expected race: payment confirmation
// can land before webhook fulfillment writes the code.
func (s *SessionService) VerifyAndActivate(ctx context.Context, checkoutSessionID string) (*model.ActiveSession, error) {
	if checkoutSessionID == "" {
		return nil, apperrors.MissingRequired("checkoutSessionId")
	}

	conf, err := s.payments.ConfirmPayment(ctx, checkoutSessionID)
	if err != nil {
		return nil, apperrors.External("payment provider", err)
	}
	if !conf.Paid {
		return nil, apperrors.PaymentIncomplete()
	}

	found, err := s.codes.FindByCheckoutSession(ctx, checkoutSessionID)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	if found == nil {
		return nil, apperrors.RecordNotFound()
	}

	return s.Activate(ctx, found.Code)
}

// GetSession is the countdown-refresh lookup: a lightweight projection
// with the liveness rules applied.
func (s *SessionService) GetSession(ctx context.Context, code string) (*model.SessionStatus, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, apperrors.MissingRequired("code")
	}

	found, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	if found == nil {
		return nil, apperrors.NotFound("Session")
	}
	if !found.IsLive(time.Now()) {
		return nil, apperrors.SessionExpired()
	}

	return &model.SessionStatus{Code: found.Code, ExpiresAt: found.ExpiresAtMillis()}, nil
}

// RequestEmailSend consumes one unit of the code's email quota and
// returns the remaining count for client display. The check and the
// increment are a single atomic step in the store.
func (s *SessionService) RequestEmailSend(ctx context.Context, code string) (remaining int, err error) {
	code = NormalizeCode(code)

	if s.isAdminCode(code) {
		return s.consumeAdminQuota(ctx)
	}

	found, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		return 0, apperrors.Persistence(err)
	}
	if found == nil {
		return 0, apperrors.NotFound("Session")
	}
	if !found.IsLive(time.Now()) {
		return 0, apperrors.SessionExpired()
	}

	allowed, err := s.codes.CheckAndIncrementEmail(ctx, code)
	if err != nil {
		return 0, apperrors.Persistence(err)
	}
	if !allowed {
		audit.Log(ctx, audit.Event{Type: audit.EventQuotaExceeded, Code: util.MaskCode(code)})
		return 0, apperrors.QuotaExceeded()
	}

	remaining = found.EmailLimit - found.EmailsSent - 1
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// consumeAdminQuota enforces the synthetic session's quota in Redis,
// since there is no store record to count against.
func (s *SessionService) consumeAdminQuota(ctx context.Context) (int, error) {
	count, err := s.quota.Incr(ctx, redisclient.AdminQuotaKey(), s.admin.SessionTTL)
	if err != nil {
		return 0, apperrors.Persistence(err)
	}
	if count > int64(s.admin.EmailLimit) {
		audit.Log(ctx, audit.Event{Type: audit.EventQuotaExceeded, Code: "admin"})
		return 0, apperrors.QuotaExceeded()
	}
	return s.admin.EmailLimit - int(count), nil
}

// SaveDesign replaces the stored layout for the session's code. The
// synthetic admin session keeps its layout client-side only.
func (s *SessionService) SaveDesign(ctx context.Context, code string, layout *model.DesignLayout) error {
	code = NormalizeCode(code)
	if layout == nil {
		return apperrors.MissingRequired("designLayout")
	}
	layout.EnsureIDs()

	if s.isAdminCode(code) {
		// Nothing to persist; the bypass session has no record.
		return nil
	}

	found, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		return apperrors.Persistence(err)
	}
	if found == nil {
		return apperrors.NotFound("Session")
	}
	if !found.IsLive(time.Now()) {
		return apperrors.SessionExpired()
	}
	if !found.HasDesignStudio {
		return apperrors.Forbidden("This pass does not include the Design Studio feature")
	}

	saved, err := s.codes.SaveDesign(ctx, code, layout)
	if err != nil {
		return apperrors.Persistence(err)
	}
	if !saved {
		return apperrors.NotFound("Session")
	}

	log.Debug().Str("code", util.MaskCode(code)).Int("elements", len(layout.Elements)).Msg("design saved")
	return nil
}

// adminSession synthesizes a short bounded session for operational
// testing. It never touches the store and never consumes a stored code.
func (s *SessionService) adminSession(code string) *model.ActiveSession {
	return &model.ActiveSession{
		Code:            code,
		ExpiresAt:       time.Now().Add(s.admin.SessionTTL).UnixMilli(),
		EmailLimit:      s.admin.EmailLimit,
		EmailsSent:      0,
		HasDesignStudio: true,
		DesignLayout:    nil,
		Admin:           true,
	}
}
