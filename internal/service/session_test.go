package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/instaphotobooth/booth-server/internal/errors"
	"github.com/instaphotobooth/booth-server/internal/model"
	"github.com/instaphotobooth/booth-server/internal/payment"
	"github.com/instaphotobooth/booth-server/internal/repository"
)

type fakeProvider struct {
	confirmation *payment.Confirmation
	confirmErr   error

	checkoutURL       string
	checkoutSessionID string
	checkoutErr       error
	lastPackage       *model.Package

	event    *payment.CheckoutCompleted
	parseErr error
}

func (f *fakeProvider) CreateCheckout(ctx context.Context, pkg *model.Package) (string, string, error) {
	f.lastPackage = pkg
	return f.checkoutURL, f.checkoutSessionID, f.checkoutErr
}

func (f *fakeProvider) ConfirmPayment(ctx context.Context, sessionID string) (*payment.Confirmation, error) {
	return f.confirmation, f.confirmErr
}

func (f *fakeProvider) ParseWebhook(payload []byte, signatureHeader string) (*payment.CheckoutCompleted, error) {
	return f.event, f.parseErr
}

type fakeQuotaCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeQuotaCounter() *fakeQuotaCounter {
	return &fakeQuotaCounter{counts: make(map[string]int64)}
}

func (f *fakeQuotaCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func newTestSessionService(repo repository.AccessCodeRepository, provider payment.Provider, admin AdminBypassConfig) *SessionService {
	return NewSessionService(repo, provider, newFakeQuotaCounter(), admin)
}

func mustCreate(t *testing.T, repo repository.AccessCodeRepository, params model.CreateAccessCodeParams) {
	t.Helper()
	_, err := repo.Create(context.Background(), params)
	require.NoError(t, err)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABC234", NormalizeCode("  abc234 "))
	assert.Equal(t, "XYZ789", NormalizeCode("XYZ789"))
}

func TestActivate(t *testing.T) {
	ctx := context.Background()

	t.Run("activates a dormant code and returns a live session", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		mustCreate(t, repo, model.CreateAccessCodeParams{
			Code: "ABC234", DurationSeconds: 3600, EmailLimit: 2, HasDesignStudio: true,
		})
		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{})

		session, err := svc.Activate(ctx, "abc234")
		require.NoError(t, err)
		assert.Equal(t, "ABC234", session.Code)
		assert.True(t, session.HasDesignStudio)
		assert.Equal(t, 2, session.EmailLimit)
		assert.True(t, session.Live(time.Now()))
		assert.InDelta(t, time.Now().Add(time.Hour).UnixMilli(), session.ExpiresAt, 5000)
	})

	t.Run("second activation returns the same expiry", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		mustCreate(t, repo, model.CreateAccessCodeParams{Code: "ABC234", DurationSeconds: 3600})
		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{})

		first, err := svc.Activate(ctx, "ABC234")
		require.NoError(t, err)
		second, err := svc.Activate(ctx, "ABC234")
		require.NoError(t, err)
		assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
	})

	t.Run("unknown code", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{})

		_, err := svc.Activate(ctx, "NOPE11")
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("blank code", func(t *testing.T) {
		svc := newTestSessionService(repository.NewMemoryAccessCodeRepository(), &fakeProvider{}, AdminBypassConfig{})

		_, err := svc.Activate(ctx, "   ")
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})

	t.Run("an expired code never re-arms", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		repo.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		mustCreate(t, repo, model.CreateAccessCodeParams{Code: "ABC234", DurationSeconds: 3600})

		// Activated two hours ago with a one hour duration.
		_, err := repo.Activate(context.Background(), "ABC234")
		require.NoError(t, err)
		repo.Now = time.Now

		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{})
		_, err = svc.Activate(ctx, "ABC234")
		assert.Equal(t, apperrors.ErrCodeExpired, apperrors.GetCode(err))
	})
}

func TestAdminBypass(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("0242"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("synthesizes a session without touching the store", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{
			Enabled:    true,
			CodeHash:   string(hash),
			SessionTTL: 15 * time.Minute,
			EmailLimit: 5,
		})

		session, err := svc.Activate(ctx, "0242")
		require.NoError(t, err)
		assert.True(t, session.Admin)
		assert.True(t, session.HasDesignStudio)
		assert.Equal(t, 5, session.EmailLimit)
		assert.InDelta(t, time.Now().Add(15*time.Minute).UnixMilli(), session.ExpiresAt, 5000)

		stored, err := repo.FindByCode(ctx, "0242")
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("disabled flag makes the bypass code an ordinary unknown code", func(t *testing.T) {
		svc := newTestSessionService(repository.NewMemoryAccessCodeRepository(), &fakeProvider{}, AdminBypassConfig{
			Enabled:  false,
			CodeHash: string(hash),
		})

		_, err := svc.Activate(ctx, "0242")
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("wrong code does not match the hash", func(t *testing.T) {
		svc := newTestSessionService(repository.NewMemoryAccessCodeRepository(), &fakeProvider{}, AdminBypassConfig{
			Enabled:  true,
			CodeHash: string(hash),
		})

		_, err := svc.Activate(ctx, "9999")
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("admin email quota is enforced by the counter", func(t *testing.T) {
		svc := NewSessionService(
			repository.NewMemoryAccessCodeRepository(), &fakeProvider{}, newFakeQuotaCounter(),
			AdminBypassConfig{Enabled: true, CodeHash: string(hash), SessionTTL: 15 * time.Minute, EmailLimit: 2},
		)

		remaining, err := svc.RequestEmailSend(ctx, "0242")
		require.NoError(t, err)
		assert.Equal(t, 1, remaining)

		remaining, err = svc.RequestEmailSend(ctx, "0242")
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)

		_, err = svc.RequestEmailSend(ctx, "0242")
		assert.Equal(t, apperrors.ErrCodeQuotaExceeded, apperrors.GetCode(err))
	})
}

func TestVerifyAndActivate(t *testing.T) {
	ctx := context.Background()

	t.Run("activates the code linked to a paid checkout", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		mustCreate(t, repo, model.CreateAccessCodeParams{Code: "ABC234", DurationSeconds: 3600, EmailLimit: 150})
		require.NoError(t, repo.LinkCheckoutSession(ctx, "ABC234", "cs_test_123"))

		svc := newTestSessionService(repo, &fakeProvider{
			confirmation: &payment.Confirmation{Paid: true},
		}, AdminBypassConfig{})

		session, err := svc.VerifyAndActivate(ctx, "cs_test_123")
		require.NoError(t, err)
		assert.Equal(t, "ABC234", session.Code)
		assert.True(t, session.Live(time.Now()))
	})

	t.Run("incomplete payment", func(t *testing.T) {
		svc := newTestSessionService(repository.NewMemoryAccessCodeRepository(), &fakeProvider{
			confirmation: &payment.Confirmation{Paid: false},
		}, AdminBypassConfig{})

		_, err := svc.VerifyAndActivate(ctx, "cs_test_123")
		assert.Equal(t, apperrors.ErrCodePaymentIncomplete, apperrors.GetCode(err))
	})

	t.Run("paid but fulfillment has not landed yet", func(t *testing.T) {
		svc := newTestSessionService(repository.NewMemoryAccessCodeRepository(), &fakeProvider{
			confirmation: &payment.Confirmation{Paid: true},
		}, AdminBypassConfig{})

		_, err := svc.VerifyAndActivate(ctx, "cs_test_123")
		assert.Equal(t, apperrors.ErrCodeRecordNotFound, apperrors.GetCode(err))
	})

	t.Run("provider failure surfaces as an external error", func(t *testing.T) {
		svc := newTestSessionService(repository.NewMemoryAccessCodeRepository(), &fakeProvider{
			confirmErr: errors.New("stripe is down"),
		}, AdminBypassConfig{})

		_, err := svc.VerifyAndActivate(ctx, "cs_test_123")
		assert.Equal(t, apperrors.ErrCodeExternal, apperrors.GetCode(err))
	})

	t.Run("missing checkout session id", func(t *testing.T) {
		svc := newTestSessionService(repository.NewMemoryAccessCodeRepository(), &fakeProvider{}, AdminBypassConfig{})

		_, err := svc.VerifyAndActivate(ctx, "")
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})
}

func TestGetSession(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the countdown projection for a live session", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		mustCreate(t, repo, model.CreateAccessCodeParams{Code: "ABC234", DurationSeconds: 3600})
		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{})

		activated, err := svc.Activate(ctx, "ABC234")
		require.NoError(t, err)

		status, err := svc.GetSession(ctx, "ABC234")
		require.NoError(t, err)
		assert.Equal(t, "ABC234", status.Code)
		assert.Equal(t, activated.ExpiresAt, status.ExpiresAt)
	})

	t.Run("dormant code reports expired", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		mustCreate(t, repo, model.CreateAccessCodeParams{Code: "ABC234", DurationSeconds: 3600})
		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{})

		_, err := svc.GetSession(ctx, "ABC234")
		assert.Equal(t, apperrors.ErrCodeExpired, apperrors.GetCode(err))
	})

	t.Run("unknown code", func(t *testing.T) {
		svc := newTestSessionService(repository.NewMemoryAccessCodeRepository(), &fakeProvider{}, AdminBypassConfig{})

		_, err := svc.GetSession(ctx, "NOPE11")
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestRequestEmailSend(t *testing.T) {
	ctx := context.Background()

	t.Run("one hour pass with a two email quota", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		mustCreate(t, repo, model.CreateAccessCodeParams{Code: "ABC234", DurationSeconds: 3600, EmailLimit: 2})
		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{})

		_, err := svc.Activate(ctx, "ABC234")
		require.NoError(t, err)

		remaining, err := svc.RequestEmailSend(ctx, "ABC234")
		require.NoError(t, err)
		assert.Equal(t, 1, remaining)

		remaining, err = svc.RequestEmailSend(ctx, "ABC234")
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)

		_, err = svc.RequestEmailSend(ctx, "ABC234")
		assert.Equal(t, apperrors.ErrCodeQuotaExceeded, apperrors.GetCode(err))
	})

	t.Run("expired session cannot send", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		repo.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		mustCreate(t, repo, model.CreateAccessCodeParams{Code: "ABC234", DurationSeconds: 3600, EmailLimit: 5})
		_, err := repo.Activate(ctx, "ABC234")
		require.NoError(t, err)
		repo.Now = time.Now

		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{})
		_, err = svc.RequestEmailSend(ctx, "ABC234")
		assert.Equal(t, apperrors.ErrCodeExpired, apperrors.GetCode(err))
	})
}

func TestSaveDesign(t *testing.T) {
	ctx := context.Background()

	layout := func() *model.DesignLayout {
		return &model.DesignLayout{Elements: []model.DesignElement{
			&model.TextElement{Type: model.ElementTypeText, Text: "Party!", FontSize: 24, ScaleX: 1, ScaleY: 1},
		}}
	}

	t.Run("persists the layout and assigns missing ids", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		mustCreate(t, repo, model.CreateAccessCodeParams{Code: "ABC234", DurationSeconds: 3600, HasDesignStudio: true})
		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{})

		_, err := svc.Activate(ctx, "ABC234")
		require.NoError(t, err)

		require.NoError(t, svc.SaveDesign(ctx, "ABC234", layout()))

		found, err := repo.FindByCode(ctx, "ABC234")
		require.NoError(t, err)
		require.NotNil(t, found.DesignLayout)
		require.Len(t, found.DesignLayout.Elements, 1)
		assert.NotEmpty(t, found.DesignLayout.Elements[0].ElementID())
		assert.Equal(t, "Party!", found.DesignLayout.Elements[0].(*model.TextElement).Text)
	})

	t.Run("pass without the design studio entitlement is forbidden", func(t *testing.T) {
		repo := repository.NewMemoryAccessCodeRepository()
		mustCreate(t, repo, model.CreateAccessCodeParams{Code: "ABC234", DurationSeconds: 3600, HasDesignStudio: false})
		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{})

		_, err := svc.Activate(ctx, "ABC234")
		require.NoError(t, err)

		err = svc.SaveDesign(ctx, "ABC234", layout())
		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
	})

	t.Run("nil layout is rejected", func(t *testing.T) {
		svc := newTestSessionService(repository.NewMemoryAccessCodeRepository(), &fakeProvider{}, AdminBypassConfig{})

		err := svc.SaveDesign(ctx, "ABC234", nil)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})

	t.Run("admin session keeps its layout client-side", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("0242"), bcrypt.MinCost)
		require.NoError(t, err)

		repo := repository.NewMemoryAccessCodeRepository()
		svc := newTestSessionService(repo, &fakeProvider{}, AdminBypassConfig{
			Enabled: true, CodeHash: string(hash), SessionTTL: 15 * time.Minute, EmailLimit: 5,
		})

		require.NoError(t, svc.SaveDesign(ctx, "0242", layout()))

		stored, err := repo.FindByCode(ctx, "0242")
		require.NoError(t, err)
		assert.Nil(t, stored)
	})
}
