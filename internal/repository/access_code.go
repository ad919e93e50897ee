package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/instaphotobooth/booth-server/internal/model"
)

// ErrDuplicateCode is returned by Create when the generated code collides
// with an existing one. The caller regenerates and retries.
var ErrDuplicateCode = errors.New("access code already exists")

// ErrCodeExpired is returned by Activate when the code was used and its
// session window has passed. An expired code is never re-armed.
var ErrCodeExpired = errors.New("access code expired")

// AccessCodeRepository handles access code data operations. Activate and
// CheckAndIncrementEmail must be atomic with respect to concurrent
// callers on the same code; no other operation needs cross-request
// serialization.
type AccessCodeRepository interface {
	Create(ctx context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error)
	FindByCode(ctx context.Context, code string) (*model.AccessCode, error)
	FindByCheckoutSession(ctx context.Context, sessionID string) (*model.AccessCode, error)
	// Activate flips used exactly once and fixes expires_at from the
	// purchased duration. Re-activation of a live code returns the
	// existing record unchanged; re-activation of an expired code
	// returns ErrCodeExpired. A missing code returns (nil, nil).
	Activate(ctx context.Context, code string) (*model.AccessCode, error)
	LinkCheckoutSession(ctx context.Context, code, sessionID string) error
	// CheckAndIncrementEmail atomically tests emails_sent < email_limit
	// and increments on success. Returns false without mutation when the
	// quota is exhausted or the code is unknown.
	CheckAndIncrementEmail(ctx context.Context, code string) (bool, error)
	// SaveDesign replaces the stored layout wholesale. Returns false
	// when the code is unknown.
	SaveDesign(ctx context.Context, code string, layout *model.DesignLayout) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type accessCodeRepo struct {
	db *sqlx.DB
}

// NewAccessCodeRepository creates a Postgres-backed access code repository
func NewAccessCodeRepository(db *sqlx.DB) AccessCodeRepository {
	return &accessCodeRepo{db: db}
}

func (r *accessCodeRepo) Create(ctx context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `
		INSERT INTO access_codes (code, duration_seconds, email_limit, has_design_studio)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.Code, params.DurationSeconds, params.EmailLimit, params.HasDesignStudio)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateCode
		}
		return nil, err
	}
	return &ac, nil
}

func (r *accessCodeRepo) FindByCode(ctx context.Context, code string) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `
		SELECT * FROM access_codes WHERE code = $1
	`, code)
	return HandleNotFound(&ac, err)
}

func (r *accessCodeRepo) FindByCheckoutSession(ctx context.Context, sessionID string) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `
		SELECT * FROM access_codes WHERE checkout_session_id = $1
	`, sessionID)
	return HandleNotFound(&ac, err)
}

func (r *accessCodeRepo) Activate(ctx context.Context, code string) (*model.AccessCode, error) {
	// The WHERE used = FALSE guard makes the arm step atomic: of two
	// concurrent callers, exactly one gets the row back here.
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `
		UPDATE access_codes
		SET used = TRUE,
		    expires_at = NOW() + make_interval(secs => duration_seconds),
		    updated_at = NOW()
		WHERE code = $1 AND used = FALSE
		RETURNING *
	`, code)
	if err == nil {
		return &ac, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Someone already armed this code (or it never existed).
	existing, err := r.FindByCode(ctx, code)
	if err != nil || existing == nil {
		return nil, err
	}
	if existing.IsLive(time.Now()) {
		return existing, nil
	}
	return nil, ErrCodeExpired
}

func (r *accessCodeRepo) LinkCheckoutSession(ctx context.Context, code, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE access_codes
		SET checkout_session_id = $2, updated_at = NOW()
		WHERE code = $1
	`, code, sessionID)
	return err
}

func (r *accessCodeRepo) CheckAndIncrementEmail(ctx context.Context, code string) (bool, error) {
	// Check and increment in one statement; the row lock serializes
	// concurrent sends so the counter never passes the limit.
	result, err := r.db.ExecContext(ctx, `
		UPDATE access_codes
		SET emails_sent = emails_sent + 1, updated_at = NOW()
		WHERE code = $1 AND emails_sent < email_limit
	`, code)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *accessCodeRepo) SaveDesign(ctx context.Context, code string, layout *model.DesignLayout) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE access_codes
		SET design_layout = $2, updated_at = NOW()
		WHERE code = $1
	`, code, layout)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *accessCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM access_codes
		WHERE (used = TRUE AND expires_at < NOW() - INTERVAL '7 days')
		   OR (used = FALSE AND created_at < NOW() - INTERVAL '90 days')
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
