package model

import (
	"time"
)

// AccessCode is the stored record behind a photo booth pass. A code is
// dormant until its first successful activation, which fixes expires_at
// from the purchased duration. The email counter is consumed against
// email_limit and never replenished.
type AccessCode struct {
	Code              string        `db:"code" json:"code"`
	DurationSeconds   int           `db:"duration_seconds" json:"durationSeconds"`
	Used              bool          `db:"used" json:"used"`
	ExpiresAt         *time.Time    `db:"expires_at" json:"expiresAt,omitempty"`
	EmailLimit        int           `db:"email_limit" json:"emailLimit"`
	EmailsSent        int           `db:"emails_sent" json:"emailsSent"`
	HasDesignStudio   bool          `db:"has_design_studio" json:"hasDesignStudio"`
	DesignLayout      *DesignLayout `db:"design_layout" json:"designLayout,omitempty"`
	CheckoutSessionID *string       `db:"checkout_session_id" json:"-"`
	CreatedAt         time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updatedAt"`
}

// CreateAccessCodeParams contains parameters for creating an access code
type CreateAccessCodeParams struct {
	Code            string
	DurationSeconds int
	EmailLimit      int
	HasDesignStudio bool
}

// IsExpired reports whether the code was activated and its session window
// has passed. A dormant code is never expired.
func (c *AccessCode) IsExpired(now time.Time) bool {
	return c.Used && c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// IsLive reports whether the code holds a running, unexpired session.
func (c *AccessCode) IsLive(now time.Time) bool {
	return c.Used && c.ExpiresAt != nil && c.ExpiresAt.After(now)
}

// ExpiresAtMillis returns the activation deadline in milliseconds since
// epoch, the wire format for timestamps. Zero until the code is activated.
func (c *AccessCode) ExpiresAtMillis() int64 {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.UnixMilli()
}
