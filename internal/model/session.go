package model

import (
	"time"
)

// ActiveSession is the client-facing projection of an activated access
// code. It is handed to the kiosk on activation or purchase verification
// and replaced wholesale whenever the design layout is saved.
type ActiveSession struct {
	Code            string        `json:"code"`
	ExpiresAt       int64         `json:"expiresAt"` // milliseconds since epoch
	EmailLimit      int           `json:"emailLimit"`
	EmailsSent      int           `json:"emailsSent"`
	HasDesignStudio bool          `json:"hasDesignStudio"`
	DesignLayout    *DesignLayout `json:"designLayout"`

	// Admin marks the synthetic bypass session, which has no backing
	// store record.
	Admin bool `json:"-"`
}

// SessionFromCode projects an activated access code into the session
// shape returned to clients.
func SessionFromCode(c *AccessCode) *ActiveSession {
	return &ActiveSession{
		Code:            c.Code,
		ExpiresAt:       c.ExpiresAtMillis(),
		EmailLimit:      c.EmailLimit,
		EmailsSent:      c.EmailsSent,
		HasDesignStudio: c.HasDesignStudio,
		DesignLayout:    c.DesignLayout,
	}
}

// Live reports whether the session's expiry has not yet passed. Callers
// must re-check this on every transition; wall-clock time advances
// independent of any event.
func (s *ActiveSession) Live(now time.Time) bool {
	return s.ExpiresAt > now.UnixMilli()
}

// SessionStatus is the lightweight countdown-refresh response.
type SessionStatus struct {
	Code      string `json:"code"`
	ExpiresAt int64  `json:"expiresAt"`
}
