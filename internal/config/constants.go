package config

import "time"

// Access code format. The alphabet omits 0 and O, which read the same on
// a printed card.
const (
	CodeAlphabet       = "ABCDEFGHIJKLMNPQRSTUVWXYZ123456789"
	CodeLength         = 6
	CodeGenMaxAttempts = 10
)

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 1 * time.Hour

// Expired codes are retained for a grace window before the sweeper drops
// them; dormant codes that were never activated live much longer, since a
// buyer may redeem weeks after purchase.
const (
	ExpiredCodeRetention = 7 * 24 * time.Hour
	DormantCodeRetention = 90 * 24 * time.Hour
)

// Rate limiting for the public endpoints
const (
	ActivateRateLimitPerMin = 10
	EmailRateLimitPerMin    = 30
	RateLimitWindow         = time.Minute
)

// Webhook payloads are small; anything larger is rejected outright.
const WebhookMaxBodyBytes = int64(65536)
