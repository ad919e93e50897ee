package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessCodeLiveness(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("dormant code is neither live nor expired", func(t *testing.T) {
		code := &AccessCode{Code: "ABC234", DurationSeconds: 3600}

		assert.False(t, code.IsLive(now))
		assert.False(t, code.IsExpired(now))
		assert.Zero(t, code.ExpiresAtMillis())
	})

	t.Run("activated code is live until its deadline", func(t *testing.T) {
		expires := now.Add(time.Hour)
		code := &AccessCode{Code: "ABC234", Used: true, ExpiresAt: &expires}

		assert.True(t, code.IsLive(now))
		assert.False(t, code.IsExpired(now))
		assert.Equal(t, expires.UnixMilli(), code.ExpiresAtMillis())
	})

	t.Run("code expires exactly at the deadline", func(t *testing.T) {
		expires := now
		code := &AccessCode{Code: "ABC234", Used: true, ExpiresAt: &expires}

		assert.False(t, code.IsLive(now))
		assert.True(t, code.IsExpired(now))
	})
}

func TestSessionFromCode(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(30 * time.Minute)

	code := &AccessCode{
		Code:            "XYZ789",
		Used:            true,
		ExpiresAt:       &expires,
		EmailLimit:      150,
		EmailsSent:      3,
		HasDesignStudio: true,
		DesignLayout: &DesignLayout{Elements: []DesignElement{
			&TextElement{ID: "t1", Type: ElementTypeText, Text: "hi"},
		}},
	}

	session := SessionFromCode(code)

	assert.Equal(t, "XYZ789", session.Code)
	assert.Equal(t, expires.UnixMilli(), session.ExpiresAt)
	assert.Equal(t, 150, session.EmailLimit)
	assert.Equal(t, 3, session.EmailsSent)
	assert.True(t, session.HasDesignStudio)
	assert.Same(t, code.DesignLayout, session.DesignLayout)
	assert.False(t, session.Admin)

	assert.True(t, session.Live(now))
	assert.False(t, session.Live(now.Add(time.Hour)))
}

func TestPackageByID(t *testing.T) {
	t.Run("finds each catalog entry", func(t *testing.T) {
		for _, want := range []struct {
			id       string
			duration int
			emails   int
			design   bool
		}{
			{"starter_1hr", 3600, 150, false},
			{"pro_4hr", 4 * 3600, 500, true},
			{"ultimate_day", 24 * 3600, 1000, true},
		} {
			pkg, ok := PackageByID(want.id)
			assert.True(t, ok, want.id)
			assert.Equal(t, want.duration, pkg.DurationSeconds)
			assert.Equal(t, want.emails, pkg.EmailLimit)
			assert.Equal(t, want.design, pkg.HasDesignStudio)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		pkg, ok := PackageByID("free_forever")
		assert.False(t, ok)
		assert.Nil(t, pkg)
	})
}
