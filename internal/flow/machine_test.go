package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instaphotobooth/booth-server/internal/model"
)

func liveSession(now time.Time, design bool) *model.ActiveSession {
	return &model.ActiveSession{
		Code:            "ABC234",
		ExpiresAt:       now.Add(time.Hour).UnixMilli(),
		EmailLimit:      150,
		HasDesignStudio: design,
	}
}

func TestMachineInitialScreen(t *testing.T) {
	t.Run("starts on the landing page", func(t *testing.T) {
		m := NewMachine()
		assert.Equal(t, ScreenLanding, m.Screen())
		assert.Nil(t, m.Session())
	})

	t.Run("starts on purchase success with a pending checkout", func(t *testing.T) {
		m := NewMachine(WithPendingPurchase())
		assert.Equal(t, ScreenPurchaseSuccess, m.Screen())
	})
}

func TestMachineWalks(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := start
	now := func() time.Time { return clock }

	t.Run("purchase walk with design studio", func(t *testing.T) {
		clock = start
		m := NewMachine(WithPendingPurchase(), WithClock(now))

		require.NoError(t, m.BeginSession(liveSession(clock, true)))
		assert.Equal(t, ScreenDesignStudio, m.Screen())

		layout := &model.DesignLayout{Elements: []model.DesignElement{
			&model.TextElement{ID: "t1", Type: model.ElementTypeText, Text: "hi"},
		}}
		require.NoError(t, m.SaveDesign(layout))
		assert.Equal(t, ScreenPreview, m.Screen())
		assert.Same(t, layout, m.Session().DesignLayout)

		require.NoError(t, m.EditDesign())
		assert.Equal(t, ScreenDesignStudio, m.Screen())
		require.NoError(t, m.SaveDesign(layout))

		require.NoError(t, m.PhotosCaptured())
		assert.Equal(t, ScreenPhotoDisplay, m.Screen())

		require.NoError(t, m.Retake())
		assert.Equal(t, ScreenPreview, m.Screen())
	})

	t.Run("activation walk without design studio skips the editor", func(t *testing.T) {
		clock = start
		m := NewMachine(WithClock(now))

		require.NoError(t, m.EnterActivation())
		require.NoError(t, m.BeginSession(liveSession(clock, false)))
		assert.Equal(t, ScreenPreview, m.Screen())

		// No entitlement, no editor.
		assert.ErrorIs(t, m.EditDesign(), ErrInvalidTransition)
	})

	t.Run("package selection hands off without changing screens", func(t *testing.T) {
		clock = start
		m := NewMachine(WithClock(now))

		require.NoError(t, m.GetStarted())
		assert.Equal(t, ScreenPackageSelect, m.Screen())

		require.NoError(t, m.SelectPackage())
		assert.Equal(t, ScreenPackageSelect, m.Screen())
	})
}

func TestMachineExpiry(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("expiry pre-empts the preview", func(t *testing.T) {
		clock := start
		m := NewMachine(WithClock(func() time.Time { return clock }))

		require.NoError(t, m.EnterActivation())
		require.NoError(t, m.BeginSession(liveSession(clock, false)))
		assert.Equal(t, ScreenPreview, m.Screen())

		clock = start.Add(2 * time.Hour)
		assert.Equal(t, ScreenSessionExpired, m.Tick())
		assert.Nil(t, m.Session())
	})

	t.Run("retake after expiry lands on the expired screen", func(t *testing.T) {
		clock := start
		m := NewMachine(WithClock(func() time.Time { return clock }))

		require.NoError(t, m.EnterActivation())
		require.NoError(t, m.BeginSession(liveSession(clock, false)))
		require.NoError(t, m.PhotosCaptured())

		clock = start.Add(2 * time.Hour)
		require.NoError(t, m.Retake())
		assert.Equal(t, ScreenSessionExpired, m.Screen())
	})

	t.Run("a dead session cannot begin", func(t *testing.T) {
		clock := start
		m := NewMachine(WithClock(func() time.Time { return clock }))

		require.NoError(t, m.EnterActivation())
		dead := liveSession(start.Add(-2*time.Hour), false)
		assert.ErrorIs(t, m.BeginSession(dead), ErrInvalidTransition)
		assert.Equal(t, ScreenActivation, m.Screen())
	})

	t.Run("escape routes from the expired screen", func(t *testing.T) {
		clock := start
		m := NewMachine(WithClock(func() time.Time { return clock }))

		require.NoError(t, m.EnterActivation())
		require.NoError(t, m.BeginSession(liveSession(clock, false)))
		clock = start.Add(2 * time.Hour)
		m.Tick()

		require.NoError(t, m.PurchaseMore())
		assert.Equal(t, ScreenPackageSelect, m.Screen())
	})

	t.Run("exit discards the session", func(t *testing.T) {
		clock := start
		m := NewMachine(WithClock(func() time.Time { return clock }))

		require.NoError(t, m.EnterActivation())
		require.NoError(t, m.BeginSession(liveSession(clock, false)))
		clock = start.Add(2 * time.Hour)
		m.Tick()

		require.NoError(t, m.Exit())
		assert.Equal(t, ScreenLanding, m.Screen())
		assert.Nil(t, m.Session())
	})
}

func TestMachineInvalidTransitions(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("events off the landing page", func(t *testing.T) {
		m := NewMachine()

		assert.ErrorIs(t, m.SelectPackage(), ErrInvalidTransition)
		assert.ErrorIs(t, m.PhotosCaptured(), ErrInvalidTransition)
		assert.ErrorIs(t, m.Retake(), ErrInvalidTransition)
		assert.ErrorIs(t, m.PurchaseMore(), ErrInvalidTransition)
		assert.ErrorIs(t, m.SaveDesign(&model.DesignLayout{}), ErrInvalidTransition)
		assert.Equal(t, ScreenLanding, m.Screen())
	})

	t.Run("cannot begin a session from the landing page", func(t *testing.T) {
		m := NewMachine(WithClock(func() time.Time { return now }))

		assert.ErrorIs(t, m.BeginSession(liveSession(now, true)), ErrInvalidTransition)
	})

	t.Run("get started only applies on landing", func(t *testing.T) {
		m := NewMachine()
		require.NoError(t, m.GetStarted())
		assert.ErrorIs(t, m.GetStarted(), ErrInvalidTransition)
	})
}
