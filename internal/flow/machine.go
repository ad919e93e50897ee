// Package flow drives the kiosk screen sequence. The machine is
// single-threaded by contract: the kiosk's event loop calls into it from
// one goroutine, and session expiry pre-empts every other transition the
// moment the wall clock passes expiresAt.
package flow

import (
	"errors"
	"time"

	"github.com/instaphotobooth/booth-server/internal/model"
)

type Screen string

const (
	ScreenLanding         Screen = "landing"
	ScreenPackageSelect   Screen = "package_select"
	ScreenPurchaseSuccess Screen = "purchase_success"
	ScreenActivation      Screen = "activation"
	ScreenDesignStudio    Screen = "design_studio"
	ScreenPreview         Screen = "preview"
	ScreenPhotoDisplay    Screen = "photo_display"
	ScreenSessionExpired  Screen = "session_expired"
)

// ErrInvalidTransition is returned when an event does not apply to the
// current screen. The screen is left unchanged.
var ErrInvalidTransition = errors.New("invalid screen transition")

// Machine holds the current screen and the active session, if any.
type Machine struct {
	screen  Screen
	session *model.ActiveSession
	now     func() time.Time
}

type Option func(*Machine)

// WithClock overrides the machine's clock.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithPendingPurchase starts the machine on the purchase-success screen,
// used when the entry context carries a checkout confirmation token.
// This is the only state inferred at startup; sessions are never resumed
// from persisted client state across a full reload.
func WithPendingPurchase() Option {
	return func(m *Machine) {
		m.screen = ScreenPurchaseSuccess
	}
}

func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		screen: ScreenLanding,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) Screen() Screen                { return m.screen }
func (m *Machine) Session() *model.ActiveSession { return m.session }

// Tick re-checks session liveness. Called on every render/tick; the
// return value is the screen to show.
func (m *Machine) Tick() Screen {
	m.preempt()
	return m.screen
}

// preempt forces the expired path regardless of the current screen's own
// transition table.
func (m *Machine) preempt() {
	if m.session != nil && !m.session.Live(m.now()) && m.screen != ScreenSessionExpired {
		m.session = nil
		m.screen = ScreenSessionExpired
	}
}

// GetStarted moves from the landing page to package selection.
func (m *Machine) GetStarted() error {
	m.preempt()
	if m.screen != ScreenLanding {
		return ErrInvalidTransition
	}
	m.screen = ScreenPackageSelect
	return nil
}

// EnterActivation opens the code-entry screen. Reachable from the
// landing page and as the escape hatch from a failed purchase
// verification.
func (m *Machine) EnterActivation() error {
	m.preempt()
	switch m.screen {
	case ScreenLanding, ScreenPurchaseSuccess:
		m.screen = ScreenActivation
		return nil
	}
	return ErrInvalidTransition
}

// SelectPackage hands off to the external payment collaborator. The
// checkout redirect is a virtual state: navigation leaves the kiosk, so
// the screen does not change in-process.
func (m *Machine) SelectPackage() error {
	m.preempt()
	if m.screen != ScreenPackageSelect {
		return ErrInvalidTransition
	}
	return nil
}

// BeginSession installs an activated session and routes to the design
// studio or straight to the preview, depending on the pass's capability.
// Valid after code activation or purchase verification.
func (m *Machine) BeginSession(session *model.ActiveSession) error {
	m.preempt()
	if m.screen != ScreenActivation && m.screen != ScreenPurchaseSuccess {
		return ErrInvalidTransition
	}
	if session == nil || !session.Live(m.now()) {
		return ErrInvalidTransition
	}

	m.session = session
	if session.HasDesignStudio {
		m.screen = ScreenDesignStudio
	} else {
		m.screen = ScreenPreview
	}
	return nil
}

// SaveDesign records the layout on the local session projection and
// always moves to the preview. Persistence happens out of band: a
// transient save failure must not trap the user in the editor.
func (m *Machine) SaveDesign(layout *model.DesignLayout) error {
	m.preempt()
	if m.screen != ScreenDesignStudio {
		return ErrInvalidTransition
	}

	// Replace the projection rather than mutating the shared session.
	updated := *m.session
	updated.DesignLayout = layout
	m.session = &updated

	m.screen = ScreenPreview
	return nil
}

// EditDesign returns to the studio from the preview. Only reachable when
// the pass includes the capability.
func (m *Machine) EditDesign() error {
	m.preempt()
	if m.screen != ScreenPreview {
		return ErrInvalidTransition
	}
	if m.session == nil || !m.session.HasDesignStudio {
		return ErrInvalidTransition
	}
	m.screen = ScreenDesignStudio
	return nil
}

// PhotosCaptured moves from the live preview to the captured-photo view.
func (m *Machine) PhotosCaptured() error {
	m.preempt()
	if m.screen != ScreenPreview {
		return ErrInvalidTransition
	}
	m.screen = ScreenPhotoDisplay
	return nil
}

// Retake returns to the preview when the session is still live;
// otherwise the expired path wins.
func (m *Machine) Retake() error {
	m.preempt()
	if m.screen == ScreenSessionExpired {
		return nil
	}
	if m.screen != ScreenPhotoDisplay {
		return ErrInvalidTransition
	}
	m.screen = ScreenPreview
	return nil
}

// PurchaseMore leaves the expired screen for package selection.
func (m *Machine) PurchaseMore() error {
	m.preempt()
	if m.screen != ScreenSessionExpired {
		return ErrInvalidTransition
	}
	m.screen = ScreenPackageSelect
	return nil
}

// Exit discards the session and returns to the landing page.
func (m *Machine) Exit() error {
	m.preempt()
	switch m.screen {
	case ScreenSessionExpired, ScreenDesignStudio:
		m.session = nil
		m.screen = ScreenLanding
		return nil
	}
	return ErrInvalidTransition
}
