// Package tray provides a system tray interface for the holovis interaction pipeline.
package tray

import (
	"strings"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/ayusman/holovis/internal/gesture"
)

// Controller is the pipeline switch the tray drives.
type Controller interface {
	Enabled() bool
	SetEnabled(enabled bool) error
}

// Tray represents the system tray application.
type Tray struct {
	control    Controller
	log        *zap.Logger
	onSettings func()
	onQuit     func()
	last       string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuLastGesture *systray.MenuItem
}

// New creates a Tray driving control. log may be nil.
func New(control Controller, log *zap.Logger) *Tray {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tray{control: control, log: log}
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Holovis")
	systray.SetTooltip("Holovis Interaction Pipeline")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.control.Enabled()), "Toggle command dispatch")
	systray.AddSeparator()

	t.menuLastGesture = systray.AddMenuItem(lastTitle(t.last), "Last classified gesture")
	t.menuLastGesture.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Holovis")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// handleToggle flips dispatch. A failed switch leaves the title unchanged.
func (t *Tray) handleToggle() {
	enabled := !t.control.Enabled()
	if err := t.control.SetEnabled(enabled); err != nil {
		t.log.Error("failed to toggle pipeline", zap.Bool("enabled", enabled), zap.Error(err))
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// OnGesture shows ev as the last gesture. It matches gesture.Handler.
func (t *Tray) OnGesture(ev gesture.Event) {
	t.SetLastGesture(Label(ev.Kind))
}

// SetLastGesture updates the last gesture display in the menu.
func (t *Tray) SetLastGesture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = name
	if t.menuLastGesture != nil {
		t.menuLastGesture.SetTitle(lastTitle(name))
	}
}

// LastGesture returns the displayed gesture name.
func (t *Tray) LastGesture() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Label renders a gesture kind for display, e.g. "One hand tap".
func Label(k gesture.Kind) string {
	if k == gesture.Invariant {
		return ""
	}
	s := strings.ReplaceAll(string(k), "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func lastTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}
