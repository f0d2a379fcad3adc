// Package uievent defines the window and input events captured by the UI
// pump, and the process-wide buffer the host drains them from.
package uievent

import (
	"fmt"
	"time"
)

// Class identifies the kind of a captured event.
type Class uint8

const (
	ClassUnknown Class = iota

	// interrupting classes

	ClassResize
	ClassKeyboard
	ClassCharacter
	ClassModifiers
	ClassMouseButton
	ClassCursorMoved
	ClassFocus
	ClassMouseWheel
	ClassCloseRequested

	// dispatched to the toolkit only

	ClassRedrawRequested
	ClassThemeChanged
	ClassScaleFactorChanged
	ClassMoved
	ClassAboutToWait
	ClassUser
)

var classNames = [...]string{
	ClassUnknown:            "Unknown",
	ClassResize:             "Resize",
	ClassKeyboard:           "Keyboard",
	ClassCharacter:          "Character",
	ClassModifiers:          "Modifiers",
	ClassMouseButton:        "MouseButton",
	ClassCursorMoved:        "CursorMoved",
	ClassFocus:              "Focus",
	ClassMouseWheel:         "MouseWheel",
	ClassCloseRequested:     "CloseRequested",
	ClassRedrawRequested:    "RedrawRequested",
	ClassThemeChanged:       "ThemeChanged",
	ClassScaleFactorChanged: "ScaleFactorChanged",
	ClassMoved:              "Moved",
	ClassAboutToWait:        "AboutToWait",
	ClassUser:               "User",
}

// String returns a human-readable representation of the class.
func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", c)
}

// Interrupts reports whether an event of this class must cut short a pending
// descriptor wait. The set is fixed: resize, keyboard, character input,
// modifier change, mouse button, pointer motion, focus change, scroll, and
// close request.
func (c Class) Interrupts() bool {
	return c >= ClassResize && c <= ClassCloseRequested
}

// Event is a single window-system event.
type Event struct {
	// Time is when the pump received the event.
	Time time.Time

	// Payload carries toolkit specific detail (key codes, sizes, etc), which
	// is opaque to this package.
	Payload any

	// Window identifies the originating window, 0 if not applicable.
	Window uint64

	// Seq is assigned by [Buffer.Append], strictly increasing per buffer.
	Seq uint64

	Class Class
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return fmt.Sprintf("%s(window=%d seq=%d)", e.Class, e.Window, e.Seq)
}
