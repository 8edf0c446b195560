package model

// Key identifies a single entry in the kernel's key/button codespace
// (EV_KEY). Values equal the kernel code so translation is a direct
// cast; validity is a range check against the codespace the kernel
// actually populates (keyboard keys 1..0x2ff, mouse/joystick buttons
// 0x100..0x2ff) rather than an exhaustive enumeration of every name —
// see DESIGN.md for why.
type Key uint16

// A representative subset of keyboard keys, named for use as switch
// combo members and in tests. Unlisted codes remain valid Keys as long
// as they fall in the keycode range; they just have no symbolic name
// here.
const (
	KeyEsc        Key = 1
	Key1          Key = 2
	Key2          Key = 3
	KeyTab        Key = 15
	KeyLeftCtrl   Key = 29
	KeyLeftShift  Key = 42
	KeyRightShift Key = 54
	KeyLeftAlt    Key = 56
	KeySpace      Key = 57
	KeyCapsLock   Key = 58
	KeyRightCtrl  Key = 97
	KeyRightAlt   Key = 100
	KeyLeftMeta   Key = 125
	KeyRightMeta  Key = 126
)

// Mouse buttons live at the start of the BTN_MOUSE range.
const (
	BtnLeft   Key = 0x110
	BtnRight  Key = 0x111
	BtnMiddle Key = 0x112
	BtnSide   Key = 0x113
	BtnExtra  Key = 0x114
)

// keyNames supplies a human-readable name for configuration parsing and
// diagnostics; it is intentionally a curated subset, not the kernel's
// entire codespace.
var keyNames = map[string]Key{
	"KEY_ESC": KeyEsc, "KEY_TAB": KeyTab,
	"KEY_LEFTCTRL": KeyLeftCtrl, "KEY_RIGHTCTRL": KeyRightCtrl,
	"KEY_LEFTSHIFT": KeyLeftShift, "KEY_RIGHTSHIFT": KeyRightShift,
	"KEY_LEFTALT": KeyLeftAlt, "KEY_RIGHTALT": KeyRightAlt,
	"KEY_LEFTMETA": KeyLeftMeta, "KEY_RIGHTMETA": KeyRightMeta,
	"KEY_SPACE": KeySpace, "KEY_CAPSLOCK": KeyCapsLock,
	"BTN_LEFT": BtnLeft, "BTN_RIGHT": BtnRight, "BTN_MIDDLE": BtnMiddle,
}

// ParseKey resolves a configuration-file key name (e.g. "KEY_LEFTCTRL")
// to a Key. It returns false for names outside the curated table.
func ParseKey(name string) (Key, bool) {
	k, ok := keyNames[name]
	return k, ok
}

// maxKeyCode is the highest code the kernel's key/button codespace
// defines (KEY_MAX in linux/input-event-codes.h).
const maxKeyCode = 0x2ff

// IsKey reports whether code falls within the kernel's key/button
// codespace.
func IsKey(code uint16) bool {
	return code >= 1 && code <= maxKeyCode
}
