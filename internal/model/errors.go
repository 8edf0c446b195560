package model

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the semantics spec'd for error handling,
// independent of the concrete Go type that carries it. Callers use
// errors.Is against a Kind's AsSentinel value (or KindOf), not type
// assertions.
type Kind uint8

const (
	KindNetwork Kind = iota
	KindInput
	KindProtocol
	KindAuth
	KindOverflow
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindInput:
		return "input"
	case KindProtocol:
		return "protocol"
	case KindAuth:
		return "auth"
	case KindOverflow:
		return "overflow"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with the underlying cause. It implements Unwrap so
// errors.Is/errors.As see through to both the Kind sentinel and the
// wrapped cause.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, model.KindNetwork.AsSentinel())-style checks
// work: a Kind sentinel value "is" any *Error carrying that Kind.
func (e *Error) Is(target error) bool {
	if k, ok := target.(sentinelKind); ok {
		return e.Kind == Kind(k)
	}
	return false
}

// sentinelKind lets Kind values masquerade as error sentinels (see
// AsSentinel); Kind itself does not implement error.
type sentinelKind Kind

func (k sentinelKind) Error() string { return Kind(k).String() }

// AsSentinel returns an error value usable as the target of
// errors.Is(err, model.KindNetwork.AsSentinel()).
func (k Kind) AsSentinel() error { return sentinelKind(k) }

// Wrap builds an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: cause}
}

// Wrapf is Wrap with a formatted cause, mirroring fmt.Errorf("...: %w").
func Wrapf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, if err (or something it wraps) is
// a *Error. The second return is false for plain errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// ErrNotApplicable signals that an open attempt should be silently
// skipped rather than treated as a failure: the path isn't an event
// node, the device advertises EV_SW, the grab is held by someone else,
// or the device is already registered as one of this process's own
// writer outputs.
var ErrNotApplicable = errors.New("not applicable")

// ErrBrokenPipe is the cause wrapped into a KindInput error whenever a
// device read fails because the device disconnected (ENODEV or the
// node vanished). The router treats this specific cause as routine —
// broadcast DestroyDevice and continue — and any other KindInput cause
// as fatal.
var ErrBrokenPipe = errors.New("broken pipe")
