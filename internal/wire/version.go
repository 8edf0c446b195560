package wire

import (
	"encoding/binary"
	"io"

	"github.com/rkvm-go/rkvm/internal/model"
)

// CurrentVersion is the protocol version this build speaks. A peer
// advertising any other value fails the handshake.
const CurrentVersion uint16 = 1

// WriteVersion frames and writes v.
func WriteVersion(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return WriteFrame(w, buf[:])
}

// ReadVersion reads and returns the peer's advertised version.
func ReadVersion(r io.Reader) (uint16, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return 0, err
	}
	if len(payload) != 2 {
		return 0, model.Wrapf(model.KindProtocol, "version payload is %d bytes, want 2", len(payload))
	}
	return binary.LittleEndian.Uint16(payload), nil
}

const challengeSize = 32

// WriteChallenge frames and writes a 32-byte challenge or response.
func WriteChallenge(w io.Writer, challenge [challengeSize]byte) error {
	return WriteFrame(w, challenge[:])
}

// ReadChallenge reads a 32-byte challenge or response.
func ReadChallenge(r io.Reader) ([challengeSize]byte, error) {
	var out [challengeSize]byte
	payload, err := ReadFrame(r)
	if err != nil {
		return out, err
	}
	if len(payload) != challengeSize {
		return out, model.Wrapf(model.KindProtocol, "challenge payload is %d bytes, want %d", len(payload), challengeSize)
	}
	copy(out[:], payload)
	return out, nil
}

// AuthStatus is the single-byte result of the auth handshake.
type AuthStatus byte

const (
	StatusPassed AuthStatus = 0
	StatusFailed AuthStatus = 1
)

// WriteAuthStatus frames and writes s.
func WriteAuthStatus(w io.Writer, s AuthStatus) error {
	return WriteFrame(w, []byte{byte(s)})
}

// ReadAuthStatus reads and validates an AuthStatus; any byte value
// other than Passed/Failed is a Protocol error.
func ReadAuthStatus(r io.Reader) (AuthStatus, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return 0, err
	}
	if len(payload) != 1 {
		return 0, model.Wrapf(model.KindProtocol, "auth status payload is %d bytes, want 1", len(payload))
	}
	s := AuthStatus(payload[0])
	if s != StatusPassed && s != StatusFailed {
		return 0, model.Wrapf(model.KindProtocol, "invalid auth status byte %d", payload[0])
	}
	return s, nil
}
