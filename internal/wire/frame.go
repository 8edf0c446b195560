// Package wire implements the length-prefixed binary protocol rkvm
// speaks over a TLS-wrapped TCP stream: frame length-prefixing,
// Version/AuthChallenge/AuthResponse/AuthStatus exchange, and the
// Update tagged union carrying device lifecycle and input events.
//
// There is no off-the-shelf framing or serialization library in the
// example corpus whose wire format matches this one (length-prefixed,
// u16 LE, a hand-rolled discriminated union) — see DESIGN.md for why
// this package is a thin hand-written binary.Read/Write codec rather
// than an adaptation of an existing serialization library.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/rkvm-go/rkvm/internal/model"
)

// MaxPayloadSize is the strict maximum payload size: the length prefix
// is a u16, so no frame can exceed 65535 bytes of payload.
const MaxPayloadSize = 65535

// WriteFrame writes payload as a single length-prefixed message. It
// returns a Protocol error if payload exceeds MaxPayloadSize.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return model.Wrapf(model.KindProtocol, "payload of %d bytes exceeds maximum of %d", len(payload), MaxPayloadSize)
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return model.Wrapf(model.KindNetwork, "writing frame length: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return model.Wrapf(model.KindNetwork, "writing frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads a single length-prefixed message. No partial message
// is ever returned: either the full payload arrives or an error does.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, model.Wrapf(model.KindNetwork, "reading frame length: %w", err)
	}
	length := binary.LittleEndian.Uint16(lenBuf[:])
	if length == 0 {
		return nil, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, model.Wrapf(model.KindNetwork, "reading frame payload: %w", err)
	}
	return payload, nil
}
