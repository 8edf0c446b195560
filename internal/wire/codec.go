package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/rkvm-go/rkvm/internal/model"
)

// encoder accumulates a message body using little-endian primitives,
// matching the fixed field widths the Update encoding relies on.
type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) u8(v uint8)   { e.buf.WriteByte(v) }
func (e *encoder) u16(v uint16) { var b [2]byte; binary.LittleEndian.PutUint16(b[:], v); e.buf.Write(b[:]) }
func (e *encoder) u32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); e.buf.Write(b[:]) }
func (e *encoder) u64(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); e.buf.Write(b[:]) }
func (e *encoder) i32(v int32)  { e.u32(uint32(v)) }

func (e *encoder) bool(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) str(s string) {
	e.u16(uint16(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) bytesOut() []byte { return e.buf.Bytes() }

// decoder consumes a message body in the same order encoder wrote it,
// capturing the first error so call sites can chain reads without a
// check after every field.
type decoder struct {
	r   *bytes.Reader
	err error
}

func newDecoder(payload []byte) *decoder {
	return &decoder{r: bytes.NewReader(payload)}
}

func (d *decoder) fail(msg string) {
	if d.err == nil {
		d.err = model.Wrapf(model.KindProtocol, "decoding update: %s", msg)
	}
}

func (d *decoder) u8() uint8 {
	if d.err != nil {
		return 0
	}
	b, err := d.r.ReadByte()
	if err != nil {
		d.fail("unexpected end of payload")
		return 0
	}
	return b
}

func (d *decoder) u16() uint16 {
	if d.err != nil {
		return 0
	}
	var b [2]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		d.fail("unexpected end of payload")
		return 0
	}
	return binary.LittleEndian.Uint16(b[:])
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		d.fail("unexpected end of payload")
		return 0
	}
	return binary.LittleEndian.Uint32(b[:])
}

func (d *decoder) u64() uint64 {
	if d.err != nil {
		return 0
	}
	var b [8]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		d.fail("unexpected end of payload")
		return 0
	}
	return binary.LittleEndian.Uint64(b[:])
}

func (d *decoder) i32() int32 { return int32(d.u32()) }

func (d *decoder) boolean() bool { return d.u8() != 0 }

func (d *decoder) str() string {
	n := d.u16()
	if d.err != nil {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.fail("unexpected end of payload")
		return ""
	}
	return string(buf)
}
