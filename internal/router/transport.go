package router

import (
	"net"
	"time"

	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/wire"
)

// Transport is the per-client sender task's view of a connection: send
// one Update bounded by a write deadline, and read the matching Pong
// bounded by a read deadline. Abstracting it out of net.Conn lets the
// router's switch-combo and routing algorithm be driven by a fake in
// tests, without a real TLS socket.
type Transport interface {
	Send(u wire.Update, timeout time.Duration) error
	ReadPong(timeout time.Duration) error
	Close() error
	Remote() string
}

// netTransport adapts a net.Conn (already past the TLS handshake and
// auth exchange) to Transport.
type netTransport struct {
	conn net.Conn
}

// NewNetTransport wraps an authenticated connection.
func NewNetTransport(conn net.Conn) Transport {
	return &netTransport{conn: conn}
}

func (t *netTransport) Send(u wire.Update, timeout time.Duration) error {
	payload, err := wire.EncodeUpdate(u)
	if err != nil {
		return err
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return wire.WriteFrame(t.conn, payload)
}

func (t *netTransport) ReadPong(timeout time.Duration) error {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	payload, err := wire.ReadFrame(t.conn)
	if err != nil {
		return err
	}
	u, err := wire.DecodeUpdate(payload)
	if err != nil {
		return err
	}
	if _, ok := u.(wire.Pong); !ok {
		return model.Wrapf(model.KindProtocol, "expected Pong, got %T", u)
	}
	return nil
}

func (t *netTransport) Close() error { return t.conn.Close() }

func (t *netTransport) Remote() string { return t.conn.RemoteAddr().String() }
