// Package clientrecv implements the client side of an rkvm session:
// decode one Update per iteration from an authenticated stream, keep a
// map of server-assigned device id to the local virtual writer mirroring
// it, and apply CreateDevice/DestroyDevice/Event/Ping per spec.md §4.8.
package clientrecv

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/rkvm-go/rkvm/internal/metrics"
	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/wire"
	"github.com/rkvm-go/rkvm/internal/writer"
)

// Conn is the minimal surface Receiver needs from an authenticated
// stream: a length-framed read bounded by a deadline, and a
// length-framed write bounded by a deadline. *net.TCPConn (wrapped in
// TLS, past the auth handshake) satisfies it via NewConn.
type Conn interface {
	ReadFrame(deadline time.Time) ([]byte, error)
	WriteFrame(payload []byte, deadline time.Time) error
}

// netConn adapts a net.Conn to Conn.
type netConn struct {
	c net.Conn
}

// NewConn wraps an authenticated net.Conn for use by Receiver.
func NewConn(c net.Conn) Conn { return &netConn{c: c} }

func (n *netConn) ReadFrame(deadline time.Time) ([]byte, error) {
	if err := n.c.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	return wire.ReadFrame(n.c)
}

func (n *netConn) WriteFrame(payload []byte, deadline time.Time) error {
	if err := n.c.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return wire.WriteFrame(n.c, payload)
}

// WriterFactory builds the local virtual device for a freshly announced
// DeviceInfo. Production code passes writer.FromDeviceInfo(info).Build;
// tests substitute a fake that records calls instead of touching
// /dev/uinput.
type WriterFactory func(info model.DeviceInfo) (Writer, error)

// Writer is the subset of *writer.Writer the receiver drives.
type Writer interface {
	Write(ev model.Event) error
	Close() error
}

// Config bounds the receiver's timeouts: PingInterval+ReadTimeout is
// the idle budget before a silent server is treated as fatal (spec.md
// §4.8), WriteTimeout bounds the Pong reply.
type Config struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Receiver owns the client-side writers map and drives the decode loop.
type Receiver struct {
	conn    Conn
	cfg     Config
	newVdev WriterFactory
	logger  *slog.Logger

	writers map[model.DeviceID]Writer
}

// New builds a Receiver over conn using newVdev to materialize local
// writers for each announced device.
func New(conn Conn, cfg Config, newVdev WriterFactory, logger *slog.Logger) *Receiver {
	if newVdev == nil {
		newVdev = func(info model.DeviceInfo) (Writer, error) {
			return writer.FromDeviceInfo(info).Build()
		}
	}
	return &Receiver{
		conn:    conn,
		cfg:     cfg,
		newVdev: newVdev,
		logger:  logger,
		writers: make(map[model.DeviceID]Writer),
	}
}

// Run decodes updates until ctx is cancelled or a fatal error occurs.
// Any error from this loop is fatal to the client process per spec.md
// §7 — there is no reconnection logic.
func (r *Receiver) Run(ctx context.Context) error {
	idleBudget := r.cfg.PingInterval + r.cfg.ReadTimeout
	for {
		if err := ctx.Err(); err != nil {
			r.closeAll()
			return err
		}

		payload, err := r.conn.ReadFrame(time.Now().Add(idleBudget))
		if err != nil {
			r.closeAll()
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return model.Wrapf(model.KindTimeout, "no update received within %s: %w", idleBudget, err)
			}
			return err
		}

		u, err := wire.DecodeUpdate(payload)
		if err != nil {
			r.closeAll()
			return err
		}

		if err := r.apply(u); err != nil {
			r.closeAll()
			return err
		}
	}
}

func (r *Receiver) apply(u wire.Update) error {
	switch v := u.(type) {
	case wire.CreateDevice:
		return r.applyCreateDevice(v)
	case wire.DestroyDevice:
		return r.applyDestroyDevice(v)
	case wire.EventUpdate:
		return r.applyEvent(v)
	case wire.Ping:
		return r.applyPing()
	default:
		return model.Wrapf(model.KindProtocol, "unexpected update type %T on client stream", u)
	}
}

func (r *Receiver) applyCreateDevice(v wire.CreateDevice) error {
	if _, exists := r.writers[v.Info.ID]; exists {
		return model.Wrapf(model.KindProtocol, "duplicate CreateDevice for id %d", v.Info.ID)
	}
	w, err := r.newVdev(v.Info)
	if err != nil {
		return model.Wrap(model.KindInput, err)
	}
	r.writers[v.Info.ID] = w
	metrics.ClientUpdatesApplied.WithLabelValues("create_device").Inc()
	r.logger.Info("device created", "id", v.Info.ID, "name", v.Info.Name)
	return nil
}

func (r *Receiver) applyDestroyDevice(v wire.DestroyDevice) error {
	w, ok := r.writers[v.ID]
	if !ok {
		return model.Wrapf(model.KindProtocol, "DestroyDevice for unknown id %d", v.ID)
	}
	delete(r.writers, v.ID)
	metrics.ClientUpdatesApplied.WithLabelValues("destroy_device").Inc()
	r.logger.Info("device destroyed", "id", v.ID)
	return w.Close()
}

func (r *Receiver) applyEvent(v wire.EventUpdate) error {
	w, ok := r.writers[v.ID]
	if !ok {
		return model.Wrapf(model.KindProtocol, "Event for unknown id %d", v.ID)
	}
	metrics.ClientUpdatesApplied.WithLabelValues("event").Inc()
	return w.Write(v.Event)
}

func (r *Receiver) applyPing() error {
	payload, err := wire.EncodeUpdate(wire.Pong{})
	if err != nil {
		return err
	}
	if err := r.conn.WriteFrame(payload, time.Now().Add(r.cfg.WriteTimeout)); err != nil {
		return model.Wrap(model.KindNetwork, err)
	}
	metrics.ClientUpdatesApplied.WithLabelValues("ping").Inc()
	return nil
}

// closeAll tears down every live writer, e.g. on a fatal read error or
// when Run's caller cancels ctx (process shutdown).
func (r *Receiver) closeAll() {
	for id, w := range r.writers {
		if err := w.Close(); err != nil {
			r.logger.Warn("writer close failed", "id", id, "error", err)
		}
		delete(r.writers, id)
	}
}
