package router

import (
	"errors"
	"time"

	"github.com/rkvm-go/rkvm/internal/wire"
)

var errPongTimeout = errors.New("no pong received within read timeout")

// runClientSender is the per-client sender task: it delivers the
// init_updates snapshot first, then alternates between queued updates
// and PING_INTERVAL keepalives, always checking the ping ticker first
// so a backlog of events can never starve a keepalive.
func (r *Router) runClientSender(slotID int, t Transport, outbound <-chan wire.Update, done chan struct{}, init []wire.Update) {
	err := r.sendLoop(slotID, t, outbound, init)
	close(done)
	t.Close()
	select {
	case r.closed <- clientClosed{slot: slotID, err: err}:
	case <-r.ctx.Done():
	}
}

func (r *Router) sendLoop(slotID int, t Transport, outbound <-chan wire.Update, init []wire.Update) error {
	for _, u := range init {
		if err := t.Send(u, r.cfg.WriteTimeout); err != nil {
			r.logger.Warn("client init send failed", "slot", slotID, "error", err)
			return err
		}
	}

	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !r.ping(slotID, t) {
				return errPongTimeout
			}
			continue
		default:
		}

		select {
		case <-ticker.C:
			if !r.ping(slotID, t) {
				return errPongTimeout
			}
		case u, ok := <-outbound:
			if !ok {
				return nil
			}
			if err := t.Send(u, r.cfg.WriteTimeout); err != nil {
				r.logger.Warn("client send failed", "slot", slotID, "error", err)
				return err
			}
		case <-r.ctx.Done():
			return r.ctx.Err()
		}
	}
}

// ping writes a Ping and waits for the matching Pong, both bounded by
// their respective timeouts. A failure on either leg ends the client's
// session.
func (r *Router) ping(slotID int, t Transport) bool {
	if err := t.Send(wire.Ping{}, r.cfg.WriteTimeout); err != nil {
		r.logger.Warn("ping failed", "slot", slotID, "error", err)
		return false
	}
	if err := t.ReadPong(r.cfg.ReadTimeout); err != nil {
		r.logger.Warn("pong not received", "slot", slotID, "error", err)
		return false
	}
	return true
}
