// Package auth implements the version exchange and HMAC-SHA256
// challenge-response handshake every rkvm connection performs before
// the streaming phase begins, grounded on the same crypto/hmac +
// crypto/subtle constant-time-compare pattern used for presigned URL
// signatures elsewhere in the ecosystem.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net"
	"os"
	"time"

	"github.com/rkvm-go/rkvm/internal/metrics"
	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/wire"
)

// Timeouts bounds each read and write performed during the handshake.
// A stalling peer is terminated once either deadline is exceeded.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
}

// ServerHandshake performs the server side of the version exchange and
// challenge-response over conn, which must already be wrapped in TLS.
// It returns a KindAuth error if the client's response does not
// verify, a KindProtocol error on version mismatch, and a KindTimeout
// error if either deadline is exceeded.
func ServerHandshake(conn net.Conn, password string, t Timeouts) error {
	if err := exchangeVersion(conn, t); err != nil {
		return err
	}

	var challenge [32]byte
	if _, err := rand.Read(challenge[:]); err != nil {
		return model.Wrapf(model.KindAuth, "generating challenge: %w", err)
	}

	if err := withDeadline(conn.SetWriteDeadline, t.Write, func() error {
		return wire.WriteChallenge(conn, challenge)
	}); err != nil {
		return classify(err)
	}

	var response [32]byte
	if err := withDeadline(conn.SetReadDeadline, t.Read, func() error {
		r, err := wire.ReadChallenge(conn)
		response = r
		return err
	}); err != nil {
		return classify(err)
	}

	passed := verify(password, challenge, response)
	status := wire.StatusFailed
	if passed {
		status = wire.StatusPassed
	}

	if err := withDeadline(conn.SetWriteDeadline, t.Write, func() error {
		return wire.WriteAuthStatus(conn, status)
	}); err != nil {
		return classify(err)
	}

	if !passed {
		metrics.AuthFailures.Inc()
		return model.Wrapf(model.KindAuth, "challenge response did not verify")
	}
	return nil
}

// ClientHandshake performs the client side of the handshake over conn.
func ClientHandshake(conn net.Conn, password string, t Timeouts) error {
	if err := exchangeVersion(conn, t); err != nil {
		return err
	}

	var challenge [32]byte
	if err := withDeadline(conn.SetReadDeadline, t.Read, func() error {
		c, err := wire.ReadChallenge(conn)
		challenge = c
		return err
	}); err != nil {
		return classify(err)
	}

	response := respond(password, challenge)
	if err := withDeadline(conn.SetWriteDeadline, t.Write, func() error {
		return wire.WriteChallenge(conn, response)
	}); err != nil {
		return classify(err)
	}

	var status wire.AuthStatus
	if err := withDeadline(conn.SetReadDeadline, t.Read, func() error {
		s, err := wire.ReadAuthStatus(conn)
		status = s
		return err
	}); err != nil {
		return classify(err)
	}

	if status == wire.StatusFailed {
		return model.Wrapf(model.KindAuth, "server rejected credentials")
	}
	return nil
}

func exchangeVersion(conn net.Conn, t Timeouts) error {
	if err := withDeadline(conn.SetWriteDeadline, t.Write, func() error {
		return wire.WriteVersion(conn, wire.CurrentVersion)
	}); err != nil {
		return classify(err)
	}

	var peer uint16
	if err := withDeadline(conn.SetReadDeadline, t.Read, func() error {
		v, err := wire.ReadVersion(conn)
		peer = v
		return err
	}); err != nil {
		return classify(err)
	}
	if peer != wire.CurrentVersion {
		return model.Wrapf(model.KindProtocol, "version mismatch: peer=%d, want=%d", peer, wire.CurrentVersion)
	}
	return nil
}

// respond computes the HMAC-SHA256(password, challenge) response.
func respond(password string, challenge [32]byte) [32]byte {
	mac := hmac.New(sha256.New, []byte(password))
	mac.Write(challenge[:])
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// verify checks response against the expected HMAC in constant time,
// so a timing side channel cannot leak how many leading bytes matched.
func verify(password string, challenge, response [32]byte) bool {
	expected := respond(password, challenge)
	return subtle.ConstantTimeCompare(expected[:], response[:]) == 1
}

func withDeadline(setDeadline func(time.Time) error, d time.Duration, fn func() error) error {
	if err := setDeadline(time.Now().Add(d)); err != nil {
		return err
	}
	return fn()
}

// classify upgrades a deadline-exceeded error to KindTimeout; anything
// else passes through unchanged (wire already wraps it as KindNetwork
// or KindProtocol).
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return model.Wrapf(model.KindTimeout, "handshake deadline exceeded: %w", err)
	}
	return err
}
