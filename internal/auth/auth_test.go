package auth

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkvm-go/rkvm/internal/model"
)

var testTimeouts = Timeouts{Read: 500 * time.Millisecond, Write: 500 * time.Millisecond}

// tcpPair returns both ends of a loopback TCP connection. Unlike
// net.Pipe, TCP buffers writes, so both peers can send their Version
// before either reads the other's.
func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server := <-accepted
	require.NotNil(t, server)
	return server, client
}

func TestHandshake_CorrectPasswordPasses(t *testing.T) {
	server, client := tcpPair(t)
	defer server.Close()
	defer client.Close()

	serverErr := make(chan error, 1)
	go func() { serverErr <- ServerHandshake(server, "hunter2", testTimeouts) }()

	clientErr := make(chan error, 1)
	go func() { clientErr <- ClientHandshake(client, "hunter2", testTimeouts) }()

	require.NoError(t, <-serverErr)
	require.NoError(t, <-clientErr)
}

func TestHandshake_WrongPasswordFails(t *testing.T) {
	server, client := tcpPair(t)
	defer server.Close()
	defer client.Close()

	serverErr := make(chan error, 1)
	go func() { serverErr <- ServerHandshake(server, "correct-password", testTimeouts) }()

	clientErr := make(chan error, 1)
	go func() { clientErr <- ClientHandshake(client, "wrong-password", testTimeouts) }()

	sErr := <-serverErr
	cErr := <-clientErr
	require.Error(t, sErr)
	require.Error(t, cErr)
	kind, ok := model.KindOf(sErr)
	require.True(t, ok)
	assert.Equal(t, model.KindAuth, kind)
	kind, ok = model.KindOf(cErr)
	require.True(t, ok)
	assert.Equal(t, model.KindAuth, kind)
}

func TestVerify_OneBytePerturbationFails(t *testing.T) {
	var challenge [32]byte
	for i := range challenge {
		challenge[i] = byte(i * 3)
	}

	response := respond("shared-secret", challenge)
	assert.True(t, verify("shared-secret", challenge, response))

	perturbed := response
	perturbed[0] ^= 0x01
	assert.False(t, verify("shared-secret", challenge, perturbed))
}

func TestHandshake_SlowClientTimesOut(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	short := Timeouts{Read: 20 * time.Millisecond, Write: 20 * time.Millisecond}
	serverErr := make(chan error, 1)
	go func() { serverErr <- ServerHandshake(server, "hunter2", short) }()

	// The client never reads; over the unbuffered pipe the server's
	// version write must time out.
	err := <-serverErr
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.KindTimeout, kind)
}
