package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello rkvm")

	require.NoError(t, WriteFrame(&buf, payload))
	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFrame_ExactlyMaxPayloadSizeRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte{0xAB}, MaxPayloadSize)

	require.NoError(t, WriteFrame(&buf, payload))
	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFrame_OverMaxPayloadSizeRejected(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte{0xAB}, MaxPayloadSize+1)

	err := WriteFrame(&buf, payload)
	require.Error(t, err)
	assert.Equal(t, 0, buf.Len())
}

func TestFrame_TruncatedStreamFails(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("abcdef")))

	truncated := bytes.NewReader(buf.Bytes()[:3])
	_, err := ReadFrame(truncated)
	assert.Error(t, err)
}

func TestVersion_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVersion(&buf, CurrentVersion))
	got, err := ReadVersion(&buf)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, got)
}

func TestChallenge_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	var challenge [challengeSize]byte
	for i := range challenge {
		challenge[i] = byte(i)
	}

	require.NoError(t, WriteChallenge(&buf, challenge))
	got, err := ReadChallenge(&buf)
	require.NoError(t, err)
	assert.Equal(t, challenge, got)
}

func TestAuthStatus_InvalidByteRejected(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{7}))

	_, err := ReadAuthStatus(&buf)
	assert.Error(t, err)
}

func TestAuthStatus_RoundTrip(t *testing.T) {
	for _, status := range []AuthStatus{StatusPassed, StatusFailed} {
		var buf bytes.Buffer
		require.NoError(t, WriteAuthStatus(&buf, status))
		got, err := ReadAuthStatus(&buf)
		require.NoError(t, err)
		assert.Equal(t, status, got)
	}
}
