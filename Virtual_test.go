package modbus

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualPairRoundTrip(t *testing.T) {
	a, b := VirtualPair()
	defer a.Close()
	defer b.Close()

	msg := []byte{0x01, 0x02, 0x03}
	n, err := a.Write(msg)
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)

	buf := make([]byte, 16)
	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, msg, buf[:n])
}

func TestVirtualPairPartialRead(t *testing.T) {
	a, b := VirtualPair()
	defer a.Close()
	defer b.Close()

	msg := []byte{1, 2, 3, 4, 5, 6}
	_, err := a.Write(msg)
	require.NoError(t, err)

	// A small destination buffer leaves the remainder for the next Read.
	buf := make([]byte, 4)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, msg[:4], buf[:n])

	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, msg[4:], buf[:n])
}

func TestVirtualPairDeadline(t *testing.T) {
	a, b := VirtualPair()
	defer a.Close()
	defer b.Close()

	require.NoError(t, b.SetReadDeadline(time.Now().Add(20*time.Millisecond)))

	start := time.Now()
	buf := make([]byte, 16)
	_, err := b.Read(buf)
	require.Error(t, err)
	assert.True(t, isTimeout(err))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestVirtualPairClose(t *testing.T) {
	a, b := VirtualPair()
	require.NoError(t, a.Close())

	_, err := a.Write([]byte{1})
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	_, err = b.Write([]byte{1})
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	b.SetReadDeadline(time.Time{})
	buf := make([]byte, 1)
	_, err = b.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}
