package connectors

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPHandlerIdle(t *testing.T) {
	h := NewUDPMessageHandler(zerolog.Nop())

	assert.Equal(t, "UDP", h.Name())
	assert.False(t, h.IsConnected())
	assert.NotPanics(t, h.Stop)
}

func TestUDPHandlerGroup(t *testing.T) {
	h := NewUDPMessageHandler(zerolog.Nop()).(*udpMessageHandler)

	assert.Equal(t, "224.0.0.69:4403", h.group.String())
}

func stopWithin(t *testing.T, h MeshConnector, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		h.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("Stop did not return")
	}
}

func TestUDPHandlerStopUnblocksRead(t *testing.T) {
	h := NewUDPMessageHandler(zerolog.Nop())
	require.NoError(t, h.Start())

	deadline := time.Now().Add(2 * time.Second)
	for !h.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !h.IsConnected() {
		stopWithin(t, h, 2*time.Second)
		t.Skip("multicast is not available")
	}

	stopWithin(t, h, 2*time.Second)
	assert.False(t, h.IsConnected())
}

func TestUDPHandlerStopDuringBackoff(t *testing.T) {
	h := NewUDPMessageHandler(zerolog.Nop()).(*udpMessageHandler)
	// Port 1 on a unicast address can't be joined as a group, so setup
	// fails and the handler waits in its backoff sleep.
	h.group = &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}

	lost := make(chan struct{}, 1)
	h.SetStateHandler(func(_ MeshConnector, e ListenerEvent) {
		if e == EventConnectionLost {
			select {
			case lost <- struct{}{}:
			default:
			}
		}
	})
	require.NoError(t, h.Start())

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		stopWithin(t, h, 2*time.Second)
		t.Skip("socket setup unexpectedly succeeded")
	}

	start := time.Now()
	stopWithin(t, h, 2*time.Second)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
