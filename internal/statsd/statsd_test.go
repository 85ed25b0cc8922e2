package statsd

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRejectsEmptyAddress(t *testing.T) {
	require.Error(t, Init("", nil))
}

func TestMetricsReachTheAgent(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Init(conn.LocalAddr().String(), []string{"program:test"}))

	IncrSubmission("resolve", "confirmed")
	GaugeEpoch(7, "active")
	EmitTickStat(250*time.Millisecond, true)
	require.NoError(t, Close())

	var received strings.Builder
	buf := make([]byte, 4096)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	expected := []string{"keeper.tick", "keeper.submission", "keeper.epoch"}
	for !containsAll(received.String(), expected) {
		n, _, err := conn.ReadFrom(buf)
		require.NoError(t, err)
		received.Write(buf[:n])
	}

	got := received.String()
	assert.Contains(t, got, "keeper.submission:1|c")
	assert.Contains(t, got, "action:resolve")
	assert.Contains(t, got, "outcome:confirmed")
	assert.Contains(t, got, "keeper.epoch:7|g")
	assert.Contains(t, got, "state:active")
	assert.Contains(t, got, "triggered:true")
	assert.Contains(t, got, "program:test")
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
