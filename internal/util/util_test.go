package util

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
		{5 * 1024 * 1024, " 5.0 MiB"},
	}

	for _, tc := range testCases {
		got := formatBytes(tc.in)
		assert.Equal(t, tc.want, got)
		assert.Len(t, got, 8)
	}
}

func TestReportLine(t *testing.T) {
	interval := 10 * time.Second

	// heartbeat-only traffic: 10 PINGs and 10 PONGs each way
	idle := Traffic{BytesSent: 100, BytesReceived: 100, MessagesSent: 20, MessagesReceived: 20}
	_, ok := reportLine(Traffic{}, idle, interval)
	assert.False(t, ok)

	busy := Traffic{BytesSent: 512 * 1024, BytesReceived: 2048, MessagesSent: 150, MessagesReceived: 20}
	line, ok := reportLine(Traffic{}, busy, interval)
	require.True(t, ok)
	assert.Contains(t, line, "Out: 51.2 KiB/s")
	assert.Contains(t, line, "150↑")
}

func TestConnTag(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	dialed, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer dialed.Close()

	peer := <-accepted
	defer peer.Close()

	assert.Equal(t, ConnTag(dialed), ConnTag(dialed))
	assert.NotEqual(t, ConnTag(dialed), ConnTag(peer), "the two ends see mirrored 4-tuples")
	assert.Equal(t, AddrTag(dialed.LocalAddr(), dialed.RemoteAddr()), ConnTag(dialed))
	assert.Regexp(t, `^\[[0-9a-f]{8}\]$`, FormatTag(ConnTag(dialed)))
}

func TestConnLoggerPrefix(t *testing.T) {
	l := NewConnLogger(0xdeadbeef)
	assert.Equal(t, "[deadbeef] hello %d", l.prefix("hello %d"))
	assert.Equal(t, "plain", ConnLogger{}.prefix("plain"))
}
