package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameHeader(t *testing.T) {
	framed := Frame([]byte("hello"))
	require.Len(t, framed, FrameHeaderSize+5)
	assert.Equal(t, []byte{0, 0, 0, 5}, framed[:FrameHeaderSize])
	assert.Equal(t, "hello", string(framed[FrameHeaderSize:]))
}

// TestUnframeSequence verifies that consecutive frames on one stream are read back in
// order, with a clean io.EOF at the end.
func TestUnframeSequence(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{[]byte("first"), {}, bytes.Repeat([]byte{0x5A}, 70_000)}
	for _, p := range payloads {
		n, err := WriteFrame(&buf, p)
		require.NoError(t, err)
		assert.Equal(t, len(p)+FrameHeaderSize, n)
	}

	for _, want := range payloads {
		got, err := Unframe(&buf)
		require.NoError(t, err)
		assert.Equal(t, len(want), len(got))
		assert.True(t, bytes.Equal(want, got))
	}

	_, err := Unframe(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestUnframeTruncated(t *testing.T) {
	body := make([]byte, 10)
	full := Frame(body)

	testCases := []struct {
		name string
		data []byte
	}{
		{"partial header", full[:2]},
		{"header only", full[:FrameHeaderSize]},
		{"short body", full[:FrameHeaderSize+3]},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Unframe(bytes.NewReader(tc.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTruncatedFrame)
		})
	}
}

func TestUnframeTooLarge(t *testing.T) {
	var header [FrameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], 1024)

	_, err := UnframeLimit(bytes.NewReader(header[:]), 512)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	binary.BigEndian.PutUint32(header[:], DefaultMaxFrameSize+1)
	_, err = Unframe(bytes.NewReader(header[:]))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

// TestUnframeClosedMidFrame verifies that a peer announcing N bytes and hanging up early
// produces ErrTruncatedFrame instead of blocking forever.
func TestUnframeClosedMidFrame(t *testing.T) {
	client, server := net.Pipe()

	go func() {
		var header [FrameHeaderSize]byte
		binary.BigEndian.PutUint32(header[:], 100)
		_, _ = client.Write(header[:])
		_, _ = client.Write(make([]byte, 40))
		_ = client.Close()
	}()

	errCh := make(chan error, 1)
	go func() {
		_, err := Unframe(server)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrTruncatedFrame)
	case <-time.After(2 * time.Second):
		t.Fatal("Unframe did not return after the writer closed")
	}
}
