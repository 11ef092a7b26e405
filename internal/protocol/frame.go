package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameHeaderSize is the size of the big-endian length prefix.
const FrameHeaderSize = 4

// DefaultMaxFrameSize caps the payload length accepted by Unframe (16 MiB).
const DefaultMaxFrameSize = 16 * 1024 * 1024

// Frame errors. Both are fatal: the stream carries no resynchronization marker.
var (
	ErrTruncatedFrame = errors.New("protocol: truncated frame")
	ErrFrameTooLarge  = errors.New("protocol: frame exceeds maximum size")
)

// Frame returns payload prefixed with its 4-byte big-endian length.
func Frame(payload []byte) []byte {
	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:FrameHeaderSize], uint32(len(payload)))
	copy(buf[FrameHeaderSize:], payload)
	return buf
}

// WriteFrame frames payload and writes it in a single call. It returns the number of
// bytes written, header included.
func WriteFrame(w io.Writer, payload []byte) (int, error) {
	return w.Write(Frame(payload))
}

// Unframe reads one frame using DefaultMaxFrameSize.
func Unframe(r io.Reader) ([]byte, error) {
	return UnframeLimit(r, DefaultMaxFrameSize)
}

// UnframeLimit reads exactly one frame from r and returns its payload.
//
// A clean end of stream before the first header byte returns io.EOF. A partial header
// or a short body returns an error wrapping ErrTruncatedFrame. A length above max
// returns ErrFrameTooLarge without reading the body. max == 0 disables the limit.
func UnframeLimit(r io.Reader, max uint32) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if n, err := io.ReadFull(r, header[:]); err != nil {
		if n == 0 {
			// io.EOF here is the peer closing between frames.
			return nil, err
		}
		return nil, fmt.Errorf("%w: header %d/%d bytes: %w", ErrTruncatedFrame, n, FrameHeaderSize, err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if max > 0 && length > max {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, max)
	}

	payload := make([]byte, length)
	if n, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: body %d/%d bytes: %w", ErrTruncatedFrame, n, length, err)
	}
	return payload, nil
}
