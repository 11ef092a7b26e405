package protocol

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncodeDecodeRoundTrip verifies that Decode(Unframe(Frame(Encode(e)))) gives back e for
// every payload variant, including zero values and boundary numbers.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		env  *Envelope
	}{
		{
			name: "video jpeg",
			env: &Envelope{Timestamp: 1_700_000_000_123, Payload: &VideoFrame{
				FrameData: []byte{0xFF, 0xD8, 0xFF, 0xE0}, Width: 640, Height: 480,
				Encoding: EncodingJPEG, FrameNumber: 42,
			}},
		},
		{
			name: "video empty data",
			env:  &Envelope{Timestamp: 1, Payload: &VideoFrame{Encoding: EncodingH264}},
		},
		{
			name: "video large frame (1 MiB)",
			env: &Envelope{Timestamp: 2, Payload: &VideoFrame{
				FrameData: bytes.Repeat([]byte{0xAB}, 1<<20), Width: math.MaxUint32, Height: 1,
				Encoding: EncodingRaw, FrameNumber: math.MaxUint64,
			}},
		},
		{
			name: "audio pcm",
			env: &Envelope{Timestamp: 3, Payload: &AudioFrame{
				AudioData: make([]byte, 640), SampleRate: 16000, Channels: 1, FrameNumber: 7,
			}},
		},
		{
			name: "control connect with marker",
			env:  &Envelope{Timestamp: 4, Payload: &ControlMessage{Type: ControlConnect, Data: Marker()}},
		},
		{
			name: "control zero value",
			env:  &Envelope{Payload: &ControlMessage{}},
		},
		{
			name: "control unknown type value",
			env:  &Envelope{Timestamp: 5, Payload: &ControlMessage{Type: ControlType(99), Data: "future"}},
		},
		{
			name: "status error negative code",
			env: &Envelope{Timestamp: 6, Payload: &StatusMessage{
				Type: StatusError, Message: "camera unavailable", Code: -7,
			}},
		},
		{
			name: "status boundary codes",
			env:  &Envelope{Timestamp: 7, Payload: &StatusMessage{Type: StatusWarning, Code: math.MinInt32}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Encode(tc.env)
			require.NoError(t, err)
			assert.Equal(t, len(data), Size(tc.env), "Size agrees with Encode")

			payload, err := Unframe(bytes.NewReader(Frame(data)))
			require.NoError(t, err)

			decoded, err := Decode(payload)
			require.NoError(t, err)

			if diff := cmp.Diff(tc.env, decoded, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tc.env.Payload.Kind(), decoded.Payload.Kind())
		})
	}
}

func TestEncodeNilPayload(t *testing.T) {
	_, err := Encode(&Envelope{Timestamp: 1})
	require.Error(t, err)

	_, err = Encode(nil)
	require.Error(t, err)

	assert.Zero(t, Size(&Envelope{Timestamp: 1}))
	assert.Zero(t, Size(nil))
}

func TestNewEnvelopeStampsTime(t *testing.T) {
	env := NewControl(ControlPing, "")
	assert.Positive(t, env.Timestamp)
	assert.Equal(t, KindControl, env.Payload.Kind())
}

// TestDecodeUnknownPayloadTag verifies that a field outside the payload oneof is reported as
// an unknown payload type rather than a generic decode failure.
func TestDecodeUnknownPayloadTag(t *testing.T) {
	// field 15, wire type 2, zero-length body
	_, err := Decode([]byte{0x7A, 0x00})
	require.Error(t, err)
	assert.True(t, IsDecodeError(err, UnknownPayloadType), "got %v", err)
	assert.False(t, IsDecodeError(err, Malformed))
}

func TestDecodeMalformed(t *testing.T) {
	video, err := Encode(NewEnvelope(&VideoFrame{FrameData: make([]byte, 64), Encoding: EncodingRaw}))
	require.NoError(t, err)
	control, err := Encode(NewControl(ControlPing, ""))
	require.NoError(t, err)

	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"timestamp only", []byte{0x40, 0x01}},
		{"payload with varint wire type", []byte{0x08, 0x01}},
		{"two payloads", append(append([]byte{}, control...), control...)},
		{"truncated payload", video[:len(video)/2]},
		{"truncated tag", []byte{0x80}},
		{"control missing type", []byte{0x1A, 0x00}},
		{"control unknown field", []byte{0x1A, 0x04, 0x08, 0x02, 0x18, 0x01}},
		{"control duplicate field", []byte{0x1A, 0x04, 0x08, 0x02, 0x08, 0x03}},
		{"control type as bytes", []byte{0x1A, 0x02, 0x0A, 0x00}},
		{"status missing message", []byte{0x22, 0x02, 0x08, 0x00}},
		{"audio missing fields", []byte{0x12, 0x02, 0x0A, 0x00}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			require.Error(t, err)
			assert.True(t, IsDecodeError(err, Malformed), "got %v", err)
		})
	}
}

// TestDecodeDoesNotAliasInput verifies that decoded byte fields survive reuse of the read
// buffer.
func TestDecodeDoesNotAliasInput(t *testing.T) {
	data, err := Encode(NewEnvelope(&AudioFrame{AudioData: []byte{1, 2, 3, 4}, SampleRate: 8000, Channels: 2}))
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)

	for i := range data {
		data[i] = 0
	}

	audio, ok := env.Payload.(*AudioFrame)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, audio.AudioData)
}

func TestDecodeErrorMessage(t *testing.T) {
	_, err := Decode([]byte{0x1A, 0x00})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed envelope (control)")
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "video", KindVideo.String())
	assert.Equal(t, "status", KindStatus.String())
	assert.Equal(t, "VIDEO_ON", ControlVideoOn.String())
	assert.Equal(t, "CONTROL(42)", ControlType(42).String())
	assert.Equal(t, "WARNING", StatusWarning.String())
	assert.True(t, ControlAudioOff.IsMediaToggle())
	assert.False(t, ControlPong.IsMediaToggle())
}
