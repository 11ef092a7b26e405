// Package protocol defines the wire message model and framing for a p2pcall session.
//
// Every message on the link is an Envelope wrapping exactly one payload variant. Envelopes
// are encoded with the protobuf wire format (see codec.go) and carried in 4-byte
// length-prefixed frames (see frame.go).
package protocol

import (
	"fmt"
	"time"
)

// PayloadKind identifies the payload variant carried by an Envelope.
type PayloadKind uint8

const (
	KindVideo   PayloadKind = 1
	KindAudio   PayloadKind = 2
	KindControl PayloadKind = 3
	KindStatus  PayloadKind = 4
)

func (k PayloadKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindControl:
		return "control"
	case KindStatus:
		return "status"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Payload is the closed set of envelope contents. Only the four types in this package
// implement it.
type Payload interface {
	Kind() PayloadKind
	isPayload()
}

// Video encodings produced by the media collaborators. The core does not reject others.
const (
	EncodingJPEG = "jpeg"
	EncodingH264 = "h264"
	EncodingRaw  = "raw"
)

// VideoFrame is one encoded picture. Width and Height are trusted as given.
type VideoFrame struct {
	FrameData   []byte
	Width       uint32
	Height      uint32
	Encoding    string
	FrameNumber uint64 // diagnostics only
}

// AudioFrame is one block of PCM samples.
type AudioFrame struct {
	AudioData   []byte
	SampleRate  uint32
	Channels    uint32
	FrameNumber uint64
}

// ControlType enumerates session control signals.
type ControlType uint32

const (
	ControlConnect    ControlType = 0
	ControlDisconnect ControlType = 1
	ControlPing       ControlType = 2
	ControlPong       ControlType = 3
	ControlVideoOn    ControlType = 4
	ControlVideoOff   ControlType = 5
	ControlAudioOn    ControlType = 6
	ControlAudioOff   ControlType = 7
)

func (t ControlType) String() string {
	switch t {
	case ControlConnect:
		return "CONNECT"
	case ControlDisconnect:
		return "DISCONNECT"
	case ControlPing:
		return "PING"
	case ControlPong:
		return "PONG"
	case ControlVideoOn:
		return "VIDEO_ON"
	case ControlVideoOff:
		return "VIDEO_OFF"
	case ControlAudioOn:
		return "AUDIO_ON"
	case ControlAudioOff:
		return "AUDIO_OFF"
	default:
		return fmt.Sprintf("CONTROL(%d)", uint32(t))
	}
}

// IsMediaToggle reports whether t is one of the VIDEO_*/AUDIO_* notifications.
func (t ControlType) IsMediaToggle() bool {
	return t >= ControlVideoOn && t <= ControlAudioOff
}

// ControlMessage carries a control signal. Data is free-form; CONNECT uses it for the
// protocol marker.
type ControlMessage struct {
	Type ControlType
	Data string
}

// StatusType is the severity of a StatusMessage.
type StatusType uint32

const (
	StatusInfo    StatusType = 0
	StatusWarning StatusType = 1
	StatusError   StatusType = 2
)

func (t StatusType) String() string {
	switch t {
	case StatusInfo:
		return "INFO"
	case StatusWarning:
		return "WARNING"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("STATUS(%d)", uint32(t))
	}
}

// StatusMessage is a human-readable notice. Code 0 means unspecified.
type StatusMessage struct {
	Type    StatusType
	Message string
	Code    int32
}

func (*VideoFrame) Kind() PayloadKind     { return KindVideo }
func (*AudioFrame) Kind() PayloadKind     { return KindAudio }
func (*ControlMessage) Kind() PayloadKind { return KindControl }
func (*StatusMessage) Kind() PayloadKind  { return KindStatus }

func (*VideoFrame) isPayload()     {}
func (*AudioFrame) isPayload()     {}
func (*ControlMessage) isPayload() {}
func (*StatusMessage) isPayload()  {}

// Envelope is the top-level wire message.
type Envelope struct {
	Payload   Payload
	Timestamp int64 // unix milliseconds, advisory
}

// NewEnvelope wraps p and stamps it with the current time.
func NewEnvelope(p Payload) *Envelope {
	return &Envelope{Payload: p, Timestamp: time.Now().UnixMilli()}
}

// NewControl builds a control envelope.
func NewControl(t ControlType, data string) *Envelope {
	return NewEnvelope(&ControlMessage{Type: t, Data: data})
}
