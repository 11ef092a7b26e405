package protocol

import (
	"errors"
	"math"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope field numbers. 1-4 form the payload oneof.
const (
	fieldVideo     protowire.Number = 1
	fieldAudio     protowire.Number = 2
	fieldControl   protowire.Number = 3
	fieldStatus    protowire.Number = 4
	fieldTimestamp protowire.Number = 8
)

var errNilPayload = errors.New("protocol: envelope has no payload")

// Encode serializes an Envelope into protobuf wire format. Every field is written, zero
// values included, so the decoder can insist on required fields.
func Encode(env *Envelope) ([]byte, error) {
	if env == nil || env.Payload == nil {
		return nil, errNilPayload
	}

	var (
		num   protowire.Number
		inner []byte
	)
	switch p := env.Payload.(type) {
	case *VideoFrame:
		num, inner = fieldVideo, appendVideo(make([]byte, 0, len(p.FrameData)+32+len(p.Encoding)), p)
	case *AudioFrame:
		num, inner = fieldAudio, appendAudio(make([]byte, 0, len(p.AudioData)+24), p)
	case *ControlMessage:
		num, inner = fieldControl, appendControl(make([]byte, 0, len(p.Data)+8), p)
	case *StatusMessage:
		num, inner = fieldStatus, appendStatus(make([]byte, 0, len(p.Message)+16), p)
	default:
		return nil, errNilPayload
	}

	buf := make([]byte, 0, len(inner)+protowire.SizeBytes(len(inner))+12)
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	buf = protowire.AppendBytes(buf, inner)
	buf = protowire.AppendTag(buf, fieldTimestamp, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(env.Timestamp))
	return buf, nil
}

// Size returns the length Encode would produce for env, without encoding it. It is 0
// for an envelope Encode rejects.
func Size(env *Envelope) int {
	if env == nil || env.Payload == nil {
		return 0
	}

	var (
		num   protowire.Number
		inner int
	)
	switch p := env.Payload.(type) {
	case *VideoFrame:
		num = fieldVideo
		inner = bytesField(1, len(p.FrameData)) +
			varintField(2, uint64(p.Width)) +
			varintField(3, uint64(p.Height)) +
			bytesField(4, len(p.Encoding)) +
			varintField(5, p.FrameNumber)
	case *AudioFrame:
		num = fieldAudio
		inner = bytesField(1, len(p.AudioData)) +
			varintField(2, uint64(p.SampleRate)) +
			varintField(3, uint64(p.Channels)) +
			varintField(4, p.FrameNumber)
	case *ControlMessage:
		num = fieldControl
		inner = varintField(1, uint64(p.Type)) + bytesField(2, len(p.Data))
	case *StatusMessage:
		num = fieldStatus
		inner = varintField(1, uint64(p.Type)) +
			bytesField(2, len(p.Message)) +
			varintField(3, protowire.EncodeZigZag(int64(p.Code)))
	default:
		return 0
	}

	return bytesField(num, inner) + varintField(fieldTimestamp, uint64(env.Timestamp))
}

func bytesField(num protowire.Number, n int) int {
	return protowire.SizeTag(num) + protowire.SizeBytes(n)
}

func varintField(num protowire.Number, v uint64) int {
	return protowire.SizeTag(num) + protowire.SizeVarint(v)
}

func appendVideo(b []byte, v *VideoFrame) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, v.FrameData)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Width))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Height))
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendString(b, v.Encoding)
	b = protowire.AppendTag(b, 5, protowire.VarintType)
	b = protowire.AppendVarint(b, v.FrameNumber)
	return b
}

func appendAudio(b []byte, a *AudioFrame) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, a.AudioData)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.SampleRate))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Channels))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, a.FrameNumber)
	return b
}

func appendControl(b []byte, c *ControlMessage) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Type))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, c.Data)
	return b
}

func appendStatus(b []byte, s *StatusMessage) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Type))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, s.Message)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(s.Code)))
	return b
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Decode parses an Envelope. Any failure is a *DecodeError.
func Decode(data []byte) (*Envelope, error) {
	env := &Envelope{}
	b := data

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, malformedErr("envelope", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldVideo, fieldAudio, fieldControl, fieldStatus:
			if typ != protowire.BytesType {
				return nil, malformed("envelope.payload", "wire type %d", typ)
			}
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, malformedErr("envelope.payload", protowire.ParseError(n))
			}
			b = b[n:]

			if env.Payload != nil {
				return nil, malformed("envelope.payload", "more than one payload")
			}
			p, err := decodePayload(num, raw)
			if err != nil {
				return nil, err
			}
			env.Payload = p

		case fieldTimestamp:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, malformedErr("envelope.timestamp", err)
			}
			b = b[n:]
			env.Timestamp = int64(v)

		default:
			return nil, &DecodeError{Kind: UnknownPayloadType, Field: fieldName(num)}
		}
	}

	if env.Payload == nil {
		return nil, malformed("envelope.payload", "missing")
	}
	return env, nil
}

func decodePayload(num protowire.Number, raw []byte) (Payload, error) {
	switch num {
	case fieldVideo:
		return decodeVideo(raw)
	case fieldAudio:
		return decodeAudio(raw)
	case fieldControl:
		return decodeControl(raw)
	default:
		return decodeStatus(raw)
	}
}

func decodeVideo(b []byte) (*VideoFrame, error) {
	v := &VideoFrame{}
	err := walkFields("video", b, 5, 0b11111, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			data, n, err := consumeBytes(b, typ)
			v.FrameData = data
			return n, err
		case 2:
			x, n, err := consumeUint32(b, typ)
			v.Width = x
			return n, err
		case 3:
			x, n, err := consumeUint32(b, typ)
			v.Height = x
			return n, err
		case 4:
			data, n, err := consumeBytes(b, typ)
			v.Encoding = string(data)
			return n, err
		default:
			x, n, err := consumeVarint(b, typ)
			v.FrameNumber = x
			return n, err
		}
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func decodeAudio(b []byte) (*AudioFrame, error) {
	a := &AudioFrame{}
	err := walkFields("audio", b, 4, 0b1111, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			data, n, err := consumeBytes(b, typ)
			a.AudioData = data
			return n, err
		case 2:
			x, n, err := consumeUint32(b, typ)
			a.SampleRate = x
			return n, err
		case 3:
			x, n, err := consumeUint32(b, typ)
			a.Channels = x
			return n, err
		default:
			x, n, err := consumeVarint(b, typ)
			a.FrameNumber = x
			return n, err
		}
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func decodeControl(b []byte) (*ControlMessage, error) {
	c := &ControlMessage{}
	err := walkFields("control", b, 2, 0b01, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			x, n, err := consumeUint32(b, typ)
			c.Type = ControlType(x)
			return n, err
		}
		data, n, err := consumeBytes(b, typ)
		c.Data = string(data)
		return n, err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func decodeStatus(b []byte) (*StatusMessage, error) {
	s := &StatusMessage{}
	err := walkFields("status", b, 3, 0b011, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			x, n, err := consumeUint32(b, typ)
			s.Type = StatusType(x)
			return n, err
		case 2:
			data, n, err := consumeBytes(b, typ)
			s.Message = string(data)
			return n, err
		default:
			x, n, err := consumeVarint(b, typ)
			if err != nil {
				return n, err
			}
			code := protowire.DecodeZigZag(x)
			if code < math.MinInt32 || code > math.MaxInt32 {
				return n, errors.New("code out of range")
			}
			s.Code = int32(code)
			return n, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// walkFields iterates the fields of a payload message. Field numbers must lie in
// [1, maxField] and appear at most once; every bit set in required (bit i-1 for field i)
// must be seen.
func walkFields(
	name string,
	b []byte,
	maxField protowire.Number,
	required uint32,
	fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error),
) error {
	var seen uint32

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformedErr(name, protowire.ParseError(n))
		}
		b = b[n:]

		if num < 1 || num > maxField {
			return malformed(name, "unexpected field %d", num)
		}
		bit := uint32(1) << (num - 1)
		if seen&bit != 0 {
			return malformed(name, "duplicate field %d", num)
		}
		seen |= bit

		n, err := fn(num, typ, b)
		if err != nil {
			return malformedErr(name, err)
		}
		b = b[n:]
	}

	if missing := required &^ seen; missing != 0 {
		return malformed(name, "missing required fields (mask %#b)", missing)
	}
	return nil
}

var errWireType = errors.New("unexpected wire type")

func consumeVarint(b []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, errWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeUint32(b []byte, typ protowire.Type) (uint32, int, error) {
	v, n, err := consumeVarint(b, typ)
	if err != nil {
		return 0, 0, err
	}
	if v > math.MaxUint32 {
		return 0, 0, errors.New("value overflows uint32")
	}
	return uint32(v), n, nil
}

// consumeBytes returns a copy so decoded payloads never alias the frame buffer.
func consumeBytes(b []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, n, nil
}

func fieldName(num protowire.Number) string {
	return "field " + strconv.Itoa(int(num))
}
