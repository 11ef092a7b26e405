package protocol

import (
	"errors"
	"fmt"
)

// DecodeErrorKind classifies why an envelope could not be decoded.
type DecodeErrorKind uint8

const (
	// UnknownPayloadType means the envelope carried a field that is none of the four
	// payload variants.
	UnknownPayloadType DecodeErrorKind = iota + 1
	// Malformed means the bytes did not have the expected shape: bad wire types,
	// truncated values, missing or duplicated fields.
	Malformed
)

func (k DecodeErrorKind) String() string {
	switch k {
	case UnknownPayloadType:
		return "unknown payload type"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// DecodeError is returned by Decode. It is always fatal to the connection that read it.
type DecodeError struct {
	Kind  DecodeErrorKind
	Field string // dotted path of the offending field, if known
	Err   error
}

func (e *DecodeError) Error() string {
	msg := "protocol: " + e.Kind.String() + " envelope"
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is a *DecodeError of the given kind.
func IsDecodeError(err error, kind DecodeErrorKind) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Kind == kind
}

func malformed(field string, format string, args ...any) error {
	return &DecodeError{Kind: Malformed, Field: field, Err: fmt.Errorf(format, args...)}
}

func malformedErr(field string, err error) error {
	return &DecodeError{Kind: Malformed, Field: field, Err: err}
}
