package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Protocol identity carried in the Data field of CONNECT.
const (
	ProtocolName  = "p2pcall"
	ProtocolMajor = 1
	ProtocolMinor = 0
)

// CodeIncompatibleProtocol is the StatusMessage code sent before hanging up on a peer
// whose CONNECT marker does not match.
const CodeIncompatibleProtocol int32 = 426

// ErrIncompatibleProtocol is returned by CheckMarker for a foreign or newer-major peer.
var ErrIncompatibleProtocol = errors.New("protocol: incompatible peer protocol")

// Marker returns the CONNECT data string for this build, e.g. "p2pcall/1.0".
func Marker() string {
	return fmt.Sprintf("%s/%d.%d", ProtocolName, ProtocolMajor, ProtocolMinor)
}

// CheckMarker validates the CONNECT data received from a peer. An empty marker is
// accepted so peers that leave Data unset can still talk to us; minor versions are
// ignored.
func CheckMarker(data string) error {
	if data == "" {
		return nil
	}

	name, version, ok := strings.Cut(data, "/")
	if !ok || name != ProtocolName {
		return fmt.Errorf("%w: %q", ErrIncompatibleProtocol, data)
	}

	majorStr, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil || major != ProtocolMajor {
		return fmt.Errorf("%w: %q (want major %d)", ErrIncompatibleProtocol, data, ProtocolMajor)
	}
	return nil
}
