// Package util provides shared logging, statistics and identification helpers.
package util

import (
	"fmt"
	"hash/fnv"
	"net"
)

// ConnTag computes a 4-byte hash from a TCP connection's 4-tuple (local and remote
// address). It only identifies the link in logs and the monitor feed.
func ConnTag(conn net.Conn) uint32 {
	return AddrTag(conn.LocalAddr(), conn.RemoteAddr())
}

// AddrTag is ConnTag for callers that only hold the two addresses. A nil address
// hashes as the empty string.
func AddrTag(local, remote net.Addr) uint32 {
	h := fnv.New32a()
	if local != nil {
		h.Write([]byte(local.String()))
	}
	if remote != nil {
		h.Write([]byte(remote.String()))
	}
	return h.Sum32()
}

// FormatTag renders a tag the way log lines show it.
func FormatTag(tag uint32) string {
	return fmt.Sprintf("[%08x]", tag)
}
