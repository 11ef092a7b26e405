package util

import (
	"context"
	"fmt"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Traffic snapshot
// ──────────────────────────────────────────────────────────────────────────────

// Traffic is a point-in-time copy of a link's cumulative counters.
type Traffic struct {
	BytesSent        int64
	BytesReceived    int64
	MessagesSent     int64
	MessagesReceived int64
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// DefaultReportInterval is how often StartStatsReporter logs.
const DefaultReportInterval = 10 * time.Second

// StartStatsReporter launches a goroutine that logs traffic rates every interval,
// reading counters from source. Quiet intervals are skipped. It stops when ctx is
// cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration, source func() Traffic) {
	if interval <= 0 {
		interval = DefaultReportInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prev Traffic
		for {
			select {
			case <-ticker.C:
				cur := source()
				if line, ok := reportLine(prev, cur, interval); ok {
					LogInfo("%s", line)
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

// reportLine returns the stats line for one interval and whether it is worth logging.
func reportLine(prev, cur Traffic, interval time.Duration) (string, bool) {
	secs := interval.Seconds()
	outS := float64(cur.BytesSent-prev.BytesSent) / secs
	inS := float64(cur.BytesReceived-prev.BytesReceived) / secs
	outM := cur.MessagesSent - prev.MessagesSent
	inM := cur.MessagesReceived - prev.MessagesReceived

	// heartbeats alone move about 10 B/s in each direction
	if inS <= 10 && outS <= 10 && outM <= int64(secs)*2 && inM <= int64(secs)*2 {
		return "", false
	}
	return formatStats(inS, outS, inM, outM), true
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns the reporter line: byte rates plus frames moved in the interval.
func formatStats(inS, outS float64, inM, outM int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Msg: %4d↓ %4d↑",
		formatBytes(inS),
		formatBytes(outS),
		inM,
		outM,
	)
}
