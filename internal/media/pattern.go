// Package media provides frame sources that feed a session. Pattern is a synthetic
// source used when no capture device is attached.
package media

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/1ureka/p2pcall/internal/protocol"
	"github.com/1ureka/p2pcall/internal/transport"
)

// Sink accepts outbound media. *transport.Connection satisfies it.
type Sink interface {
	SendVideoFrame(data []byte, width, height uint32, encoding string, frameNumber uint64) error
	SendAudioFrame(data []byte, sampleRate, channels uint32, frameNumber uint64) error
}

var _ Sink = (*transport.Connection)(nil)

// Audio format of the pattern: 16-bit little-endian PCM.
const (
	AudioSampleRate = 16000
	AudioChannels   = 1
	AudioFrameTime  = 20 * time.Millisecond
	bytesPerSample  = 2
)

// PatternConfig sizes the synthetic video.
type PatternConfig struct {
	FPS    int
	Width  int
	Height int
	Audio  bool
}

// PatternStats counts what a Pattern has produced.
type PatternStats struct {
	VideoFrames int64 // accepted by the sink
	AudioFrames int64
	Dropped     int64 // rejected with transport.ErrQueueFull
	Skipped     int64 // produced while the sink was not connected
}

// Pattern generates a moving 8-bit gray ramp and silent audio.
type Pattern struct {
	cfg      PatternConfig
	videoSeq *SeqGen
	audioSeq *SeqGen

	video   atomic.Int64
	audio   atomic.Int64
	dropped atomic.Int64
	skipped atomic.Int64
}

// NewPattern creates a pattern source.
func NewPattern(cfg PatternConfig) *Pattern {
	return &Pattern{cfg: cfg, videoSeq: NewSeqGen(), audioSeq: NewSeqGen()}
}

// Run pushes frames into sink until ctx is done. A full queue or a sink that is not yet
// connected only costs the frame. Other sink errors end the run.
func (p *Pattern) Run(ctx context.Context, sink Sink) error {
	videoTick := time.NewTicker(time.Second / time.Duration(max(p.cfg.FPS, 1)))
	defer videoTick.Stop()

	var audioC <-chan time.Time
	if p.cfg.Audio {
		audioTick := time.NewTicker(AudioFrameTime)
		defer audioTick.Stop()
		audioC = audioTick.C
	}

	silence := make([]byte, AudioSampleRate*AudioChannels*bytesPerSample*int(AudioFrameTime/time.Millisecond)/1000)

	for {
		select {
		case <-videoTick.C:
			n := p.videoSeq.Next()
			frame := GrayRamp(p.cfg.Width, p.cfg.Height, n)
			err := sink.SendVideoFrame(frame, uint32(p.cfg.Width), uint32(p.cfg.Height), protocol.EncodingRaw, n)
			if err := p.account(err, &p.video); err != nil {
				return err
			}

		case <-audioC:
			n := p.audioSeq.Next()
			err := sink.SendAudioFrame(silence, AudioSampleRate, AudioChannels, n)
			if err := p.account(err, &p.audio); err != nil {
				return err
			}

		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Pattern) account(err error, counter *atomic.Int64) error {
	switch {
	case err == nil:
		counter.Add(1)
	case errors.Is(err, transport.ErrQueueFull):
		p.dropped.Add(1)
	case errors.Is(err, transport.ErrNotConnected):
		p.skipped.Add(1)
	default:
		return err
	}
	return nil
}

// Stats returns the running counters.
func (p *Pattern) Stats() PatternStats {
	return PatternStats{
		VideoFrames: p.video.Load(),
		AudioFrames: p.audio.Load(),
		Dropped:     p.dropped.Load(),
		Skipped:     p.skipped.Load(),
	}
}

// GrayRamp renders a width×height 8-bit gray frame whose diagonal ramp shifts by one
// step per frame number.
func GrayRamp(width, height int, frameNumber uint64) []byte {
	buf := make([]byte, width*height)
	shift := int(frameNumber % 256)
	for y := 0; y < height; y++ {
		row := buf[y*width : (y+1)*width]
		for x := range row {
			row[x] = byte(x + y + shift)
		}
	}
	return buf
}
