package media

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/p2pcall/internal/protocol"
	"github.com/1ureka/p2pcall/internal/transport"
)

func TestSeqGen(t *testing.T) {
	s := NewSeqGen()
	assert.Zero(t, s.Last())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Next()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(800), s.Last())
	assert.Equal(t, uint64(801), s.Next())
}

func TestGrayRamp(t *testing.T) {
	f0 := GrayRamp(4, 3, 0)
	require.Len(t, f0, 12)
	assert.Equal(t, byte(0), f0[0])
	assert.Equal(t, byte(3+2), f0[len(f0)-1])

	f1 := GrayRamp(4, 3, 1)
	assert.Equal(t, byte(1), f1[0])
	assert.Equal(t, GrayRamp(4, 3, 256), f0)
}

type fakeSink struct {
	mu     sync.Mutex
	video  []uint64
	audio  []int
	failOn error
}

func (s *fakeSink) SendVideoFrame(data []byte, width, height uint32, encoding string, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil {
		return s.failOn
	}
	if int(width*height) != len(data) || encoding != protocol.EncodingRaw {
		return errors.New("bad frame")
	}
	s.video = append(s.video, n)
	return nil
}

func (s *fakeSink) SendAudioFrame(data []byte, rate, channels uint32, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil {
		return s.failOn
	}
	s.audio = append(s.audio, len(data))
	return nil
}

func TestPatternRun(t *testing.T) {
	sink := &fakeSink{}
	p := NewPattern(PatternConfig{FPS: 50, Width: 8, Height: 6, Audio: true})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx, sink))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.NotEmpty(t, sink.video)
	require.NotEmpty(t, sink.audio)
	for i, n := range sink.video {
		assert.Equal(t, uint64(i+1), n, "frame numbers are sequential")
	}
	assert.Equal(t, 640, sink.audio[0], "20 ms of 16 kHz mono 16-bit PCM")

	st := p.Stats()
	assert.Equal(t, int64(len(sink.video)), st.VideoFrames)
	assert.Zero(t, st.Dropped)
}

func TestPatternCountsDrops(t *testing.T) {
	sink := &fakeSink{failOn: transport.ErrQueueFull}
	p := NewPattern(PatternConfig{FPS: 100, Width: 2, Height: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx, sink))

	st := p.Stats()
	assert.Positive(t, st.Dropped)
	assert.Zero(t, st.VideoFrames)
}

func TestPatternStopsOnSinkError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPattern(PatternConfig{FPS: 100, Width: 2, Height: 2})

	err := p.Run(context.Background(), &fakeSink{failOn: boom})
	assert.ErrorIs(t, err, boom)
}
