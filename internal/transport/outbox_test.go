package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/p2pcall/internal/protocol"
)

func TestOutboxBounded(t *testing.T) {
	o := newOutbox(3)
	for i := 0; i < 3; i++ {
		require.True(t, o.push(protocol.NewControl(protocol.ControlPing, "")))
	}
	assert.False(t, o.push(protocol.NewControl(protocol.ControlPing, "")))
	assert.Equal(t, 3, o.len())

	assert.Equal(t, 3, o.drain())
	assert.Zero(t, o.len())
	assert.Zero(t, o.drain())
}

func TestOutboxFIFO(t *testing.T) {
	o := newOutbox(4)
	for _, typ := range []protocol.ControlType{protocol.ControlConnect, protocol.ControlVideoOn, protocol.ControlAudioOff} {
		require.True(t, o.push(protocol.NewControl(typ, "")))
	}

	var got []protocol.ControlType
	for o.len() > 0 {
		env := <-o.ch
		got = append(got, env.Payload.(*protocol.ControlMessage).Type)
	}
	assert.Equal(t, []protocol.ControlType{protocol.ControlConnect, protocol.ControlVideoOn, protocol.ControlAudioOff}, got)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "listening", StateListening.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "state(9)", State(9).String())

	text, err := StateConnected.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "connected", string(text))

	var s State
	require.NoError(t, s.UnmarshalText(text))
	assert.Equal(t, StateConnected, s)
	assert.Error(t, s.UnmarshalText([]byte("bogus")))

	assert.True(t, StateConnecting.active())
	assert.False(t, StateIdle.active())
	assert.False(t, StateClosed.active())
}

func TestOptionsDefaults(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, DefaultHeartbeatInterval, o.HeartbeatInterval)
	assert.Equal(t, DefaultHeartbeatTimeout, o.HeartbeatTimeout)
	assert.Equal(t, DefaultQueueCapacity, o.QueueCapacity)
	assert.Equal(t, uint32(protocol.DefaultMaxFrameSize), o.MaxFrameSize)
	assert.NotNil(t, o.Observer)
}

func TestOptionsRaiseShortHeartbeatTimeout(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		timeout  time.Duration
		want     time.Duration
	}{
		{"below interval", 500 * time.Millisecond, 200 * time.Millisecond, 5 * time.Second},
		{"equal to interval", time.Second, time.Second, 10 * time.Second},
		{"default below custom interval", 20 * time.Second, 0, 200 * time.Second},
		{"valid kept", 100 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Options{HeartbeatInterval: tt.interval, HeartbeatTimeout: tt.timeout}.withDefaults()
			assert.Equal(t, tt.interval, o.HeartbeatInterval)
			assert.Equal(t, tt.want, o.HeartbeatTimeout)
			assert.Greater(t, o.HeartbeatTimeout, o.HeartbeatInterval)
		})
	}
}
