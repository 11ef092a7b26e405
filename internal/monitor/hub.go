// Package monitor exposes a running session to local observers: a WebSocket event feed
// for an external UI, Prometheus metrics and a JSON statistics endpoint.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventKind names what an Event describes.
type EventKind string

const (
	EventState   EventKind = "state"   // Data: StateEvent
	EventVideo   EventKind = "video"   // Data: MediaEvent
	EventAudio   EventKind = "audio"   // Data: MediaEvent
	EventControl EventKind = "control" // Data: ControlEvent
	EventStatus  EventKind = "status"  // Data: StatusEvent
	EventStats   EventKind = "stats"   // Data: transport.Statistics
)

// Event is one item of the monitor feed.
type Event struct {
	Kind EventKind `json:"kind"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(kind EventKind, data any) Event {
	return Event{Kind: kind, Time: time.Now(), Data: data}
}

// StateEvent reports a lifecycle transition.
type StateEvent struct {
	State  string `json:"state"`
	Remote string `json:"remote,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// MediaEvent summarizes a received frame; the payload itself is not forwarded.
type MediaEvent struct {
	FrameNumber uint64 `json:"frame_number"`
	Bytes       int    `json:"bytes"`
	Width       uint32 `json:"width,omitempty"`
	Height      uint32 `json:"height,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
	SampleRate  uint32 `json:"sample_rate,omitempty"`
	Channels    uint32 `json:"channels,omitempty"`
}

// ControlEvent reports a peer media toggle.
type ControlEvent struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

// StatusEvent relays a peer status message.
type StatusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int32  `json:"code"`
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber whose buffer
// is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]chan Event
	closed  bool
	dropped atomic.Int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]chan Event)}
}

// Subscribe registers a subscriber with the given buffer size. The channel is closed on
// Unsubscribe or Close.
func (h *Hub) Subscribe(buffer int) (uuid.UUID, <-chan Event) {
	if buffer <= 0 {
		buffer = 1
	}
	id := uuid.New()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish delivers e to every subscriber with room for it.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// Close drops every subscriber. Later Subscribe calls get an already-closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
