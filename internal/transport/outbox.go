package transport

import "github.com/1ureka/p2pcall/internal/protocol"

// outbox is the bounded FIFO between the application and the send loop. Producers never
// block: a full outbox rejects the envelope.
type outbox struct {
	ch chan *protocol.Envelope
}

func newOutbox(capacity int) *outbox {
	return &outbox{ch: make(chan *protocol.Envelope, capacity)}
}

// push enqueues env, reporting false when the outbox is full.
func (o *outbox) push(env *protocol.Envelope) bool {
	select {
	case o.ch <- env:
		return true
	default:
		return false
	}
}

// drain discards everything currently queued and returns how many envelopes were dropped.
func (o *outbox) drain() int {
	n := 0
	for {
		select {
		case <-o.ch:
			n++
		default:
			return n
		}
	}
}

func (o *outbox) len() int { return len(o.ch) }
