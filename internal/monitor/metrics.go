package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/1ureka/p2pcall/internal/protocol"
	"github.com/1ureka/p2pcall/internal/transport"
)

const namespace = "p2pcall"

var allStates = []transport.State{
	transport.StateIdle,
	transport.StateListening,
	transport.StateConnecting,
	transport.StateConnected,
	transport.StateClosed,
}

// Metrics holds the Prometheus collectors for one session. It implements
// transport.Observer.
type Metrics struct {
	framesSent     *prometheus.CounterVec
	framesReceived *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	bytesSent      prometheus.Counter
	bytesReceived  prometheus.Counter
	state          *prometheus.GaugeVec
}

var _ transport.Observer = (*Metrics)(nil)

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the peer, by payload kind",
		}, []string{"kind"}),

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames decoded from the peer, by payload kind",
		}, []string{"kind"}),

		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound frames rejected because the send queue was full",
		}, []string{"kind"}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to the peer, frame headers included",
		}),

		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes read from the peer, frame headers included",
		}),

		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise",
		}, []string{"state"}),
	}

	m.StateChanged(transport.StateIdle)
	return m
}

func (m *Metrics) FrameSent(kind protocol.PayloadKind, bytes int) {
	m.framesSent.WithLabelValues(kind.String()).Inc()
	m.bytesSent.Add(float64(bytes))
}

func (m *Metrics) FrameReceived(kind protocol.PayloadKind, bytes int) {
	m.framesReceived.WithLabelValues(kind.String()).Inc()
	m.bytesReceived.Add(float64(bytes))
}

func (m *Metrics) FrameDropped(kind protocol.PayloadKind) {
	m.framesDropped.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) StateChanged(state transport.State) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}
