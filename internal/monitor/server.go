package monitor

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1ureka/p2pcall/internal/transport"
	"github.com/1ureka/p2pcall/internal/util"
)

const (
	pingInterval     = 15 * time.Second
	writeWait        = 5 * time.Second
	subscriberBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the local HTTP endpoint for the monitor.
//
//	GET /ws       stream of Event as JSON text messages
//	GET /metrics  Prometheus exposition
//	GET /stats    current transport.Statistics as JSON
type Server struct {
	hub      *Hub
	stats    func() transport.Statistics
	gatherer prometheus.Gatherer
	router   chi.Router

	httpSrv  *http.Server
	listener net.Listener
}

// NewServer wires the routes. stats may be nil, in which case /stats returns 503.
func NewServer(hub *Hub, gatherer prometheus.Gatherer, stats func() transport.Statistics) *Server {
	s := &Server{hub: hub, stats: stats, gatherer: gatherer}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.handleWS)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.router = r

	return s
}

// Handler returns the router, for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr (port 0 picks a free one) and serves in the background. It
// returns the bound address.
func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", errors.Wrapf(err, "failed to start monitor on %s", addr)
	}
	s.listener = listener
	s.httpSrv = &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("monitor server stopped: %v", err)
		}
	}()

	return listener.Addr().String(), nil
}

// Close stops the HTTP server. Open WebSocket feeds end when the hub is closed.
func (s *Server) Close() error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Close()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "no session", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.stats()); err != nil {
		util.LogDebug("monitor: write /stats: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id, events := s.hub.Subscribe(subscriberBuffer)
	defer s.hub.Unsubscribe(id)
	util.LogDebug("monitor: subscriber %s connected from %s", id, r.RemoteAddr)

	// The feed is one-way; reading only detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session ended"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			util.LogDebug("monitor: subscriber %s left", id)
			return
		}
	}
}
