// Package app contains the top-level orchestration for host and client roles.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/1ureka/p2pcall/internal/config"
	"github.com/1ureka/p2pcall/internal/media"
	"github.com/1ureka/p2pcall/internal/monitor"
	"github.com/1ureka/p2pcall/internal/protocol"
	"github.com/1ureka/p2pcall/internal/transport"
	"github.com/1ureka/p2pcall/internal/util"
)

// statsFeedInterval is how often a stats event is pushed to monitor subscribers.
const statsFeedInterval = time.Second

// Session bundles one Connection with everything that observes or feeds it.
type Session struct {
	cfg      *config.Config
	conn     *transport.Connection
	hub      *monitor.Hub
	registry *prometheus.Registry
	server   *monitor.Server
	pattern  *media.Pattern

	// MonitorAddr is the bound monitor address once Run has started it.
	MonitorAddr string
}

// NewSession builds an Idle session from cfg.
func NewSession(cfg *config.Config) *Session {
	s := &Session{
		cfg:      cfg,
		hub:      monitor.NewHub(),
		registry: prometheus.NewRegistry(),
	}

	opts := cfg.TransportOptions()
	opts.Observer = monitor.NewMetrics(s.registry)
	s.conn = transport.NewConnection(opts, s.handlers())

	s.server = monitor.NewServer(s.hub, s.registry, s.conn.Statistics)
	if cfg.Pattern {
		s.pattern = media.NewPattern(media.PatternConfig{
			FPS:    cfg.VideoFPS,
			Width:  cfg.VideoWidth,
			Height: cfg.VideoHeight,
			Audio:  true,
		})
	}
	return s
}

// Connection exposes the underlying transport.
func (s *Session) Connection() *transport.Connection {
	return s.conn
}

// Hub exposes the monitor event hub.
func (s *Session) Hub() *monitor.Hub {
	return s.hub
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// RunHost listens on cfg.Port and serves one peer until ctx is cancelled or the peer
// leaves.
func RunHost(ctx context.Context, cfg *config.Config) error {
	s := NewSession(cfg)
	return s.Run(ctx, func(context.Context) error { return s.conn.Host(cfg.Port) })
}

// RunClient dials cfg.Host:cfg.Port and runs the call until ctx is cancelled or the
// host leaves.
func RunClient(ctx context.Context, cfg *config.Config) error {
	s := NewSession(cfg)
	return s.Run(ctx, func(ctx context.Context) error {
		return s.conn.ConnectContext(ctx, cfg.Host, cfg.Port)
	})
}

// Run starts the monitor, calls start to bring the connection up and then blocks until
// the session ends. A peer hanging up is a normal end and returns nil.
func (s *Session) Run(ctx context.Context, start func(context.Context) error) error {
	defer s.hub.Close()

	if s.cfg.MonitorAddr != "" {
		addr, err := s.server.Start(s.cfg.MonitorAddr)
		if err != nil {
			return err
		}
		defer s.server.Close()
		s.MonitorAddr = addr
		util.LogInfo("monitor available at http://%s (/ws, /stats, /metrics)", addr)
	}

	if err := start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	util.StartStatsReporter(ctx, util.DefaultReportInterval, s.conn.Traffic)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.conn.Done():
		}
		_ = s.conn.Disconnect()
		cancel()
		return nil
	})

	if s.pattern != nil {
		g.Go(func() error { return s.pattern.Run(gctx, s.conn) })
	}

	if s.cfg.MonitorAddr != "" {
		g.Go(func() error {
			s.feedStats(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = s.conn.Disconnect()
		return err
	}

	if s.pattern != nil {
		st := s.pattern.Stats()
		util.LogDebug("pattern sent %d video / %d audio frames, %d dropped",
			st.VideoFrames, st.AudioFrames, st.Dropped)
	}

	err := s.conn.Err()
	if errors.Is(err, transport.ErrPeerDisconnected) {
		return nil
	}
	return err
}

func (s *Session) feedStats(ctx context.Context) {
	ticker := time.NewTicker(statsFeedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.hub.Publish(monitor.NewEvent(monitor.EventStats, s.conn.Statistics()))
		case <-ctx.Done():
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Session) handlers() transport.Handlers {
	return transport.Handlers{
		OnConnect:    s.onConnect,
		OnDisconnect: s.onDisconnect,
		OnVideoFrame: func(f protocol.VideoFrame) {
			s.hub.Publish(monitor.NewEvent(monitor.EventVideo, monitor.MediaEvent{
				FrameNumber: f.FrameNumber,
				Bytes:       len(f.FrameData),
				Width:       f.Width,
				Height:      f.Height,
				Encoding:    f.Encoding,
			}))
		},
		OnAudioFrame: func(f protocol.AudioFrame) {
			s.hub.Publish(monitor.NewEvent(monitor.EventAudio, monitor.MediaEvent{
				FrameNumber: f.FrameNumber,
				Bytes:       len(f.AudioData),
				SampleRate:  f.SampleRate,
				Channels:    f.Channels,
			}))
		},
		OnControl: func(t protocol.ControlType, data string) {
			util.LogInfo("peer signalled %s", t)
			s.hub.Publish(monitor.NewEvent(monitor.EventControl, monitor.ControlEvent{
				Type: t.String(),
				Data: data,
			}))
		},
		OnStatus: func(m protocol.StatusMessage) {
			switch m.Type {
			case protocol.StatusError:
				util.LogError("peer error %d: %s", m.Code, m.Message)
			case protocol.StatusWarning:
				util.LogWarning("peer warning: %s", m.Message)
			default:
				util.LogInfo("peer: %s", m.Message)
			}
			s.hub.Publish(monitor.NewEvent(monitor.EventStatus, monitor.StatusEvent{
				Type:    m.Type.String(),
				Message: m.Message,
				Code:    m.Code,
			}))
		},
	}
}

func (s *Session) onConnect() {
	st := s.conn.Statistics()
	util.LogSuccess("call established with %s", st.RemoteAddress)
	s.hub.Publish(monitor.NewEvent(monitor.EventState, monitor.StateEvent{
		State:  st.State.String(),
		Remote: st.RemoteAddress,
	}))

	_ = s.conn.SetVideoState(s.pattern != nil)
	_ = s.conn.SetAudioState(s.pattern != nil)
	if err := s.conn.SendStatus(protocol.StatusInfo, string(s.cfg.Role)+" ready", 0); err != nil {
		util.LogDebug("ready status not sent: %v", err)
	}
}

func (s *Session) onDisconnect() {
	ev := monitor.StateEvent{State: transport.StateClosed.String()}
	if err := s.conn.Err(); err != nil {
		ev.Reason = err.Error()
	}
	s.hub.Publish(monitor.NewEvent(monitor.EventState, ev))
}
