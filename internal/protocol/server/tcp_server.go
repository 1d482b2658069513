package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"fleettrack/internal/core/model"
	"fleettrack/internal/protocol/gt06"

	"go.uber.org/zap"
)

// Config controls the TCP listener and per-session timeouts.
type Config struct {
	Addr             string
	LoginTimeout     time.Duration
	IdleTimeout      time.Duration
	CommandTimeout   time.Duration
	SweepInterval    time.Duration
	MaxFramingErrors int
}

// DefaultConfig returns timeouts suitable for GT06 trackers, which
// heartbeat every few minutes at their slowest.
func DefaultConfig() Config {
	return Config{
		Addr:             ":5023",
		LoginTimeout:     30 * time.Second,
		IdleTimeout:      5 * time.Minute,
		CommandTimeout:   30 * time.Second,
		SweepInterval:    5 * time.Second,
		MaxFramingErrors: 5,
	}
}

// Handler receives decoded traffic from authenticated sessions. All
// callbacks run on the owning session's goroutine.
type Handler interface {
	Authenticate(imei string) (*model.Device, error)
	HandleLocation(device *model.Device, pkt *gt06.LocationPacket)
	HandleAlarm(device *model.Device, pkt *gt06.AlarmPacket)
	HandleHeartbeat(device *model.Device, pkt *gt06.HeartbeatPacket)
	DeviceOffline(device *model.Device)
}

// TCPServer accepts tracker connections and runs one Session per
// connection.
type TCPServer struct {
	cfg      Config
	handler  Handler
	registry *Registry
	logger   *zap.Logger

	listener net.Listener

	mu       sync.Mutex
	sessions map[*Session]struct{}
	stopped  bool
	wg       sync.WaitGroup
}

func NewTCPServer(cfg Config, handler Handler, logger *zap.Logger) *TCPServer {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = def.LoginTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.MaxFramingErrors <= 0 {
		cfg.MaxFramingErrors = def.MaxFramingErrors
	}
	return &TCPServer{
		cfg:      cfg,
		handler:  handler,
		registry: NewRegistry(),
		logger:   logger,
		sessions: make(map[*Session]struct{}),
	}
}

// Registry exposes the session registry for command dispatch and
// presence queries.
func (s *TCPServer) Registry() *Registry {
	return s.registry
}

// CommandTimeout is the default per-command response deadline.
func (s *TCPServer) CommandTimeout() time.Duration {
	return s.cfg.CommandTimeout
}

// Start begins listening and accepting connections in the background.
func (s *TCPServer) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener
	s.logger.Info("tracker server listening", zap.String("addr", s.cfg.Addr))

	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

func (s *TCPServer) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		s.ServeConn(conn)
	}
}

// ServeConn runs a session for a single connection. Split out from the
// accept loop so tests can drive sessions over net.Pipe.
func (s *TCPServer) ServeConn(conn net.Conn) {
	sess := newSession(s, conn)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.run()
	}()
}

func (s *TCPServer) forget(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// Stop closes the listener and every live session, then waits for all
// session goroutines to exit.
func (s *TCPServer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	live := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	if s.listener != nil {
		_ = s.listener.Close()
	}
	for _, sess := range live {
		sess.Close()
	}
	s.wg.Wait()
	s.logger.Info("tracker server stopped")
}
