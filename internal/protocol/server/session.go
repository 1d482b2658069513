package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"fleettrack/internal/core/model"
	"fleettrack/internal/protocol/gt06"

	"go.uber.org/zap"
)

var (
	// ErrDeviceNotConnected is returned to command callers when no
	// authenticated session is bound to the device. The core never
	// retries on its own.
	ErrDeviceNotConnected = errors.New("server: device not connected")

	// ErrCommandTimeout is returned when a device does not answer a
	// command before its deadline. Callers may retry.
	ErrCommandTimeout = errors.New("server: command timed out")

	errAuthRejected = errors.New("server: login rejected")
)

// Session states.
const (
	StateConnecting int32 = iota
	StateAwaitingLogin
	StateAuthenticated
	StateClosed
)

func stateName(s int32) string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingLogin:
		return "awaitingLogin"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "closed"
	}
}

// Command serials start high to stay clear of the low serials devices use
// for their own packets.
const serialSeed = 0xA000

const writeTimeout = 10 * time.Second

type pendingCommand struct {
	ch       chan commandOutcome
	deadline time.Time
}

type commandOutcome struct {
	response string
	err      error
}

// Session owns one tracker connection: its read loop, state machine and
// pending-command table. All packet handling happens on the connection's
// goroutine; SendCommand may be called from any goroutine.
type Session struct {
	srv  *TCPServer
	conn net.Conn

	decoder gt06.StreamDecoder
	state   atomic.Int32
	imei    string
	device  *model.Device

	lastActivity atomic.Int64 // unix nanos

	writeMu sync.Mutex

	pendMu  sync.Mutex
	pending map[uint16]*pendingCommand
	serial  uint16

	done      chan struct{}
	closeOnce sync.Once

	logger *zap.Logger
}

func newSession(srv *TCPServer, conn net.Conn) *Session {
	s := &Session{
		srv:     srv,
		conn:    conn,
		pending: make(map[uint16]*pendingCommand),
		serial:  serialSeed,
		done:    make(chan struct{}),
		logger:  srv.logger.With(zap.String("remoteAddr", conn.RemoteAddr().String())),
	}
	s.state.Store(StateConnecting)
	s.touch()
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() int32 {
	return s.state.Load()
}

// Device returns the bound device, nil before login.
func (s *Session) Device() *model.Device {
	return s.device
}

// Info snapshots the session for registry queries.
func (s *Session) Info() SessionInfo {
	info := SessionInfo{
		IMEI:         s.imei,
		RemoteAddr:   s.conn.RemoteAddr().String(),
		State:        stateName(s.State()),
		LastActivity: time.Unix(0, s.lastActivity.Load()).UTC(),
	}
	if s.device != nil {
		info.DeviceID = s.device.ID
	}
	return info
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// run is the connection's read loop. Packets are handled strictly in
// arrival order; waiting for command responses happens on the callers'
// goroutines, never here.
func (s *Session) run() {
	defer s.Close()

	s.state.Store(StateAwaitingLogin)
	loginDeadline := time.Now().Add(s.srv.cfg.LoginTimeout)
	go s.sweepLoop()

	buf := make([]byte, 4096)
	framingErrs := 0
	for {
		if s.State() == StateAuthenticated {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.srv.cfg.IdleTimeout))
		} else {
			_ = s.conn.SetReadDeadline(loginDeadline)
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.logger.Info("connection timed out", zap.String("state", stateName(s.State())))
			}
			return
		}
		s.touch()
		s.decoder.Write(buf[:n])

		for {
			frame, err := s.decoder.Next()
			if err != nil {
				framingErrs++
				s.logger.Warn("framing error", zap.Error(err), zap.Int("count", framingErrs))
				if framingErrs >= s.srv.cfg.MaxFramingErrors {
					s.logger.Warn("too many framing errors, closing connection")
					return
				}
				continue
			}
			if frame == nil {
				break
			}
			framingErrs = 0
			if err := s.handleFrame(frame); err != nil {
				s.logger.Warn("closing connection", zap.Error(err))
				return
			}
		}
	}
}

func (s *Session) handleFrame(f *gt06.Frame) error {
	switch f.Type {
	case gt06.MsgLogin:
		return s.handleLogin(f)

	case gt06.MsgLocation:
		if !s.authenticated() {
			s.logger.Warn("location packet before login, ignoring")
			return nil
		}
		pkt, err := gt06.ParseLocation(f)
		if err != nil {
			s.logger.Warn("undecodable location packet", zap.Error(err))
			return nil
		}
		s.srv.handler.HandleLocation(s.device, pkt)
		return s.write(gt06.BuildAck(gt06.MsgLocation, f.Serial))

	case gt06.MsgHeartbeat:
		if !s.authenticated() {
			s.logger.Warn("heartbeat before login, ignoring")
			return nil
		}
		pkt, err := gt06.ParseHeartbeat(f)
		if err != nil {
			s.logger.Warn("undecodable heartbeat packet", zap.Error(err))
			return nil
		}
		s.srv.handler.HandleHeartbeat(s.device, pkt)
		return s.write(gt06.BuildAck(gt06.MsgHeartbeat, f.Serial))

	case gt06.MsgAlarm:
		if !s.authenticated() {
			s.logger.Warn("alarm packet before login, ignoring")
			return nil
		}
		pkt, err := gt06.ParseAlarm(f)
		if err != nil {
			s.logger.Warn("undecodable alarm packet", zap.Error(err))
			return nil
		}
		s.srv.handler.HandleAlarm(s.device, pkt)
		return s.write(gt06.BuildAck(gt06.MsgAlarm, f.Serial))

	case gt06.MsgCommandResponse:
		pkt, err := gt06.ParseCommandResponse(f)
		if err != nil {
			s.logger.Warn("undecodable command response", zap.Error(err))
			return nil
		}
		s.resolvePending(f.Serial, pkt.Content)
		return nil

	default:
		// Unrecognized type: log and keep the connection open.
		s.logger.Warn("unrecognized packet type", zap.Uint8("type", f.Type))
		return nil
	}
}

func (s *Session) handleLogin(f *gt06.Frame) error {
	pkt, err := gt06.ParseLogin(f)
	if err != nil {
		return fmt.Errorf("%w: %v", errAuthRejected, err)
	}
	// A connection carries at most one identity. A re-login with the
	// same IMEI is acked; a different IMEI tears the connection down
	// so the registry never holds one session under two identities.
	if s.authenticated() && pkt.IMEI != s.imei {
		return fmt.Errorf("%w: login as %s on a connection bound to %s",
			errAuthRejected, pkt.IMEI, s.imei)
	}
	device, err := s.srv.handler.Authenticate(pkt.IMEI)
	if err != nil {
		return fmt.Errorf("%w: %v", errAuthRejected, err)
	}

	s.imei = pkt.IMEI
	s.device = device
	if evicted := s.srv.registry.bind(s); evicted != nil {
		evicted.logger.Info("session evicted by newer login", zap.String("imei", s.imei))
		evicted.Close()
	}
	s.state.Store(StateAuthenticated)
	s.logger.Info("device logged in",
		zap.String("imei", pkt.IMEI), zap.String("deviceId", device.ID))
	return s.write(gt06.BuildAck(gt06.MsgLogin, f.Serial))
}

func (s *Session) authenticated() bool {
	return s.State() == StateAuthenticated
}

// SendCommand transmits ASCII command text and waits for the response
// with the matching serial. It never blocks the session's read loop.
func (s *Session) SendCommand(ctx context.Context, text string, timeout time.Duration) (string, error) {
	if !s.authenticated() {
		return "", ErrDeviceNotConnected
	}

	s.pendMu.Lock()
	s.serial++
	serial := s.serial
	pc := &pendingCommand{
		ch:       make(chan commandOutcome, 1),
		deadline: time.Now().Add(timeout),
	}
	s.pending[serial] = pc
	s.pendMu.Unlock()

	if err := s.write(gt06.BuildCommand(text, serial)); err != nil {
		s.dropPending(serial)
		return "", ErrDeviceNotConnected
	}
	s.logger.Debug("sent command", zap.String("command", text), zap.Uint16("serial", serial))

	select {
	case out := <-pc.ch:
		return out.response, out.err
	case <-ctx.Done():
		s.dropPending(serial)
		return "", ctx.Err()
	case <-s.done:
		return "", ErrDeviceNotConnected
	}
}

// resolvePending completes at most one pending command per response
// serial; unmatched serials resolve nothing.
func (s *Session) resolvePending(serial uint16, response string) {
	s.pendMu.Lock()
	pc, ok := s.pending[serial]
	if ok {
		delete(s.pending, serial)
	}
	s.pendMu.Unlock()

	if !ok {
		s.logger.Warn("command response with no pending command", zap.Uint16("serial", serial))
		return
	}
	pc.ch <- commandOutcome{response: response}
}

func (s *Session) dropPending(serial uint16) {
	s.pendMu.Lock()
	delete(s.pending, serial)
	s.pendMu.Unlock()
}

// sweepLoop expires pending commands past their deadline. The sweep runs
// on a timer rather than only on response arrival so the table stays
// bounded even when a device goes silent.
func (s *Session) sweepLoop() {
	ticker := time.NewTicker(s.srv.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.pendMu.Lock()
			var expired []*pendingCommand
			for serial, pc := range s.pending {
				if now.After(pc.deadline) {
					delete(s.pending, serial)
					expired = append(expired, pc)
				}
			}
			s.pendMu.Unlock()
			for _, pc := range expired {
				pc.ch <- commandOutcome{err: ErrCommandTimeout}
			}
		}
	}
}

func (s *Session) failPending(err error) {
	s.pendMu.Lock()
	pending := s.pending
	s.pending = make(map[uint16]*pendingCommand)
	s.pendMu.Unlock()
	for _, pc := range pending {
		pc.ch <- commandOutcome{err: err}
	}
}

func (s *Session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := s.conn.Write(data)
	return err
}

// Close tears the session down exactly once: the connection is closed,
// every pending command fails with ErrDeviceNotConnected, and if this
// session is still the registry's live entry the device is reported
// offline. A session evicted by a newer login is no longer the live
// entry, so eviction never marks the (still connected) device offline.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(StateClosed)
		close(s.done)
		_ = s.conn.Close()
		s.failPending(ErrDeviceNotConnected)
		if s.device != nil && s.srv.registry.unbind(s) {
			s.srv.handler.DeviceOffline(s.device)
		}
		s.srv.forget(s)
		s.logger.Info("session closed", zap.String("imei", s.imei))
	})
}
