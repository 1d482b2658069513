package dispatch

import (
	"context"
	"time"

	"fleettrack/internal/protocol/server"

	"go.uber.org/zap"
)

// SessionFinder resolves a device ID to its live tracker session.
// *server.Registry satisfies it.
type SessionFinder interface {
	Find(deviceID string) *server.Session
}

// Dispatcher routes commands to connected devices and waits for their
// answers. It holds no queue: a command for an offline device fails
// immediately with server.ErrDeviceNotConnected.
type Dispatcher struct {
	sessions SessionFinder
	timeout  time.Duration
	logger   *zap.Logger
}

func NewDispatcher(sessions SessionFinder, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{sessions: sessions, timeout: timeout, logger: logger}
}

// Send encodes the command and delivers it to the device, returning the
// device's response text.
func (d *Dispatcher) Send(ctx context.Context, deviceID string, cmd Command) (string, error) {
	text, err := Encode(cmd)
	if err != nil {
		return "", err
	}
	return d.SendRaw(ctx, deviceID, text)
}

// SendRaw delivers pre-encoded command text to the device.
func (d *Dispatcher) SendRaw(ctx context.Context, deviceID string, text string) (string, error) {
	if err := validateRaw(text); err != nil {
		return "", err
	}
	sess := d.sessions.Find(deviceID)
	if sess == nil {
		return "", server.ErrDeviceNotConnected
	}

	response, err := sess.SendCommand(ctx, text, d.timeout)
	if err != nil {
		d.logger.Warn("command failed",
			zap.String("deviceId", deviceID),
			zap.String("command", text),
			zap.Error(err))
		return "", err
	}
	d.logger.Info("command answered",
		zap.String("deviceId", deviceID),
		zap.String("command", text))
	return response, nil
}
