package dispatch

import (
	"errors"
	"fmt"
)

// Command kinds understood by GT06-family trackers.
type Kind int

const (
	// QueryStatus asks the device for battery, GSM and GPS state.
	QueryStatus Kind = iota
	// QueryLocation asks the device for an immediate position report.
	QueryLocation
	// AlarmToggle arms or disarms one of the named alarms.
	AlarmToggle
	// FuelCut relays an engine-stop request through the device.
	FuelCut
	// FuelRestore re-enables the engine after a FuelCut.
	FuelRestore
	// Raw sends operator-supplied command text verbatim.
	Raw
)

// Alarm names accepted by AlarmToggle.
const (
	AlarmSOS        = "sos"
	AlarmIgnition   = "ignition"
	AlarmVibration  = "vibration"
	AlarmLowBattery = "lowBattery"
	AlarmMovement   = "movement"
	AlarmOverspeed  = "overspeed"
)

var (
	ErrUnknownKind    = errors.New("dispatch: unknown command kind")
	ErrUnknownAlarm   = errors.New("dispatch: unknown alarm name")
	ErrBadAlarmParams = errors.New("dispatch: invalid alarm parameters")
	ErrBadRawCommand  = errors.New("dispatch: invalid raw command text")
)

// The device-side password GT06 firmware ships with.
const devicePassword = "123456"

// Longest ASCII command body a single frame can carry: max frame body is
// 255-byte declared length minus serial and crc, minus the 5-byte command
// header (length byte + server flag).
const maxRawLen = 251

// AlarmParams carries the per-alarm tuning AlarmToggle needs. Only the
// fields the named alarm uses are read.
type AlarmParams struct {
	Name         string
	Enabled      bool
	Level        int // SOS alert class: 1 GPRS, 2 +SMS, 3 +call
	RadiusMeters int // movement fence radius
	SpeedKmh     int // overspeed threshold
}

// Command is one outbound instruction for a tracker.
type Command struct {
	Kind  Kind
	Alarm AlarmParams
	Raw   string
}

// Encode renders the command into the ASCII text GT06 firmware accepts.
func Encode(cmd Command) (string, error) {
	switch cmd.Kind {
	case QueryStatus:
		return "STATUS#", nil
	case QueryLocation:
		return "DWXX#", nil
	case FuelCut:
		return "stop" + devicePassword, nil
	case FuelRestore:
		return "resume" + devicePassword, nil
	case AlarmToggle:
		return encodeAlarm(cmd.Alarm)
	case Raw:
		if err := validateRaw(cmd.Raw); err != nil {
			return "", err
		}
		return cmd.Raw, nil
	default:
		return "", ErrUnknownKind
	}
}

func encodeAlarm(p AlarmParams) (string, error) {
	switch p.Name {
	case AlarmSOS:
		// Class 0 disables; 1 alerts over GPRS, 2 adds SMS, 3 adds a call.
		if !p.Enabled {
			return "KC" + devicePassword + " 0", nil
		}
		if p.Level < 1 || p.Level > 3 {
			return "", fmt.Errorf("%w: sos alert class %d out of range 1..3", ErrBadAlarmParams, p.Level)
		}
		return fmt.Sprintf("KC%s %d", devicePassword, p.Level), nil

	case AlarmIgnition:
		if p.Enabled {
			return "acc" + devicePassword, nil
		}
		return "noacc" + devicePassword, nil

	case AlarmVibration:
		if p.Enabled {
			return "vibrate" + devicePassword + " 1", nil
		}
		return "vibrate" + devicePassword + " 0", nil

	case AlarmLowBattery:
		if p.Enabled {
			return "lowbattery" + devicePassword + " on", nil
		}
		return "lowbattery" + devicePassword + " off", nil

	case AlarmMovement:
		if !p.Enabled {
			return "nomove" + devicePassword, nil
		}
		if p.RadiusMeters < 1 || p.RadiusMeters > 9999 {
			return "", fmt.Errorf("%w: movement radius %dm out of range 1..9999", ErrBadAlarmParams, p.RadiusMeters)
		}
		return fmt.Sprintf("move%s %04d", devicePassword, p.RadiusMeters), nil

	case AlarmOverspeed:
		if !p.Enabled {
			return "nospeed" + devicePassword, nil
		}
		if p.SpeedKmh < 1 || p.SpeedKmh > 999 {
			return "", fmt.Errorf("%w: overspeed threshold %dkm/h out of range 1..999", ErrBadAlarmParams, p.SpeedKmh)
		}
		return fmt.Sprintf("speed%s %03d", devicePassword, p.SpeedKmh), nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlarm, p.Name)
	}
}

func validateRaw(text string) error {
	if text == "" {
		return fmt.Errorf("%w: empty", ErrBadRawCommand)
	}
	if len(text) > maxRawLen {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrBadRawCommand, len(text), maxRawLen)
	}
	for i := 0; i < len(text); i++ {
		if text[i] < 0x20 || text[i] > 0x7E {
			return fmt.Errorf("%w: non-printable byte at offset %d", ErrBadRawCommand, i)
		}
	}
	return nil
}
