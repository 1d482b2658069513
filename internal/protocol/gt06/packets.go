package gt06

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	ErrBadCoordinate = errors.New("gt06: coordinate out of range")
	ErrBodyTooShort  = errors.New("gt06: packet body too short")
)

const (
	locationBodyLen  = 18
	heartbeatBodyLen = 5
	imeiLen          = 8

	// Wire coordinates are minutes * 30000, i.e. degrees * 1800000.
	coordScale = 1800000.0

	// Server flag echoed back by the terminal in command responses.
	defaultServerFlag = 1
)

// LoginPacket is the first packet a device sends. The IMEI is carried as
// 8 raw bytes and rendered as 16 uppercase hex digits.
type LoginPacket struct {
	IMEI   string
	Serial uint16
}

func ParseLogin(f *Frame) (*LoginPacket, error) {
	if len(f.Body) < imeiLen {
		return nil, ErrBodyTooShort
	}
	return &LoginPacket{
		IMEI:   fmt.Sprintf("%X", f.Body[:imeiLen]),
		Serial: f.Serial,
	}, nil
}

// LocationPacket is a position report (0x12).
type LocationPacket struct {
	Timestamp  time.Time
	Satellites uint8
	Latitude   float64
	Longitude  float64
	Speed      float64 // km/h
	Course     float64 // degrees
	GPSValid   bool
	Serial     uint16
}

func ParseLocation(f *Frame) (*LocationPacket, error) {
	return parseLocationBody(f.Body, f.Serial)
}

func parseLocationBody(b []byte, serial uint16) (*LocationPacket, error) {
	if len(b) < locationBodyLen {
		return nil, ErrBodyTooShort
	}

	ts, err := parseTimestamp(b[:6])
	if err != nil {
		// Some firmwares send garbage datetimes; fall back to receipt time.
		ts = time.Now().UTC()
	}

	// High nibble is the GPS info length, low nibble the satellite count.
	sats := b[6] & 0x0F

	lat := float64(binary.BigEndian.Uint32(b[7:11])) / coordScale
	lon := float64(binary.BigEndian.Uint32(b[11:15])) / coordScale
	if lat > 90 || lon > 180 {
		return nil, ErrBadCoordinate
	}

	// Course/status word: bits 0-9 course, bit 10 latitude hemisphere
	// (1 = north), bit 11 longitude hemisphere (1 = west), bit 12 GPS fix.
	cs := binary.BigEndian.Uint16(b[16:18])
	if cs>>10&0x01 == 0 {
		lat = -lat
	}
	if cs>>11&0x01 == 1 {
		lon = -lon
	}

	return &LocationPacket{
		Timestamp:  ts,
		Satellites: sats,
		Latitude:   lat,
		Longitude:  lon,
		Speed:      float64(b[15]),
		Course:     float64(cs & 0x03FF),
		GPSValid:   cs>>12&0x01 == 1,
		Serial:     serial,
	}, nil
}

// Body serializes the location fields back into the 18-byte wire layout.
func (p *LocationPacket) Body() []byte {
	b := make([]byte, 0, locationBodyLen)
	b = appendTimestamp(b, p.Timestamp)
	b = append(b, 0xC0|p.Satellites&0x0F)

	lat, lon := p.Latitude, p.Longitude
	cs := uint16(p.Course) & 0x03FF
	if lat >= 0 {
		cs |= 1 << 10
	} else {
		lat = -lat
	}
	if lon < 0 {
		cs |= 1 << 11
		lon = -lon
	}
	if p.GPSValid {
		cs |= 1 << 12
	}

	b = binary.BigEndian.AppendUint32(b, uint32(lat*coordScale+0.5))
	b = binary.BigEndian.AppendUint32(b, uint32(lon*coordScale+0.5))
	b = append(b, byte(p.Speed))
	return binary.BigEndian.AppendUint16(b, cs)
}

// HeartbeatPacket is a periodic status report (0x13), independent of
// positioning. Body: terminal info, voltage level, GSM signal, alarm,
// language.
type HeartbeatPacket struct {
	TerminalInfo   byte
	Activated      bool
	ACCOn          bool
	Charging       bool
	GPSTracking    bool
	FuelCutOff     bool // oil/electricity disconnected
	VoltageLevel   uint8
	BatteryPercent int
	GSMSignal      uint8
	SignalBars     int
	AlarmBits      byte
	Serial         uint16
}

func ParseHeartbeat(f *Frame) (*HeartbeatPacket, error) {
	b := f.Body
	if len(b) < heartbeatBodyLen {
		return nil, ErrBodyTooShort
	}
	ti := b[0]
	voltage := b[1]
	gsm := b[2]

	percent, ok := batteryPercent[voltage]
	if !ok {
		percent = 50
	}
	bars := int(gsm)
	if bars > 4 {
		bars = 4
	}
	return &HeartbeatPacket{
		TerminalInfo:   ti,
		Activated:      ti&0x01 != 0,
		ACCOn:          ti&0x02 != 0,
		Charging:       ti&0x04 != 0,
		GPSTracking:    ti&0x40 != 0,
		FuelCutOff:     ti&0x80 != 0,
		VoltageLevel:   voltage,
		BatteryPercent: percent,
		GSMSignal:      gsm,
		SignalBars:     bars,
		AlarmBits:      (ti >> 3) & 0x07,
		Serial:         f.Serial,
	}, nil
}

// AlarmPacket is a location report flagged with an alarm (0x16). The body
// carries the 18 GPS bytes, a variable LBS block, then terminal info,
// voltage, GSM signal and the alarm code.
type AlarmPacket struct {
	LocationPacket
	AlarmCode      byte
	AlarmType      string
	ACCOn          bool
	BatteryPercent int
	SignalBars     int
}

func ParseAlarm(f *Frame) (*AlarmPacket, error) {
	b := f.Body
	loc, err := parseLocationBody(b, f.Serial)
	if err != nil {
		return nil, err
	}

	// LBS length byte counts itself, so the status block starts at
	// locationBodyLen + lbsLen.
	if len(b) < locationBodyLen+1 {
		return nil, ErrBodyTooShort
	}
	status := locationBodyLen + int(b[locationBodyLen])
	if len(b) < status+4 {
		return nil, ErrBodyTooShort
	}

	ti := b[status]
	voltage := b[status+1]
	gsm := b[status+2]
	code := b[status+3]

	name, ok := alarmNames[code]
	if !ok {
		name = fmt.Sprintf("unknown_%02x", code)
	}
	percent, ok := batteryPercent[voltage]
	if !ok {
		percent = 50
	}
	bars := int(gsm)
	if bars > 4 {
		bars = 4
	}
	return &AlarmPacket{
		LocationPacket: *loc,
		AlarmCode:      code,
		AlarmType:      name,
		ACCOn:          ti&0x02 != 0,
		BatteryPercent: percent,
		SignalBars:     bars,
	}, nil
}

// CommandResponsePacket is the terminal's reply to a server command
// (0x80), echoing the command content.
type CommandResponsePacket struct {
	ServerFlag uint32
	Content    string
	Serial     uint16
}

func ParseCommandResponse(f *Frame) (*CommandResponsePacket, error) {
	b := f.Body
	if len(b) < 5 {
		return nil, ErrBodyTooShort
	}
	n := int(b[0]) - 4
	if n < 0 || len(b) < 5+n {
		return nil, ErrBodyTooShort
	}
	return &CommandResponsePacket{
		ServerFlag: binary.BigEndian.Uint32(b[1:5]),
		Content:    string(b[5 : 5+n]),
		Serial:     f.Serial,
	}, nil
}

// BuildCommand wraps ASCII command text in an outbound 0x80 frame. Body:
// command length (server flag + text), 4-byte server flag, text.
func BuildCommand(text string, serial uint16) []byte {
	body := make([]byte, 0, 5+len(text))
	body = append(body, byte(4+len(text)))
	body = binary.BigEndian.AppendUint32(body, defaultServerFlag)
	body = append(body, text...)
	return Encode(&Frame{Type: MsgCommand, Body: body, Serial: serial})
}

// BuildAck builds the server acknowledgment for an inbound packet: an
// empty-body frame echoing the message type and serial.
func BuildAck(msgType byte, serial uint16) []byte {
	return Encode(&Frame{Type: msgType, Serial: serial})
}

func parseTimestamp(b []byte) (time.Time, error) {
	year := 2000 + int(b[0])
	month := int(b[1])
	day := int(b[2])
	hour := int(b[3])
	minute := int(b[4])
	second := int(b[5])

	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, errors.New("gt06: invalid timestamp values")
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

func appendTimestamp(b []byte, t time.Time) []byte {
	t = t.UTC()
	return append(b,
		byte(t.Year()-2000), byte(t.Month()), byte(t.Day()),
		byte(t.Hour()), byte(t.Minute()), byte(t.Second()))
}
