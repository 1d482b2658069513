package gt06

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogin(t *testing.T) {
	f := &Frame{
		Type:   MsgLogin,
		Body:   []byte{0x03, 0x55, 0x95, 0x10, 0x94, 0x10, 0x73, 0x89},
		Serial: 0x0005,
	}
	p, err := ParseLogin(f)
	require.NoError(t, err)
	assert.Equal(t, "0355951094107389", p.IMEI)
	assert.Equal(t, uint16(0x0005), p.Serial)

	_, err = ParseLogin(&Frame{Type: MsgLogin, Body: []byte{0x01}})
	assert.ErrorIs(t, err, ErrBodyTooShort)
}

func locationBody(t *testing.T, lat, lon float64, speed byte, course uint16, sats uint8, valid bool) []byte {
	t.Helper()
	p := &LocationPacket{
		Timestamp:  time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC),
		Satellites: sats,
		Latitude:   lat,
		Longitude:  lon,
		Speed:      float64(speed),
		Course:     float64(course),
		GPSValid:   valid,
	}
	return p.Body()
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		valid    bool
	}{
		{"north east", 12.576133, 91.033833, true},
		{"south west", -33.868820, -151.209290, false},
		{"south east", -6.2, 106.816666, true},
		{"equator", 0.0, 18.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := locationBody(t, tt.lat, tt.lon, 40, 324, 11, tt.valid)
			p, err := parseLocationBody(body, 0x0102)
			require.NoError(t, err)
			assert.InDelta(t, tt.lat, p.Latitude, 1e-6)
			assert.InDelta(t, tt.lon, p.Longitude, 1e-6)
			assert.Equal(t, 40.0, p.Speed)
			assert.Equal(t, 324.0, p.Course)
			assert.Equal(t, uint8(11), p.Satellites)
			assert.Equal(t, tt.valid, p.GPSValid)
			assert.Equal(t, time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC), p.Timestamp)
		})
	}

	t.Run("body too short", func(t *testing.T) {
		_, err := parseLocationBody(make([]byte, 17), 0)
		assert.ErrorIs(t, err, ErrBodyTooShort)
	})

	t.Run("bad timestamp falls back to receipt time", func(t *testing.T) {
		body := locationBody(t, 1, 1, 0, 0, 3, true)
		body[1] = 0x0F + 1 // month 16
		p, err := parseLocationBody(body, 0)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC(), p.Timestamp, time.Minute)
	})
}

func TestParseHeartbeat(t *testing.T) {
	f := &Frame{
		Type: MsgHeartbeat,
		// terminal info: activated | ACC on | GPS tracking on
		Body:   []byte{0x43, 0x04, 0x03, 0x00, 0x01},
		Serial: 0x0010,
	}
	p, err := ParseHeartbeat(f)
	require.NoError(t, err)
	assert.True(t, p.Activated)
	assert.True(t, p.ACCOn)
	assert.False(t, p.Charging)
	assert.True(t, p.GPSTracking)
	assert.False(t, p.FuelCutOff)
	assert.Equal(t, uint8(4), p.VoltageLevel)
	assert.Equal(t, 60, p.BatteryPercent)
	assert.Equal(t, uint8(3), p.GSMSignal)
	assert.Equal(t, 3, p.SignalBars)

	_, err = ParseHeartbeat(&Frame{Type: MsgHeartbeat, Body: []byte{0x43}})
	assert.ErrorIs(t, err, ErrBodyTooShort)
}

func TestParseAlarm(t *testing.T) {
	body := locationBody(t, -6.2, 106.816666, 0, 90, 9, true)
	// LBS block: length byte (counts itself) + MCC(2) MNC(1) LAC(2) CellID(3)
	body = append(body, 0x09, 0x01, 0x54, 0x00, 0x26, 0x74, 0x00, 0x1E, 0x17)
	// status block: terminal info, voltage, gsm, alarm code, language
	body = append(body, 0x42, 0x05, 0x04, 0x01, 0x01)

	f := &Frame{Type: MsgAlarm, Body: body, Serial: 0x0021}
	p, err := ParseAlarm(f)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), p.AlarmCode)
	assert.Equal(t, "sos", p.AlarmType)
	assert.True(t, p.ACCOn)
	assert.Equal(t, 80, p.BatteryPercent)
	assert.Equal(t, 4, p.SignalBars)
	assert.InDelta(t, -6.2, p.Latitude, 1e-6)
	assert.InDelta(t, 106.816666, p.Longitude, 1e-6)

	t.Run("unknown alarm code", func(t *testing.T) {
		b := append([]byte{}, body...)
		b[len(b)-2] = 0x7F
		p, err := ParseAlarm(&Frame{Type: MsgAlarm, Body: b})
		require.NoError(t, err)
		assert.Equal(t, "unknown_7f", p.AlarmType)
	})

	t.Run("truncated status block", func(t *testing.T) {
		_, err := ParseAlarm(&Frame{Type: MsgAlarm, Body: body[:20]})
		assert.ErrorIs(t, err, ErrBodyTooShort)
	})
}

func TestCommandRoundTrip(t *testing.T) {
	raw := BuildCommand("STATUS#", 0xA001)
	f, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, byte(MsgCommand), f.Type)
	assert.Equal(t, uint16(0xA001), f.Serial)

	p, err := ParseCommandResponse(f)
	require.NoError(t, err)
	assert.Equal(t, "STATUS#", p.Content)
	assert.Equal(t, uint32(defaultServerFlag), p.ServerFlag)
	assert.Equal(t, uint16(0xA001), p.Serial)
}

func TestParseCommandResponseTruncated(t *testing.T) {
	_, err := ParseCommandResponse(&Frame{Type: MsgCommandResponse, Body: []byte{0x0A, 0x00}})
	assert.ErrorIs(t, err, ErrBodyTooShort)

	// Declared command length longer than the body.
	_, err = ParseCommandResponse(&Frame{Type: MsgCommandResponse, Body: []byte{0x20, 0x00, 0x00, 0x00, 0x01, 'O', 'K'}})
	assert.ErrorIs(t, err, ErrBodyTooShort)
}

func TestBuildAck(t *testing.T) {
	raw := BuildAck(MsgLogin, 0x0007)
	require.Len(t, raw, minPacketLen)
	assert.Equal(t, byte(0x78), raw[0])
	assert.Equal(t, byte(0x05), raw[2])
	assert.Equal(t, byte(MsgLogin), raw[3])
	assert.Equal(t, uint16(0x0007), binary.BigEndian.Uint16(raw[4:6]))

	f, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Empty(t, f.Body)
}
