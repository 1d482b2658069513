// Package gt06 implements the GT06 GPS tracker wire protocol: CRC-checked
// frame encode/decode over a byte stream and the typed packets carried
// inside frames.
package gt06

// Protocol constants
const (
	startByte1 = 0x78
	startByte2 = 0x78
	endByte1   = 0x0D
	endByte2   = 0x0A

	// Smallest legal packet: start(2) + length(1) + type(1) + serial(2) + crc(2) + stop(2)
	minPacketLen = 10

	// Message types
	MsgLogin           byte = 0x01
	MsgLocation        byte = 0x12
	MsgHeartbeat       byte = 0x13
	MsgAlarm           byte = 0x16
	MsgCommand         byte = 0x80
	MsgCommandResponse byte = 0x80

	// Alarm type codes
	alarmNormal      = 0x00
	alarmSOS         = 0x01
	alarmPowerCut    = 0x02
	alarmShock       = 0x03
	alarmFenceEnter  = 0x04
	alarmFenceExit   = 0x05
	alarmOverspeed   = 0x06
	alarmIgnitionOn  = 0x07
	alarmIgnitionOff = 0x08
	alarmACOn        = 0x09
	alarmACOff       = 0x0A
)

// alarmNames maps wire alarm codes to the stable names stored on samples.
var alarmNames = map[byte]string{
	alarmNormal:      "normal",
	alarmSOS:         "sos",
	alarmPowerCut:    "powerCut",
	alarmShock:       "shock",
	alarmFenceEnter:  "fenceEnter",
	alarmFenceExit:   "fenceExit",
	alarmOverspeed:   "overspeed",
	alarmIgnitionOn:  "ignitionOn",
	alarmIgnitionOff: "ignitionOff",
	alarmACOn:        "acOn",
	alarmACOff:       "acOff",
}

// batteryPercent maps the heartbeat voltage level (0-6) to an approximate
// charge percentage.
var batteryPercent = map[uint8]int{
	0x00: 0,
	0x01: 10,
	0x02: 25,
	0x03: 40,
	0x04: 60,
	0x05: 80,
	0x06: 100,
}
