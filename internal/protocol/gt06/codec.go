package gt06

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var (
	ErrPacketTooShort = errors.New("gt06: packet too short")
	ErrInvalidHeader  = errors.New("gt06: invalid start marker")
	ErrInvalidLength  = errors.New("gt06: declared length does not match packet")
	ErrBadChecksum    = errors.New("gt06: checksum mismatch")
	ErrInvalidFooter  = errors.New("gt06: invalid stop marker")
)

var startMarker = []byte{startByte1, startByte2}

// Frame is one wire packet with the framing stripped:
//
//	0x7878 | length(1) | type(1) | body(N) | serial(2) | crc(2) | 0x0D0A
//
// where length counts type through crc (N + 5).
type Frame struct {
	Type   byte
	Body   []byte
	Serial uint16
}

// Checksum computes CRC-ITU (poly 0x8408 reflected, init and final XOR
// 0xFFFF) as required by the protocol, covering the length byte through
// the serial number.
func Checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return ^crc
}

// Encode serializes a frame. It is the exact inverse of DecodeFrame:
// for any frame produced by DecodeFrame, Encode returns the original bytes.
func Encode(f *Frame) []byte {
	length := len(f.Body) + 5
	pkt := make([]byte, 0, length+5)
	pkt = append(pkt, startByte1, startByte2, byte(length), f.Type)
	pkt = append(pkt, f.Body...)
	pkt = binary.BigEndian.AppendUint16(pkt, f.Serial)
	crc := Checksum(pkt[2:])
	pkt = binary.BigEndian.AppendUint16(pkt, crc)
	return append(pkt, endByte1, endByte2)
}

// DecodeFrame parses exactly one complete packet. Validation order: start
// marker, declared length, checksum, stop marker.
func DecodeFrame(pkt []byte) (*Frame, error) {
	if len(pkt) < minPacketLen {
		return nil, ErrPacketTooShort
	}
	if pkt[0] != startByte1 || pkt[1] != startByte2 {
		return nil, ErrInvalidHeader
	}
	length := int(pkt[2])
	total := length + 5
	if length < 5 || len(pkt) != total {
		return nil, ErrInvalidLength
	}
	want := binary.BigEndian.Uint16(pkt[total-4 : total-2])
	if Checksum(pkt[2:total-4]) != want {
		return nil, ErrBadChecksum
	}
	if pkt[total-2] != endByte1 || pkt[total-1] != endByte2 {
		return nil, ErrInvalidFooter
	}
	body := make([]byte, length-5)
	copy(body, pkt[4:total-6])
	return &Frame{
		Type:   pkt[3],
		Body:   body,
		Serial: binary.BigEndian.Uint16(pkt[total-6 : total-4]),
	}, nil
}

// StreamDecoder accumulates bytes from a connection and yields complete
// frames. Corrupt data does not poison the stream: after a framing error
// the decoder resynchronizes by scanning forward for the next start marker.
type StreamDecoder struct {
	buf []byte
}

// Write appends raw bytes received from the connection.
func (d *StreamDecoder) Write(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered reports how many bytes are waiting to be decoded.
func (d *StreamDecoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete frame, or (nil, nil) when more bytes are
// needed. A non-nil error reports a framing failure on one candidate
// packet; the decoder has already skipped past it and the caller may keep
// calling Next.
func (d *StreamDecoder) Next() (*Frame, error) {
	for {
		i := bytes.Index(d.buf, startMarker)
		if i < 0 {
			// Keep the last byte: it may be the first half of a marker.
			if len(d.buf) > 1 {
				d.buf = d.buf[len(d.buf)-1:]
			}
			return nil, nil
		}
		if i > 0 {
			d.buf = d.buf[i:]
		}
		if len(d.buf) < 3 {
			return nil, nil
		}
		length := int(d.buf[2])
		if length < 5 {
			d.buf = d.buf[2:]
			return nil, ErrInvalidLength
		}
		total := length + 5
		if len(d.buf) < total {
			return nil, nil
		}
		f, err := DecodeFrame(d.buf[:total])
		if err != nil {
			// Skip this marker and rescan from the next byte pair.
			d.buf = d.buf[2:]
			return nil, err
		}
		d.buf = d.buf[total:]
		return f, nil
	}
}
