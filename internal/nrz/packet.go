package nrz

import (
	"strconv"
	"strings"

	"github.com/banshee-data/vitals.link/internal/vitals"
)

const (
	PreambleByte  byte = 0x55
	PreambleCount      = 4
	SyncByte      byte = 0xAA
	EndByte       byte = 0xFF

	// MinPacketBits is the shortest stream ParsePacket will look at: five
	// bytes of eight bits each.
	MinPacketBits = 40
)

// PacketBits returns the length of the bitstream produced for a payload of
// payloadLen bytes.
func PacketBits(payloadLen int) int {
	return (PreambleCount + 1 + payloadLen + 1) * BitsPerByte
}

// GeneratePacketBitstream builds the full transmit bitstream for one vitals
// reading: preamble, sync, the "<hr>,<spo2>\n" payload and the end marker,
// every byte UART framed.
func GeneratePacketBitstream(heartRate, spO2 int) Bitstream {
	payload := vitals.Sample{HeartRate: heartRate, SpO2: spO2}.Payload()
	bits := make(Bitstream, 0, PacketBits(len(payload)))
	for i := 0; i < PreambleCount; i++ {
		bits = appendByte(bits, PreambleByte)
	}
	bits = appendByte(bits, SyncByte)
	for i := 0; i < len(payload); i++ {
		bits = appendByte(bits, payload[i])
	}
	return appendByte(bits, EndByte)
}

// ParsePacket recovers a reading from a raw demodulated bitstream by fixed
// offsets: heart rate from bits[8:24] and SpO2 from bits[24:32], both read
// as unsigned MSB-first integers. Streams shorter than MinPacketBits report
// ok == false so callers can keep accumulating.
//
// The offsets assume an unframed [sync, hr_hi, hr_lo, spo2, checksum] byte
// layout. They do not line up with the UART groups GeneratePacketBitstream
// emits, so parsing a generated packet yields preamble bits, not the
// encoded reading. Use UnframePacket for framed streams.
func ParsePacket(bits Bitstream) (s vitals.Sample, ok bool) {
	if len(bits) < MinPacketBits {
		return vitals.Sample{}, false
	}
	return vitals.Sample{
		HeartRate: uintFromBits(bits[8:24]),
		SpO2:      uintFromBits(bits[24:32]),
	}, true
}

// UnframePacket walks the UART groups of a framed packet, checks the
// preamble, sync and end markers and returns the payload between them.
// Payload bytes are not validated; a corrupted byte comes back as whatever
// character it decodes to.
func UnframePacket(bits Bitstream) (string, error) {
	next := func(idx int) (byte, error) {
		off := idx * BitsPerByte
		if off >= len(bits) {
			return 0, framingErrorf("stream ended after %d bytes", idx)
		}
		b, err := DecodeByte(bits[off:])
		if err != nil {
			return 0, framingErrorf("byte %d: %v", idx, err)
		}
		return b, nil
	}

	idx := 0
	for ; idx < PreambleCount; idx++ {
		b, err := next(idx)
		if err != nil {
			return "", err
		}
		if b != PreambleByte {
			return "", framingErrorf("preamble byte %d is 0x%02X, want 0x%02X", idx, b, PreambleByte)
		}
	}
	b, err := next(idx)
	if err != nil {
		return "", err
	}
	if b != SyncByte {
		return "", framingErrorf("sync byte is 0x%02X, want 0x%02X", b, SyncByte)
	}

	var payload strings.Builder
	for idx++; ; idx++ {
		b, err := next(idx)
		if err != nil {
			return "", err
		}
		if b == EndByte {
			return payload.String(), nil
		}
		payload.WriteByte(b)
	}
}

// DecodeFramedPacket unframes bits and parses the payload as a vitals line.
func DecodeFramedPacket(bits Bitstream) (vitals.Sample, error) {
	payload, err := UnframePacket(bits)
	if err != nil {
		return vitals.Sample{}, err
	}
	s, err := vitals.ParseLine(payload)
	if err != nil {
		return vitals.Sample{}, framingErrorf("payload %s: %v", strconv.Quote(payload), err)
	}
	return s, nil
}
