// Package nrz implements the NRZ-OOK link layer used by the vitals
// transmitter: UART-style byte framing, the packet wire format, a
// level-slicing demodulator and the signal quality metrics derived from a
// demodulated bitstream.
//
// Wire format, one UART group (start, 8 data bits LSB first, stop, idle) per
// byte:
//
//	[0x55]x4 preamble | [0xAA] sync | ASCII "<hr>,<spo2>\n" | [0xFF] end
package nrz

import "strings"

// Bit is a single line level.
type Bit uint8

const (
	Zero Bit = 0
	One  Bit = 1
)

// String returns "0" or "1".
func (b Bit) String() string {
	if b == One {
		return "1"
	}
	return "0"
}

// Bitstream is an ordered sequence of bits. Functions in this package never
// modify a Bitstream they are given and always return freshly allocated ones.
type Bitstream []Bit

// String renders the bitstream as a run of '0' and '1' characters.
func (bs Bitstream) String() string {
	var sb strings.Builder
	sb.Grow(len(bs))
	for _, b := range bs {
		sb.WriteString(b.String())
	}
	return sb.String()
}

// Ints returns the bitstream as 0/1 integers, the shape renderers consume.
func (bs Bitstream) Ints() []int {
	out := make([]int, len(bs))
	for i, b := range bs {
		out[i] = int(b)
	}
	return out
}

// ParseBitstream converts a string of '0' and '1' characters into a
// Bitstream. Whitespace and '_' separators are ignored; any other rune is
// rejected.
func ParseBitstream(s string) (Bitstream, error) {
	bs := make(Bitstream, 0, len(s))
	for i, r := range s {
		switch r {
		case '0':
			bs = append(bs, Zero)
		case '1':
			bs = append(bs, One)
		case ' ', '\t', '\n', '_':
		default:
			return nil, invalidInputf("unexpected rune %q at offset %d", r, i)
		}
	}
	return bs, nil
}

// uintFromBits interprets bits as an unsigned binary integer, MSB first.
func uintFromBits(bits Bitstream) int {
	v := 0
	for _, b := range bits {
		v = v<<1 | int(b)
	}
	return v
}
