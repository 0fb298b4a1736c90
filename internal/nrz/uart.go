package nrz

const (
	// BitsPerByte is the size of one UART group: start, 8 data bits, stop
	// and one extra idle bit.
	BitsPerByte = 11

	startBit = Zero
	stopBit  = One
	idleBit  = One
)

// EncodeByte frames b as [0, b0..b7, 1, 1] with data bits LSB first.
// Values outside 0..255 return ErrInvalidInput.
func EncodeByte(b int) (Bitstream, error) {
	if b < 0 || b > 0xFF {
		return nil, invalidInputf("byte value %d out of range 0..255", b)
	}
	return appendByte(make(Bitstream, 0, BitsPerByte), byte(b)), nil
}

func appendByte(dst Bitstream, b byte) Bitstream {
	dst = append(dst, startBit)
	for i := 0; i < 8; i++ {
		dst = append(dst, Bit((b>>i)&0x01))
	}
	return append(dst, stopBit, idleBit)
}

// DecodeByte recovers the byte carried by the UART group at the start of
// bits. Only the first BitsPerByte bits are read; the idle bit is not
// checked.
func DecodeByte(bits Bitstream) (byte, error) {
	if len(bits) < BitsPerByte {
		return 0, framingErrorf("need %d bits for a byte, have %d", BitsPerByte, len(bits))
	}
	if bits[0] != startBit {
		return 0, framingErrorf("start bit is %s, want %s", bits[0], startBit)
	}
	if bits[9] != stopBit {
		return 0, framingErrorf("stop bit is %s, want %s", bits[9], stopBit)
	}
	var b byte
	for i := 0; i < 8; i++ {
		b |= byte(bits[1+i]) << i
	}
	return b, nil
}
