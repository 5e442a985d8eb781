package cip

import (
	"encoding/binary"
	"fmt"
)

// AppendString appends s as a CIP STRING: a UINT character count followed by
// the characters, padded to an even length.
func AppendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(len(s)))
	b = append(b, s...)
	if len(s)%2 != 0 {
		b = append(b, 0x00)
	}
	return b
}

// DecodeString decodes a CIP STRING produced by AppendString. The pad byte is
// optional on input.
func DecodeString(data []byte) (string, error) {
	if len(data) < 2 {
		return "", fmt.Errorf("cip string too short: %d bytes", len(data))
	}
	n := int(binary.LittleEndian.Uint16(data[:2]))
	if len(data) < 2+n {
		return "", fmt.Errorf("cip string truncated: need %d bytes, have %d", 2+n, len(data))
	}
	return string(data[2 : 2+n]), nil
}

// AppendUint32s appends each value as a little-endian UDINT.
func AppendUint32s(b []byte, values []uint32) []byte {
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b
}
