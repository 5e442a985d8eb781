package object

import (
	"encoding/binary"

	"github.com/eipdev/eipdev-go/pkg/cip"
)

// Binding connects an attribute to the variable holding its value.
type Binding interface {
	// Encode returns the current value in wire representation.
	Encode() []byte

	// Decode validates data and stores it. Errors should be *cip.StatusError.
	Decode(data []byte) error
}

// checkLen returns the CIP status for a payload of n bytes where want are expected.
func checkLen(n, want int) error {
	switch {
	case n < want:
		return cip.Err(cip.StatusNotEnoughData)
	case n > want:
		return cip.Err(cip.StatusTooMuchData)
	}
	return nil
}

type uint8Binding struct{ p *uint8 }

// Uint8 binds a USINT attribute.
func Uint8(p *uint8) Binding { return uint8Binding{p} }

func (b uint8Binding) Encode() []byte { return []byte{*b.p} }

func (b uint8Binding) Decode(data []byte) error {
	if err := checkLen(len(data), 1); err != nil {
		return err
	}
	*b.p = data[0]
	return nil
}

type uint16Binding struct{ p *uint16 }

// Uint16 binds a UINT attribute.
func Uint16(p *uint16) Binding { return uint16Binding{p} }

func (b uint16Binding) Encode() []byte {
	return binary.LittleEndian.AppendUint16(nil, *b.p)
}

func (b uint16Binding) Decode(data []byte) error {
	if err := checkLen(len(data), 2); err != nil {
		return err
	}
	*b.p = binary.LittleEndian.Uint16(data)
	return nil
}

type uint32Binding struct{ p *uint32 }

// Uint32 binds a UDINT attribute.
func Uint32(p *uint32) Binding { return uint32Binding{p} }

func (b uint32Binding) Encode() []byte {
	return binary.LittleEndian.AppendUint32(nil, *b.p)
}

func (b uint32Binding) Decode(data []byte) error {
	if err := checkLen(len(data), 4); err != nil {
		return err
	}
	*b.p = binary.LittleEndian.Uint32(data)
	return nil
}

type bytesBinding struct{ buf []byte }

// Bytes binds a fixed-size byte array. The buffer is written in place, so the
// owner of buf observes every successful Decode.
func Bytes(buf []byte) Binding { return bytesBinding{buf} }

func (b bytesBinding) Encode() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

func (b bytesBinding) Decode(data []byte) error {
	if err := checkLen(len(data), len(b.buf)); err != nil {
		return err
	}
	copy(b.buf, data)
	return nil
}

type uint32sBinding struct{ values []uint32 }

// Uint32s binds a fixed-length UDINT array (a CIP struct of counters).
func Uint32s(values []uint32) Binding { return uint32sBinding{values} }

func (b uint32sBinding) Encode() []byte {
	return cip.AppendUint32s(make([]byte, 0, 4*len(b.values)), b.values)
}

func (b uint32sBinding) Decode(data []byte) error {
	if err := checkLen(len(data), 4*len(b.values)); err != nil {
		return err
	}
	for i := range b.values {
		b.values[i] = binary.LittleEndian.Uint32(data[4*i:])
	}
	return nil
}

type stringBinding struct {
	p      *string
	maxLen int
}

// String binds a CIP STRING attribute of at most maxLen characters
// (0 means unlimited).
func String(p *string, maxLen int) Binding { return stringBinding{p, maxLen} }

func (b stringBinding) Encode() []byte {
	return cip.AppendString(nil, *b.p)
}

func (b stringBinding) Decode(data []byte) error {
	s, err := cip.DecodeString(data)
	if err != nil {
		return cip.Err(cip.StatusNotEnoughData)
	}
	if b.maxLen > 0 && len(s) > b.maxLen {
		return cip.Err(cip.StatusInvalidAttributeValue)
	}
	*b.p = s
	return nil
}

// FuncBinding adapts a pair of functions. A nil decode makes the binding
// reject every write.
type FuncBinding struct {
	EncodeFunc func() []byte
	DecodeFunc func(data []byte) error
}

// Encode calls EncodeFunc.
func (f FuncBinding) Encode() []byte { return f.EncodeFunc() }

// Decode calls DecodeFunc.
func (f FuncBinding) Decode(data []byte) error {
	if f.DecodeFunc == nil {
		return cip.Err(cip.StatusAttributeNotSettable)
	}
	return f.DecodeFunc(data)
}
