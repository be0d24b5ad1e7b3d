// Package keycodec encodes primary-key and indexed-column values into a
// self-describing byte stream and decodes/compares those streams.
//
// Stream layout (tag byte, low bits select the variant):
//
//	tiny string   tag = length*2+1 (length < 128), bytes follow
//	14-bit int    first 2 bytes little-endian = value*4+2
//	long string   tag=4, 4-byte length, bytes follow
//	28-bit int    4-byte little-endian field = value*16+8
//	full int      tag=16, 4-byte value follows
//	float         tag=32, 4 bytes IEEE-754 follow
//
// Integers pick the smallest variant that fits; decoding dispatches on the
// tag alone. Encoding fails only on an out-of-range integer or an integer
// given in a Go type Encode does not accept.
package keycodec

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Type identifies which column-type family a raw value belongs to.
type Type uint8

const (
	TypeInt Type = iota
	TypeLong
	TypeFloat
	TypeString
)

const (
	sflagTinyString = 1
	sflagInt14      = 2
	sflagString     = 4
	sflagInt28      = 8
	sflagInt32      = 16
	sflagFloat      = 32
)

const (
	twoPow7  = 1 << 7
	twoPow14 = 1 << 14
	twoPow28 = 1 << 28
	twoPow32 = int64(1) << 32
)

// SimkeyBufferSize mirrors the original's stack-sized encode scratch space.
const SimkeyBufferSize = 2048

// ErrValueTooLarge is returned when an integer column value is >= 2^32.
var ErrValueTooLarge = errors.New("keycodec: integer value too large for key encoding")

// Value is a decoded, typed key value.
type Value struct {
	Type   Type
	Int    uint32
	Float  float32
	String []byte
}

// Encode produces the encoded stream for one key. Every call returns a
// freshly allocated slice, so no buffer is shared between calls and the
// result is safe to keep; Release is a no-op for it.
func Encode(typ Type, raw any) ([]byte, error) {
	switch typ {
	case TypeString:
		s, _ := raw.([]byte)
		return encodeString(s), nil
	case TypeFloat:
		f, _ := raw.(float64)
		return encodeFloat(float32(f)), nil
	default: // TypeInt, TypeLong
		v, err := asUint32(raw)
		if err != nil {
			return nil, err
		}
		return encodeUint(v), nil
	}
}

func asUint32(raw any) (uint32, error) {
	var v int64
	switch x := raw.(type) {
	case int64:
		v = x
	case int:
		v = int64(x)
	case uint64:
		if x >= uint64(twoPow32) {
			return 0, ErrValueTooLarge
		}
		return uint32(x), nil
	case uint32:
		return x, nil
	default:
		return 0, errors.Errorf("keycodec: unsupported integer representation %T", raw)
	}
	if v < 0 || v >= twoPow32 {
		return 0, ErrValueTooLarge
	}
	return uint32(v), nil
}

func encodeUint(v uint32) []byte {
	switch {
	case v < twoPow14:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(v*4+2))
		return buf
	case v < twoPow28:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, v*16+8)
		return buf
	default:
		buf := make([]byte, 5)
		buf[0] = sflagInt32
		binary.LittleEndian.PutUint32(buf[1:], v)
		return buf
	}
}

func encodeString(s []byte) []byte {
	if len(s) < twoPow7 {
		buf := make([]byte, 1+len(s))
		buf[0] = byte(len(s)*2 + 1)
		copy(buf[1:], s)
		return buf
	}
	buf := make([]byte, 5+len(s))
	buf[0] = sflagString
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(s)))
	copy(buf[5:], s)
	return buf
}

func encodeFloat(f float32) []byte {
	buf := make([]byte, 5)
	buf[0] = sflagFloat
	binary.LittleEndian.PutUint32(buf[1:], math.Float32bits(f))
	return buf
}

// Release exists for symmetry with the codec's C ancestor, where the
// reusable encode buffer had to be freed by hand when it escaped to the
// heap. Go's GC makes the explicit free unnecessary; Release is a no-op
// documented as the contract point a debug build would assert against if it
// wanted to catch a buffer held across a nested Encode call (see spec §9,
// "Reentrancy and the encode buffer").
func Release([]byte) {}

func sflag(b byte) byte {
	switch {
	case b&1 != 0:
		return 1
	case b&2 != 0:
		return 2
	case b&4 != 0:
		return 4
	case b&8 != 0:
		return 8
	case b&16 != 0:
		return 16
	case b&32 != 0:
		return 32
	default:
		panic("keycodec: corrupt tag byte")
	}
}

// SkipToValue returns the number of bytes the encoded key at the front of
// stream occupies, without decoding it.
func SkipToValue(stream []byte) int {
	switch sflag(stream[0]) {
	case sflagTinyString:
		return int(stream[0]/2) + 1
	case sflagInt14:
		return 2
	case sflagString:
		slen := binary.LittleEndian.Uint32(stream[1:5])
		return int(slen) + 5
	case sflagInt28:
		return 4
	case sflagInt32:
		return 5
	case sflagFloat:
		return 5
	default:
		panic("keycodec: corrupt tag byte")
	}
}

// Decode decodes the key stream at the front of stream into a typed Value.
func Decode(stream []byte) Value {
	switch sflag(stream[0]) {
	case sflagTinyString:
		slen := int(stream[0] / 2)
		return Value{Type: TypeString, String: stream[1 : 1+slen]}
	case sflagInt14:
		raw := binary.LittleEndian.Uint16(stream[0:2])
		return Value{Type: TypeInt, Int: (uint32(raw) - 2) / 4}
	case sflagString:
		slen := binary.LittleEndian.Uint32(stream[1:5])
		return Value{Type: TypeString, String: stream[5 : 5+int(slen)]}
	case sflagInt28:
		raw := binary.LittleEndian.Uint32(stream[0:4])
		return Value{Type: TypeInt, Int: (raw - 8) / 16}
	case sflagInt32:
		return Value{Type: TypeInt, Int: binary.LittleEndian.Uint32(stream[1:5])}
	case sflagFloat:
		bits := binary.LittleEndian.Uint32(stream[1:5])
		return Value{Type: TypeFloat, Float: math.Float32frombits(bits)}
	default:
		panic("keycodec: corrupt tag byte")
	}
}

// Compare returns -1, 0, or 1 comparing two encoded key streams. Strings
// compare lexicographically with a length tiebreak; integers compare
// numerically after decoding to uint32; floats compare numerically. Mixed
// families (string vs int vs float) compare by family rank: string < int <
// float, matching the original's branch order.
func Compare(a, b []byte) int {
	fa, fb := family(sflag(a[0])), family(sflag(b[0]))
	if fa != fb {
		if fa < fb {
			return -1
		}
		return 1
	}
	switch fa {
	case familyString:
		va, vb := Decode(a).String, Decode(b).String
		n := len(va)
		if len(vb) < n {
			n = len(vb)
		}
		for i := 0; i < n; i++ {
			if va[i] != vb[i] {
				if va[i] < vb[i] {
					return -1
				}
				return 1
			}
		}
		switch {
		case len(va) == len(vb):
			return 0
		case len(va) < len(vb):
			return -1
		default:
			return 1
		}
	case familyFloat:
		va, vb := Decode(a).Float, Decode(b).Float
		switch {
		case va == vb:
			return 0
		case va < vb:
			return -1
		default:
			return 1
		}
	default: // familyInt
		va, vb := Decode(a).Int, Decode(b).Int
		switch {
		case va == vb:
			return 0
		case va < vb:
			return -1
		default:
			return 1
		}
	}
}

type family uint8

const (
	familyString family = iota
	familyInt
	familyFloat
)

func family(sf byte) family {
	switch sf {
	case sflagTinyString, sflagString:
		return familyString
	case sflagFloat:
		return familyFloat
	default:
		return familyInt
	}
}
