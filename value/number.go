package value

import (
	"math"
	"strconv"
)

// F32 and F64 are float newtypes whose equality and hashing go through the
// IEEE bit pattern, so NaN keys and signed zeros are distinguishable.
type (
	F32 float32
	F64 float64
	C64 complex128
)

func (f F32) Bits() uint32 { return math.Float32bits(float32(f)) }
func (f F64) Bits() uint64 { return math.Float64bits(float64(f)) }

func (f F32) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 32) }
func (f F64) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (c C64) String() string { return strconv.FormatComplex(complex128(c), 'g', -1, 128) }

type Signed interface {
	~int8 | ~int16 | ~int32 | ~int64
}

type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

type Integer interface {
	Signed | Unsigned
}

type Floating interface {
	~float32 | ~float64
}

// Real is every numeric kind with an ordering.
type Real interface {
	Integer | Floating
}

// Number is every kind arithmetic is defined on.
type Number interface {
	Real | ~complex128
}

// Elem is every scalar kind a Scalar or Matrix may hold.
type Elem interface {
	~bool | Number | ~string
}

// TagOf returns the kind tag for an element type.
func TagOf[T Elem]() Tag {
	var z T
	switch any(z).(type) {
	case bool:
		return TagBool
	case int8:
		return TagI8
	case int16:
		return TagI16
	case int32:
		return TagI32
	case int64:
		return TagI64
	case uint8:
		return TagU8
	case uint16:
		return TagU16
	case uint32:
		return TagU32
	case uint64:
		return TagU64
	case F32:
		return TagF32
	case F64:
		return TagF64
	case C64:
		return TagC64
	case string:
		return TagString
	}
	return TagAny
}

func scalarSize(t Tag) int {
	switch t {
	case TagBool, TagI8, TagU8:
		return 1
	case TagI16, TagU16:
		return 2
	case TagI32, TagU32, TagF32:
		return 4
	case TagI64, TagU64, TagF64:
		return 8
	case TagC64:
		return 16
	}
	return 0
}

func formatElem(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case string:
		return strconv.Quote(x)
	case F32:
		return x.String()
	case F64:
		return x.String()
	case C64:
		return x.String()
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	}
	return "?"
}

// keyElem appends a canonical encoding of v. Floats are encoded by bits.
func keyElem(b []byte, v any) []byte {
	switch x := v.(type) {
	case F32:
		return strconv.AppendUint(b, uint64(x.Bits()), 16)
	case F64:
		return strconv.AppendUint(b, x.Bits(), 16)
	case C64:
		b = strconv.AppendUint(b, math.Float64bits(real(x)), 16)
		b = append(b, ',')
		return strconv.AppendUint(b, math.Float64bits(imag(x)), 16)
	case string:
		b = strconv.AppendInt(b, int64(len(x)), 10)
		b = append(b, ':')
		return append(b, x...)
	}
	return append(b, formatElem(v)...)
}
