package resolver

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/platform"
)

type ValueKind string

const (
	IntValue         = ValueKind("int")
	FloatValue       = ValueKind("float")
	RelocatableValue = ValueKind("relocatable")
)

// Value is an expression's resolution result at a specific bytecode
// position.  Values are created fresh for each resolution.
type Value struct {
	Kind ValueKind

	Int   int64
	Float float64

	// Only set for relocatable values.
	Relocation platform.Relocation
}

func (value Value) String() string {
	switch value.Kind {
	case IntValue:
		return fmt.Sprintf("%d", value.Int)
	case FloatValue:
		return fmt.Sprintf("%g", value.Float)
	default:
		return value.Relocation.String()
	}
}

func overflow(format string, args ...interface{}) *asmerr.Error {
	return asmerr.New(asmerr.ValueOverflow, parseutil.Location{}, format, args...)
}

// CheckRange verifies that value fits the field.  An Either field accepts
// both the signed and the unsigned interpretation (e.g., [-128, 255] for an
// 8-bit field).  Shifted out bits must be zero.
func CheckRange(value int64, field platform.Field) error {
	bits := field.ValueBits()
	if bits <= 0 || bits > 64 {
		return overflow("invalid field width (%d bits)", bits)
	}

	if field.Shift > 0 {
		if value&(int64(1)<<field.Shift-1) != 0 {
			return overflow(
				"value (%d) is not a multiple of %d",
				value,
				int64(1)<<field.Shift)
		}
		value >>= field.Shift
	}

	if bits == 64 {
		if field.Signedness == platform.Unsigned && value < 0 {
			return overflow("value (%d) is negative", value)
		}
		return nil
	}

	signedMin := -(int64(1) << (bits - 1))
	signedMax := int64(1)<<(bits-1) - 1
	unsignedMax := uint64(1)<<bits - 1

	ok := false
	switch field.Signedness {
	case platform.Signed:
		ok = signedMin <= value && value <= signedMax
	case platform.Unsigned:
		ok = value >= 0 && uint64(value) <= unsignedMax
	default:
		ok = signedMin <= value && (value < 0 || uint64(value) <= unsignedMax)
	}

	if !ok {
		return overflow(
			"value (%d) does not fit in %d-bit %s field",
			value<<field.Shift,
			bits,
			field.Signedness)
	}
	return nil
}

func fieldBytes(buf []byte, field platform.Field) ([]byte, error) {
	switch field.Size {
	case 1, 2, 4, 8:
	default:
		return nil, asmerr.New(
			asmerr.Module,
			parseutil.Location{},
			"invalid field size (%d)",
			field.Size)
	}

	if field.Offset < 0 || field.Offset+field.Size > len(buf) {
		return nil, asmerr.New(
			asmerr.Module,
			parseutil.Location{},
			"field [%d, %d) out of buffer bounds (%d)",
			field.Offset,
			field.Offset+field.Size,
			len(buf))
	}

	return buf[field.Offset : field.Offset+field.Size], nil
}

func getUint(buf []byte, order binary.ByteOrder) uint64 {
	switch len(buf) {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(order.Uint16(buf))
	case 4:
		return uint64(order.Uint32(buf))
	default:
		return order.Uint64(buf)
	}
}

func putUint(buf []byte, order binary.ByteOrder, value uint64) {
	switch len(buf) {
	case 1:
		buf[0] = byte(value)
	case 2:
		order.PutUint16(buf, uint16(value))
	case 4:
		order.PutUint32(buf, uint32(value))
	default:
		order.PutUint64(buf, value)
	}
}

func valueMask(bits int) uint64 {
	if bits >= 64 {
		return math.MaxUint64
	}
	return uint64(1)<<bits - 1
}

// EncodeInt range checks value and writes it into the field.  Bits outside
// of a bit field's value bits are preserved.
func EncodeInt(
	buf []byte,
	value int64,
	field platform.Field,
	order binary.ByteOrder,
) error {
	err := CheckRange(value, field)
	if err != nil {
		return err
	}

	dest, err := fieldBytes(buf, field)
	if err != nil {
		return err
	}

	mask := valueMask(field.ValueBits())
	stored := uint64(value>>field.Shift) & mask
	putUint(dest, order, getUint(dest, order)&^mask|stored)
	return nil
}

// DecodeInt is the inverse of EncodeInt.
func DecodeInt(
	buf []byte,
	field platform.Field,
	order binary.ByteOrder,
) (
	int64,
	error,
) {
	src, err := fieldBytes(buf, field)
	if err != nil {
		return 0, err
	}

	bits := field.ValueBits()
	mask := valueMask(bits)
	stored := getUint(src, order) & mask

	if field.Signedness == platform.Signed &&
		bits < 64 &&
		stored&(uint64(1)<<(bits-1)) != 0 {

		stored |= ^mask
	}

	return int64(stored) << field.Shift, nil
}

func EncodeFloat(
	buf []byte,
	value float64,
	field platform.Field,
	order binary.ByteOrder,
) error {
	dest, err := fieldBytes(buf, field)
	if err != nil {
		return err
	}

	switch field.Size {
	case 4:
		if math.Abs(value) > math.MaxFloat32 && !math.IsInf(value, 0) {
			return overflow("value (%g) does not fit in float32", value)
		}
		order.PutUint32(dest, math.Float32bits(float32(value)))
	case 8:
		order.PutUint64(dest, math.Float64bits(value))
	default:
		return asmerr.New(
			asmerr.Semantic,
			parseutil.Location{},
			"floating point value requires a 4 or 8 byte field (%d)",
			field.Size)
	}
	return nil
}
