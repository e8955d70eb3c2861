package resolver

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/platform"
)

func TestEncodeInt_roundTrip(t *testing.T) {
	type testCase struct {
		value int64
		field platform.Field
	}

	cases := []testCase{}
	for _, size := range []int{1, 2, 4, 8} {
		bits := size * 8
		maxSigned := int64(1)<<(bits-1) - 1
		minSigned := -maxSigned - 1
		if bits == 64 {
			maxSigned = 1<<63 - 1
			minSigned = -1 << 63
		}

		cases = append(
			cases,
			testCase{0, platform.Field{Size: size, Signedness: platform.Signed}},
			testCase{
				maxSigned,
				platform.Field{Size: size, Signedness: platform.Signed},
			},
			testCase{
				minSigned,
				platform.Field{Size: size, Signedness: platform.Signed},
			},
			testCase{-1, platform.Field{Size: size, Signedness: platform.Signed}},
			testCase{
				maxSigned,
				platform.Field{Size: size, Signedness: platform.Unsigned},
			})
	}

	cases = append(
		cases,
		testCase{
			-8,
			platform.Field{Size: 2, Bits: 16, Shift: 2, Signedness: platform.Signed},
		},
		testCase{
			0x0ffffffc,
			platform.Field{
				Size:       4,
				Bits:       26,
				Shift:      2,
				Signedness: platform.Unsigned,
			},
		})

	for idx, tc := range cases {
		for _, order := range []binary.ByteOrder{
			binary.LittleEndian,
			binary.BigEndian,
		} {
			buf := make([]byte, 8)
			err := EncodeInt(buf, tc.value, tc.field, order)
			if err != nil {
				t.Errorf("%s/%03d: unexpected error: %v", t.Name(), idx, err)
				continue
			}

			decoded, err := DecodeInt(buf, tc.field, order)
			if err != nil {
				t.Errorf("%s/%03d: unexpected error: %v", t.Name(), idx, err)
				continue
			}

			if decoded != tc.value {
				t.Errorf(
					"%s/%03d: expected %d, decoded %d (%v)",
					t.Name(),
					idx,
					tc.value,
					decoded,
					order)
			}
		}
	}
}

func TestEncodeInt_littleEndian(t *testing.T) {
	buf := make([]byte, 4)
	err := EncodeInt(
		buf,
		0x12345678,
		platform.Field{Size: 4},
		binary.LittleEndian)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	expected := []byte{0x78, 0x56, 0x34, 0x12}
	for idx := range expected {
		if buf[idx] != expected[idx] {
			t.Fatalf("%s: expected %x, found %x", t.Name(), expected, buf)
		}
	}
}

func TestEncodeInt_preservesNonValueBits(t *testing.T) {
	// beq opcode bits must survive the offset encoding.
	buf := []byte{0x00, 0x00, 0x22, 0x10}
	field := platform.Field{
		Size:       4,
		Bits:       16,
		Shift:      2,
		Signedness: platform.Signed,
	}

	err := EncodeInt(buf, -4, field, binary.LittleEndian)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	expected := []byte{0xff, 0xff, 0x22, 0x10}
	for idx := range expected {
		if buf[idx] != expected[idx] {
			t.Fatalf("%s: expected %x, found %x", t.Name(), expected, buf)
		}
	}
}

func TestCheckRange(t *testing.T) {
	type testCase struct {
		value int64
		field platform.Field
		ok    bool
	}

	byte1 := func(signedness platform.Signedness) platform.Field {
		return platform.Field{Size: 1, Signedness: signedness}
	}

	cases := []testCase{
		{127, byte1(platform.Signed), true},
		{128, byte1(platform.Signed), false},
		{-128, byte1(platform.Signed), true},
		{-129, byte1(platform.Signed), false},
		{255, byte1(platform.Unsigned), true},
		{256, byte1(platform.Unsigned), false},
		{-1, byte1(platform.Unsigned), false},
		{255, byte1(platform.Either), true},
		{-128, byte1(platform.Either), true},
		{-129, byte1(platform.Either), false},
		{256, byte1(platform.Either), false},
		{0xffff, platform.Field{Size: 2}, true},
		{0x10000, platform.Field{Size: 2}, false},
		{1 << 31, platform.Field{Size: 4, Signedness: platform.Signed}, false},
		{-1, platform.Field{Size: 8, Signedness: platform.Unsigned}, false},
		{-1, platform.Field{Size: 8, Signedness: platform.Signed}, true},
		{
			6,
			platform.Field{Size: 4, Bits: 16, Shift: 2, Signedness: platform.Signed},
			false,
		},
		{
			1 << 16,
			platform.Field{Size: 4, Bits: 16, Shift: 2, Signedness: platform.Signed},
			true,
		},
		{
			1 << 16,
			platform.Field{Size: 4, Bits: 16, Shift: 0, Signedness: platform.Signed},
			false,
		},
	}

	for idx, tc := range cases {
		err := CheckRange(tc.value, tc.field)
		if tc.ok && err != nil {
			t.Errorf("%s/%03d: unexpected error: %v", t.Name(), idx, err)
		} else if !tc.ok && !errors.Is(err, asmerr.ValueOverflow) {
			t.Errorf(
				"%s/%03d: expected value overflow for %d, found %v",
				t.Name(),
				idx,
				tc.value,
				err)
		}
	}
}

func TestEncodeFloat(t *testing.T) {
	buf := make([]byte, 12)
	err := EncodeFloat(
		buf,
		1.0,
		platform.Field{Size: 4, Float: true},
		binary.LittleEndian)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	err = EncodeFloat(
		buf,
		1.0,
		platform.Field{Offset: 4, Size: 8, Float: true},
		binary.LittleEndian)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", t.Name(), err)
	}

	expected := []byte{
		0x00, 0x00, 0x80, 0x3f,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf0, 0x3f,
	}
	for idx := range expected {
		if buf[idx] != expected[idx] {
			t.Fatalf("%s: expected %x, found %x", t.Name(), expected, buf)
		}
	}

	err = EncodeFloat(
		buf,
		1.0,
		platform.Field{Size: 2, Float: true},
		binary.LittleEndian)
	if !errors.Is(err, asmerr.Semantic) {
		t.Errorf("%s: expected semantic error, found %v", t.Name(), err)
	}

	err = EncodeFloat(
		buf,
		1e300,
		platform.Field{Size: 4, Float: true},
		binary.LittleEndian)
	if !errors.Is(err, asmerr.ValueOverflow) {
		t.Errorf("%s: expected value overflow, found %v", t.Name(), err)
	}
}
