package platform

import (
	"fmt"

	"github.com/pattyshack/gt/parseutil"
)

type Signedness string

const (
	// Either signed or unsigned interpretation must fit, e.g., an 8-bit field
	// accepts [-128, 255].
	Either   = Signedness("either")
	Signed   = Signedness("signed")
	Unsigned = Signedness("unsigned")
)

// A value field within a bytecode's encoding.
type Field struct {
	// Byte offset within the bytecode.
	Offset int

	// Number of bytes occupied by the field (1, 2, 4 or 8).
	Size int

	// Value width in bits, stored in the least significant bits of the field.
	// Zero means Size * 8.  Bits not covered by the value are preserved.
	Bits int

	// The value is stored right shifted by Shift.  The shifted out bits must
	// be zero (e.g., word aligned branch offsets).
	Shift uint

	Signedness Signedness

	// When true, the value is relative to the bytecode's start + Origin.
	PCRelative bool
	Origin     int64

	// The field accepts floating point values.  A value that resolves to a
	// floating point constant is IEEE 754 encoded (Size must be 4 or 8);
	// integer values are encoded as integers.
	Float bool
}

func (field Field) ValueBits() int {
	if field.Bits > 0 {
		return field.Bits
	}
	return field.Size * 8
}

type RelocationKind string

const (
	// value = S + A
	AbsoluteRelocation = RelocationKind("absolute")

	// value = S + A - P, where P is the address of the relocated field.
	//
	// NOTE: For x86-style displacements relative to the end of the
	// instruction, A already accounts for the distance between the field and
	// the end of the instruction (e.g., A = -4 for a rel32 field at the end of
	// the instruction).  This is equivalent to SystemV ABI's R_X86_64_PC32.
	RelativeRelocation = RelocationKind("relative")

	// value = segment (section identity) of S
	SegmentRelocation = RelocationKind("segment")

	// value = S - T + A, where T is the subtrahend symbol.
	DifferenceRelocation = RelocationKind("difference")
)

type Relocation struct {
	Kind RelocationKind

	Section string // the section containing the relocated field
	Offset  int64  // relative to the beginning of the section

	Symbol          string
	SymbolIsSection bool // Symbol names a section's base

	// Only used by DifferenceRelocation.
	Subtrahend          string
	SubtrahendIsSection bool

	Addend int64

	Size       int
	Bits       int
	Shift      uint
	Signedness Signedness

	Loc parseutil.Location
}

func (reloc Relocation) String() string {
	target := reloc.Symbol
	if reloc.SymbolIsSection {
		target = "[" + target + "]"
	}

	if reloc.Kind == DifferenceRelocation {
		subtrahend := reloc.Subtrahend
		if reloc.SubtrahendIsSection {
			subtrahend = "[" + subtrahend + "]"
		}
		target += " - " + subtrahend
	}

	width := fmt.Sprintf("%d", reloc.Size*8)
	if reloc.Bits > 0 {
		width = fmt.Sprintf("%d/%d", reloc.Bits, reloc.Size*8)
	}

	return fmt.Sprintf(
		"%s+0x%x %s%s %s %+d",
		reloc.Section,
		reloc.Offset,
		reloc.Kind,
		width,
		target,
		reloc.Addend)
}

// A finalized section's contents.
type OutputSection struct {
	Name  string
	Align int64
	Code  bool

	// When true, the section occupies no file space.  Bytes is nil.
	NoBits bool

	// Only meaningful when Placed.
	Address int64
	Placed  bool

	Size  int64
	Bytes []byte

	// Sorted by offset.
	Relocations []Relocation
}

type OutputSymbol struct {
	Name   string
	Global bool
	Status string

	// Empty for absolute, external and common symbols.
	Section string

	// Section relative offset for relocatable symbols, the absolute value for
	// absolute symbols, the size for common symbols.
	Value int64
}

type Output struct {
	Architecture ArchitectureName
	AddressSize  int

	Sections []*OutputSection
	Symbols  []OutputSymbol
}
