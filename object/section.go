package object

import (
	"fmt"
	"iter"

	"github.com/pattyshack/gt/parseutil"
)

type SectionAttributes struct {
	// Power of two.  Zero is treated as 1.
	Align int64

	// When HasStart is true, the section is absolute and starts at Start.
	HasStart bool
	Start    int64

	// Code sections are padded with the architecture's fill pattern.
	Code bool

	// The section occupies no file space (e.g., bss).  Only uninitialized
	// contents are allowed.
	NoBits bool
}

type Section struct {
	SectionAttributes

	Name   string
	Object *Object

	// Declaration order within the object.
	Index int

	// Address is only meaningful when Placed.  A section is placed when it
	// is absolute, or when the object format places every section.
	Address int64
	Placed  bool

	// Total length of the section's bytecodes, as of the last offset
	// assignment pass.
	Size int64

	bytecodes []*Bytecode

	Loc parseutil.Location
}

func (section *Section) String() string {
	return section.Name
}

func (section *Section) Len() int {
	return len(section.bytecodes)
}

func (section *Section) Bytecode(index int) *Bytecode {
	return section.bytecodes[index]
}

func (section *Section) Bytecodes() []*Bytecode {
	return section.bytecodes
}

// All returns a restartable, finite, in-order sequence of the section's
// bytecodes.
func (section *Section) All() iter.Seq2[int, *Bytecode] {
	return func(yield func(int, *Bytecode) bool) {
		for idx, bc := range section.bytecodes {
			if !yield(idx, bc) {
				return
			}
		}
	}
}

// OffsetOf returns the current offset of the position at index, where
// index == Len() denotes the end of the section.
func (section *Section) OffsetOf(index int) (int64, error) {
	if index < 0 || index > len(section.bytecodes) {
		return 0, fmt.Errorf(
			"position %d out of range for section %s (%d bytecodes)",
			index,
			section.Name,
			len(section.bytecodes))
	}

	if index == len(section.bytecodes) {
		return section.Size, nil
	}
	return section.bytecodes[index].Offset, nil
}

func (section *Section) alignment() int64 {
	if section.Align <= 0 {
		return 1
	}
	return section.Align
}

func (section *Section) Alignment() int64 {
	return section.alignment()
}

func AlignUp(value int64, boundary int64) int64 {
	if boundary <= 1 {
		return value
	}
	remainder := value % boundary
	if remainder < 0 {
		remainder += boundary
	}
	if remainder == 0 {
		return value
	}
	return value + boundary - remainder
}

func isPowerOfTwo(value int64) bool {
	return value > 0 && value&(value-1) == 0
}
