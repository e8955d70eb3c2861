package platform

import (
	"encoding/binary"
	"io"

	"github.com/pattyshack/assembly/expression"
)

type ArchitectureName string
type FormatName string

const (
	X86  = ArchitectureName("x86")
	Mips = ArchitectureName("mips")

	Flat    = FormatName("flat")
	Listing = FormatName("listing")
)

// An architecture-specific instruction pending encoding.  Instructions are
// created by the architecture module and may carry mutable encoding state
// (e.g., the currently selected branch form).
type Instruction interface {
	Mnemonic() string

	// All expressions referenced by the instruction's operands.
	Operands() []expression.Expr
}

// Architecture modules are selected once per object and invoked uniformly
// thereafter.
//
// Length contract: TentativeLength must be a lower bound of every length
// ResolveLength may return, and successive ResolveLength calls within one
// optimization run must never return a smaller length than a previous call
// (i.e., encodings only ever grow).  Encode must produce exactly ctx.Length()
// bytes.
type Architecture interface {
	Name() ArchitectureName

	// In bits.
	AddressSize() int

	ByteOrder() binary.ByteOrder

	Registers() *ArchitectureRegisters

	NewInstruction(
		mnemonic string,
		operands []expression.Expr,
	) (
		Instruction,
		error,
	)

	// Whether the instruction's length depends on offsets / symbol values.
	IsVariable(Instruction) bool

	TentativeLength(Instruction, LengthContext) (int64, error)

	ResolveLength(Instruction, LengthContext) (int64, error)

	Encode(Instruction, EncodeContext) ([]byte, error)

	// Padding for code sections.
	Fill(length int64) ([]byte, error)
}

// Object format modules consume the finalized sections and relocations.
type Format interface {
	Name() FormatName

	// When true, every section is assigned a fixed address during layout
	// (flat binaries).  Otherwise, sections without an explicit start address
	// are placed by the linker, and references to their positions from other
	// sections require relocations.
	PlacesSections() bool

	SupportsRelocation(Relocation) bool

	Serialize(io.Writer, *Output) error
}

type LengthContext interface {
	Section() string

	// The bytecode's offset within its section.  Provisional until the
	// layout converges.
	Offset() int64

	// The bytecode's current length.
	Length() int64

	// Evaluate substitutes the current symbol values into expr.
	Evaluate(expr expression.Expr) (expression.Result, error)

	// Relative evaluates expr minus the address of the bytecode's start plus
	// origin (e.g., origin = length for x86-style end-of-instruction
	// relative displacements).
	Relative(expr expression.Expr, origin int64) (expression.Result, error)
}

type EncodeContext interface {
	LengthContext

	// OutputValue resolves expr into the field of buf (the bytecode's
	// encoding).  Constants are range checked and written in place;
	// relocatable values are zero filled and recorded as relocations.
	OutputValue(buf []byte, expr expression.Expr, field Field) error
}
