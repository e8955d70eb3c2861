package object

import (
	"fmt"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/platform"
)

type Kind string

const (
	DataKind        = Kind("data")
	ReserveKind     = Kind("reserve")
	InstructionKind = Kind("instruction")
	AlignKind       = Kind("align")
	OrgKind         = Kind("org")
	GapKind         = Kind("gap")
)

// Content is the variant part of a bytecode.  The set of variants is closed.
type Content interface {
	Kind() Kind

	// All expressions referenced by the content.
	Expressions() []expression.Expr

	// Whether the length must be recomputed during every resize pass.
	IsVariable() bool

	TentativeLength(ctx platform.LengthContext) (int64, error)

	// Must never return a smaller length than a previous call within the
	// same optimization run.
	ResolveLength(ctx platform.LengthContext) (int64, error)

	// Returns exactly ctx.Length() bytes.
	Encode(ctx platform.EncodeContext) ([]byte, error)

	String() string

	bind(*Bytecode)
}

// Padding contents (alignment / origin) have lengths that are a pure
// function of their position.  They are recomputed during offset assignment
// instead of the resize pass, and are exempt from the growth contract.
type Padding interface {
	Content

	PaddingLength(address int64, offset int64) int64
}

type contentBase struct {
	bytecode *Bytecode
}

func (base *contentBase) bind(bc *Bytecode) {
	base.bytecode = bc
}

func (base *contentBase) section() *Section {
	return base.bytecode.Section
}

func (base *contentBase) architecture() platform.Architecture {
	return base.bytecode.Section.Object.Architecture
}

// A bytecode record.  Bytecodes are addressed by (section, index), which is
// stable for the lifetime of the object.
type Bytecode struct {
	parseutil.StartEndPos

	Section *Section
	Index   int

	Content Content

	// Provisional until the layout converges.
	Offset int64
	Length int64

	// Number of times a resize pass grew the bytecode.
	Expansions int

	// Set by the final encoding pass.
	Bytes []byte
}

func (bc *Bytecode) EndOffset() int64 {
	return bc.Offset + bc.Length
}

// Address returns the bytecode's absolute address, if its section is
// placed.
func (bc *Bytecode) Address() (int64, bool) {
	if !bc.Section.Placed {
		return 0, false
	}
	return bc.Section.Address + bc.Offset, true
}

func (bc *Bytecode) String() string {
	return fmt.Sprintf("%s#%d (%s)", bc.Section.Name, bc.Index, bc.Content.Kind())
}
