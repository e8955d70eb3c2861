package symbol

import (
	"fmt"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/expression"
)

type Status string

const (
	Undefined = Status("undefined")

	// Defined by an equate whose value does not depend on any section.
	DefinedAbsolute = Status("defined-absolute")

	// Defined as a position within a section: a label, or an equate of the
	// form label + constant.  Equates are classified by ResolvePass.
	DefinedRelocatable = Status("defined-relocatable")

	// Common block allocated by the linker.
	Common = Status("common")

	// Defined in another translation unit.
	External = Status("external")
)

type Visibility string

const (
	Local  = Visibility("local")
	Global = Visibility("global")
)

type Symbol struct {
	Name       string
	Status     Status
	Visibility Visibility

	// Position of a relocatable symbol: the symbol refers to the start of
	// the bytecode at Index within Section (or the section's end when Index
	// equals the section's bytecode count).
	Section string
	Index   int

	// Value expression for equates, size expression for common symbols.
	Expr expression.Expr

	IsEquate bool

	// The value computed by the most recent resolve pass.
	Value expression.Result

	DeclaredAt   parseutil.Location
	DefinedAt    parseutil.Location
	ReferencedAt parseutil.Location

	Referenced bool
}

func (sym *Symbol) IsDefined() bool {
	return sym.Status != Undefined
}

func (sym *Symbol) String() string {
	switch {
	case sym.IsEquate:
		return fmt.Sprintf(
			"%s (%s, %s, %s)",
			sym.Name,
			sym.Status,
			sym.Visibility,
			sym.Expr)
	case sym.Status == DefinedRelocatable:
		return fmt.Sprintf(
			"%s (%s, %s, %s#%d)",
			sym.Name,
			sym.Status,
			sym.Visibility,
			sym.Section,
			sym.Index)
	case sym.Status == DefinedAbsolute || sym.Status == Common:
		return fmt.Sprintf(
			"%s (%s, %s, %s)",
			sym.Name,
			sym.Status,
			sym.Visibility,
			sym.Expr)
	default:
		return fmt.Sprintf("%s (%s, %s)", sym.Name, sym.Status, sym.Visibility)
	}
}
