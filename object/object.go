package object

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/platform"
	"github.com/pattyshack/assembly/symbol"
)

// Object is the whole translation unit.  Every symbol referenced by any
// bytecode is registered in Symbols (possibly as undefined).
type Object struct {
	Name string

	Architecture platform.Architecture
	Format       platform.Format

	Symbols *symbol.Table

	Sections []*Section
	sections map[string]*Section
}

var _ symbol.Locator = &Object{}

func NewObject(
	name string,
	arch platform.Architecture,
	format platform.Format,
) *Object {
	return &Object{
		Name:         name,
		Architecture: arch,
		Format:       format,
		Symbols:      symbol.NewTable(),
		sections:     map[string]*Section{},
	}
}

func (obj *Object) LookupSection(name string) (*Section, bool) {
	section, ok := obj.sections[name]
	return section, ok
}

// OpenSection returns the named section, creating it on first use.
// Reopening a section may raise its alignment, but cannot change its
// placement or kind.
func (obj *Object) OpenSection(
	name string,
	attrs SectionAttributes,
	loc parseutil.Location,
) (
	*Section,
	error,
) {
	if attrs.Align != 0 && !isPowerOfTwo(attrs.Align) {
		return nil, asmerr.New(
			asmerr.Semantic,
			loc,
			"section %s alignment (%d) is not a power of two",
			name,
			attrs.Align)
	}

	section, ok := obj.sections[name]
	if ok {
		if attrs.HasStart &&
			(!section.HasStart || section.Start != attrs.Start) {
			return nil, asmerr.New(
				asmerr.Semantic,
				loc,
				"conflicting start address for section %s",
				name)
		}

		if attrs.NoBits != section.NoBits {
			return nil, asmerr.New(
				asmerr.Semantic,
				loc,
				"conflicting nobits attribute for section %s",
				name)
		}

		if attrs.Align > section.Align {
			section.Align = attrs.Align
		}
		return section, nil
	}

	section = &Section{
		SectionAttributes: attrs,
		Name:              name,
		Object:            obj,
		Index:             len(obj.Sections),
		Loc:               loc,
	}
	obj.Sections = append(obj.Sections, section)
	obj.sections[name] = section
	return section, nil
}

// AppendBytecode adds content to the tail of section.  Prior bytecodes'
// order and indices are unaffected.
func (obj *Object) AppendBytecode(
	section *Section,
	content Content,
	pos parseutil.StartEndPos,
) (
	*Bytecode,
	error,
) {
	if section.Object != obj {
		return nil, asmerr.New(
			asmerr.Semantic,
			pos.Loc(),
			"section %s does not belong to object %s",
			section.Name,
			obj.Name)
	}

	if section.NoBits {
		switch content.Kind() {
		case ReserveKind, AlignKind, OrgKind, GapKind:
		default:
			return nil, asmerr.New(
				asmerr.Semantic,
				pos.Loc(),
				"%s content not allowed in nobits section %s",
				content.Kind(),
				section.Name)
		}
	}

	align, ok := content.(*AlignContent)
	if ok && !isPowerOfTwo(align.Boundary) {
		return nil, asmerr.New(
			asmerr.Semantic,
			pos.Loc(),
			"align boundary (%d) is not a power of two",
			align.Boundary)
	}

	for _, expr := range content.Expressions() {
		err := obj.registerReferences(expr)
		if err != nil {
			return nil, err
		}
	}

	if ok && align.Boundary > section.Align {
		section.Align = align.Boundary
	}

	bc := &Bytecode{
		StartEndPos: pos,
		Section:     section,
		Index:       len(section.bytecodes),
		Content:     content,
	}
	content.bind(bc)
	section.bytecodes = append(section.bytecodes, bc)
	return bc, nil
}

// registerReferences declares every referenced symbol and validates
// register references against the object's architecture.
func (obj *Object) registerReferences(expr expression.Expr) error {
	var err error
	expr.Walk(visitor(func(node expression.Expr) {
		switch ref := node.(type) {
		case *expression.SymbolRef:
			obj.Symbols.Reference(ref.Name, ref.Loc())
		case *expression.RegisterRef:
			_, ok := obj.Architecture.Registers().Lookup(ref.Name)
			if !ok && err == nil {
				err = asmerr.New(
					asmerr.Semantic,
					ref.Loc(),
					"unknown %s register (%s)",
					obj.Architecture.Name(),
					ref.Name)
			}
		}
	}))
	return err
}

type visitor func(expression.Expr)

func (v visitor) Enter(expr expression.Expr) { v(expr) }
func (visitor) Exit(expression.Expr)         {}

func (obj *Object) DeclareSymbol(
	name string,
	visibility symbol.Visibility,
	loc parseutil.Location,
) *symbol.Symbol {
	return obj.Symbols.Declare(name, visibility, loc)
}

// DefineLabel defines name as the current end of section, i.e., the start
// of the next bytecode appended to it.
func (obj *Object) DefineLabel(
	name string,
	section *Section,
	loc parseutil.Location,
) (
	*symbol.Symbol,
	error,
) {
	return obj.Symbols.DefineLabel(name, section.Name, section.Len(), loc)
}

// DefineSymbol defines name as the value of expr (an equate).
func (obj *Object) DefineSymbol(
	name string,
	value expression.Expr,
	loc parseutil.Location,
) (
	*symbol.Symbol,
	error,
) {
	err := obj.registerReferences(value)
	if err != nil {
		return nil, err
	}

	return obj.Symbols.DefineEquate(name, value, loc)
}

func (obj *Object) DefineExternal(
	name string,
	loc parseutil.Location,
) (
	*symbol.Symbol,
	error,
) {
	return obj.Symbols.DefineExternal(name, loc)
}

func (obj *Object) DefineCommon(
	name string,
	size expression.Expr,
	loc parseutil.Location,
) (
	*symbol.Symbol,
	error,
) {
	err := obj.registerReferences(size)
	if err != nil {
		return nil, err
	}

	return obj.Symbols.DefineCommon(name, size, loc)
}

// NewInstruction creates instruction content via the object's architecture.
func (obj *Object) NewInstruction(
	mnemonic string,
	operands ...expression.Expr,
) (
	*InstructionContent,
	error,
) {
	insn, err := obj.Architecture.NewInstruction(mnemonic, operands)
	if err != nil {
		return nil, err
	}
	return NewInstruction(insn), nil
}

func (obj *Object) LabelValue(
	sectionName string,
	index int,
) (
	expression.Expr,
	error,
) {
	section, ok := obj.sections[sectionName]
	if !ok {
		return nil, asmerr.New(
			asmerr.Semantic,
			parseutil.Location{},
			"unknown section %s",
			sectionName)
	}

	offset, err := section.OffsetOf(index)
	if err != nil {
		return nil, err
	}

	return section.position(offset), nil
}

func (obj *Object) Segment(sectionName string) expression.Expr {
	return &expression.SegmentRef{Section: sectionName}
}

// Environment returns a substitution environment reflecting the current
// layout.
func (obj *Object) Environment() expression.Environment {
	return obj.Symbols.Environment(obj)
}

// NumBytecodes returns the total number of bytecodes across all sections.
func (obj *Object) NumBytecodes() int {
	total := 0
	for _, section := range obj.Sections {
		total += section.Len()
	}
	return total
}

// position returns the address expression of the given section offset.
func (section *Section) position(offset int64) expression.Expr {
	if section.Placed {
		return expression.NewInt(section.Address + offset)
	}

	return expression.Sum(
		expression.NewSectionBase(section.Name),
		expression.NewInt(offset))
}
