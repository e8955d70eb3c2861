package symbol

import (
	"github.com/pattyshack/gt/parseutil"
	"github.com/pattyshack/gt/stringutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/expression"
)

// Locator maps symbol positions to their current address expressions.  It
// is provided by the object that owns the sections.
type Locator interface {
	// LabelValue returns the current value of the position at index within
	// the named section.  The value is an absolute address if the section
	// has been placed, or relative to the section's base otherwise.
	LabelValue(section string, index int) (expression.Expr, error)

	// Segment returns the segment expression of the named section.
	Segment(section string) expression.Expr
}

type Table struct {
	names *stringutil.InternPool

	symbols map[string]*Symbol
	order   []*Symbol // declaration order
}

func NewTable() *Table {
	return &Table{
		names:   stringutil.NewInternPool(),
		symbols: map[string]*Symbol{},
	}
}

func (table *Table) Lookup(name string) (*Symbol, bool) {
	sym, ok := table.symbols[name]
	return sym, ok
}

// Symbols returns all symbols in declaration order.
func (table *Table) Symbols() []*Symbol {
	return table.order
}

// Declare returns the existing entry for name, or creates an undefined one.
// Repeated declarations never fail; this is how forward references work.
// Declaring a symbol as global upgrades its visibility.
func (table *Table) Declare(
	name string,
	visibility Visibility,
	loc parseutil.Location,
) *Symbol {
	sym, ok := table.symbols[name]
	if !ok {
		name = table.names.Intern(name)
		sym = &Symbol{
			Name:       name,
			Status:     Undefined,
			Visibility: Local,
			DeclaredAt: loc,
		}
		table.symbols[name] = sym
		table.order = append(table.order, sym)
	}

	if visibility == Global {
		sym.Visibility = Global
	}

	return sym
}

// Reference declares name (if needed) and records a use site.
func (table *Table) Reference(name string, loc parseutil.Location) *Symbol {
	sym := table.Declare(name, Local, loc)
	if !sym.Referenced {
		sym.Referenced = true
		sym.ReferencedAt = loc
	}
	return sym
}

func (table *Table) define(
	name string,
	status Status,
	loc parseutil.Location,
) (
	*Symbol,
	error,
) {
	sym := table.Declare(name, Local, loc)
	if sym.IsDefined() {
		return nil, &asmerr.Error{
			Kind:    asmerr.DuplicateDefinition,
			Loc:     loc,
			Related: []parseutil.Location{sym.DefinedAt},
			Message: "symbol " + sym.Name + " redefined",
		}
	}

	sym.Status = status
	sym.DefinedAt = loc
	return sym, nil
}

func (table *Table) DefineLabel(
	name string,
	section string,
	index int,
	loc parseutil.Location,
) (
	*Symbol,
	error,
) {
	sym, err := table.define(name, DefinedRelocatable, loc)
	if err != nil {
		return nil, err
	}

	sym.Section = section
	sym.Index = index
	return sym, nil
}

func (table *Table) DefineEquate(
	name string,
	value expression.Expr,
	loc parseutil.Location,
) (
	*Symbol,
	error,
) {
	sym, err := table.define(name, DefinedAbsolute, loc)
	if err != nil {
		return nil, err
	}

	sym.Expr = value
	sym.IsEquate = true
	return sym, nil
}

// DefineExternal marks name as defined in another translation unit.
// Repeated external declarations are allowed.
func (table *Table) DefineExternal(
	name string,
	loc parseutil.Location,
) (
	*Symbol,
	error,
) {
	sym, ok := table.symbols[name]
	if ok && sym.Status == External {
		return sym, nil
	}

	sym, err := table.define(name, External, loc)
	if err != nil {
		return nil, err
	}

	sym.Visibility = Global
	return sym, nil
}

func (table *Table) DefineCommon(
	name string,
	size expression.Expr,
	loc parseutil.Location,
) (
	*Symbol,
	error,
) {
	sym, err := table.define(name, Common, loc)
	if err != nil {
		return nil, err
	}

	sym.Expr = size
	sym.Visibility = Global
	return sym, nil
}

// Environment returns a substitution environment backed by the table's
// current definitions.
func (table *Table) Environment(locator Locator) expression.Environment {
	return environment{
		table:   table,
		locator: locator,
	}
}

// ResolvePass recomputes and caches every symbol's value given the current
// positions.  Values may still change in subsequent passes.
func (table *Table) ResolvePass(locator Locator) (int, error) {
	env := table.Environment(locator)

	for _, sym := range table.order {
		if sym.IsEquate {
			table.classifyEquate(sym, map[string]struct{}{})
		}
	}

	numResolved := 0
	for _, sym := range table.order {
		if !sym.IsDefined() {
			sym.Value = expression.Result{
				State:   expression.Unresolved,
				Missing: sym.Name,
			}
			continue
		}

		ref := &expression.SymbolRef{Name: sym.Name}
		ref.StartPos = sym.DefinedAt
		ref.EndPos = sym.DefinedAt

		result, err := expression.Substitute(ref, env)
		if err != nil {
			return numResolved, err
		}

		sym.Value = result
		if result.State == expression.Resolved {
			numResolved++
		}
	}

	return numResolved, nil
}

// classifyEquate returns the section an equate's value is relative to, and
// updates the equate's status accordingly.  An equate is relocatable when
// its symbol terms net out to exactly one label position with coefficient
// one (e.g., label + 4); differences of labels in the same section are
// absolute.  Equates that cannot be linearized stay absolute; their values
// are checked when used.
func (table *Table) classifyEquate(
	sym *Symbol,
	visiting map[string]struct{},
) string {
	_, ok := visiting[sym.Name]
	if ok {
		// Circular definitions are reported by Substitute.
		return ""
	}
	visiting[sym.Name] = struct{}{}
	defer delete(visiting, sym.Name)

	sym.Status = DefinedAbsolute
	sym.Section = ""

	linear, err := expression.Linearize(sym.Expr)
	if err != nil {
		return ""
	}

	coefficients := map[string]int64{}
	sections := []string{}
	for _, term := range linear.Terms {
		ref, ok := term.Base.(*expression.SymbolRef)
		if !ok {
			continue
		}

		other, ok := table.symbols[ref.Name]
		if !ok {
			continue
		}

		section := ""
		switch {
		case other.IsEquate:
			section = table.classifyEquate(other, visiting)
		case other.Status == DefinedRelocatable:
			section = other.Section
		}

		if section == "" {
			continue
		}

		_, ok = coefficients[section]
		if !ok {
			sections = append(sections, section)
		}
		coefficients[section] += term.Coefficient
	}

	result := ""
	for _, section := range sections {
		switch coefficients[section] {
		case 0:
		case 1:
			if result != "" {
				return ""
			}
			result = section
		default:
			return ""
		}
	}

	if result != "" {
		sym.Status = DefinedRelocatable
		sym.Section = result
	}
	return result
}

// Finalize reports every symbol that is referenced (or exported) but was
// never defined.  External symbols are legal and deferred to the linker.
func (table *Table) Finalize() error {
	emitter := &parseutil.Emitter{}
	for _, sym := range table.order {
		if sym.IsDefined() {
			continue
		}

		if sym.Referenced {
			emitter.EmitErrors(
				asmerr.New(
					asmerr.UndefinedSymbol,
					sym.ReferencedAt,
					"symbol %s referenced but never defined",
					sym.Name))
		} else if sym.Visibility == Global {
			emitter.EmitErrors(
				asmerr.New(
					asmerr.UndefinedSymbol,
					sym.DeclaredAt,
					"global symbol %s never defined",
					sym.Name))
		}
	}

	return asmerr.Join(emitter)
}

type environment struct {
	table   *Table
	locator Locator
}

func (env environment) LookupSymbol(name string) (expression.Binding, error) {
	sym, ok := env.table.symbols[name]
	if !ok {
		return expression.Binding{}, nil
	}

	if sym.IsEquate {
		binding := expression.Binding{
			Defined: true,
			Value:   sym.Expr,
		}
		if sym.Status == DefinedRelocatable {
			binding.Segment = env.locator.Segment(sym.Section)
		}
		return binding, nil
	}

	switch sym.Status {
	case Undefined:
		return expression.Binding{}, nil
	case External, Common:
		return expression.Binding{
			Defined: true,
			Segment: &expression.SegmentRef{Symbol: sym.Name},
		}, nil
	case DefinedRelocatable:
		value, err := env.locator.LabelValue(sym.Section, sym.Index)
		if err != nil {
			return expression.Binding{}, err
		}
		return expression.Binding{
			Defined: true,
			Value:   value,
			Segment: env.locator.Segment(sym.Section),
		}, nil
	default:
		return expression.Binding{
			Defined: true,
			Value:   sym.Expr,
		}, nil
	}
}
