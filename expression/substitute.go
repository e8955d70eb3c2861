package expression

import (
	"fmt"

	"github.com/pattyshack/assembly/asmerr"
)

type State int

const (
	// A referenced symbol has no value yet.
	Unresolved = State(iota)

	// The expression reduced to a residual tree that still references
	// symbolic terms (external symbols, linker-placed section bases,
	// segments, registers).
	PartiallyResolved

	// The expression reduced to an integer or floating point constant.
	Resolved
)

func (state State) String() string {
	switch state {
	case Unresolved:
		return "unresolved"
	case PartiallyResolved:
		return "partially-resolved"
	case Resolved:
		return "resolved"
	default:
		return fmt.Sprintf("State(%d)", int(state))
	}
}

type Result struct {
	State State

	// The reduced (simplified) expression.  nil iff State is Unresolved.
	Expr Expr

	// The first symbol that blocked resolution.  Only set when Unresolved.
	Missing string
}

func (result Result) Int() (int64, bool) {
	if result.State != Resolved {
		return 0, false
	}
	value, ok := result.Expr.(*IntConst)
	if !ok {
		return 0, false
	}
	return value.Value, true
}

func (result Result) Float() (float64, bool) {
	if result.State != Resolved {
		return 0, false
	}
	switch value := result.Expr.(type) {
	case *FloatConst:
		return value.Value, true
	case *IntConst:
		return float64(value.Value), true
	}
	return 0, false
}

func (result Result) String() string {
	switch result.State {
	case Unresolved:
		return "unresolved(" + result.Missing + ")"
	default:
		return result.Expr.String()
	}
}

// Binding describes a symbol's current value, as known by the environment.
type Binding struct {
	// False if the symbol is not (yet) defined.
	Defined bool

	// The expression that replaces a reference to the symbol.  The
	// expression may itself reference other symbols (e.g., an equate).  nil
	// keeps the reference symbolic (external / common symbols).
	Value Expr

	// The symbol's segment (section identity).  nil if the symbol does not
	// belong to any segment (e.g., an absolute equate).
	Segment Expr
}

type Environment interface {
	LookupSymbol(name string) (Binding, error)
}

// Substitute replaces every symbol reference in expr with the symbol's
// currently known value (and every segment-of with its operand's segment),
// then simplifies the result.
func Substitute(expr Expr, env Environment) (Result, error) {
	sub := &substituter{
		env:      env,
		visiting: map[string]struct{}{},
	}

	substituted, err := sub.substitute(expr)
	if err != nil {
		return Result{}, err
	}

	if sub.missing != "" {
		return Result{
			State:   Unresolved,
			Missing: sub.missing,
		}, nil
	}

	simplified := Simplify(substituted)
	switch simplified.(type) {
	case *IntConst, *FloatConst:
		return Result{State: Resolved, Expr: simplified}, nil
	default:
		return Result{State: PartiallyResolved, Expr: simplified}, nil
	}
}

type substituter struct {
	env Environment

	// Equates currently being expanded, for cycle detection.
	visiting map[string]struct{}

	missing string
}

func (sub *substituter) substitute(expr Expr) (Expr, error) {
	switch node := expr.(type) {
	case *SymbolRef:
		return sub.symbol(node)
	case *Operation:
		if node.Op == SegmentOf {
			return sub.segment(node)
		}

		operands := make([]Expr, 0, len(node.Operands))
		for _, operand := range node.Operands {
			replaced, err := sub.substitute(operand)
			if err != nil {
				return nil, err
			}
			operands = append(operands, replaced)
		}

		return &Operation{
			StartEndPos: node.StartEndPos,
			Op:          node.Op,
			Operands:    operands,
		}, nil
	default:
		return expr, nil
	}
}

func (sub *substituter) lookup(ref *SymbolRef) (Binding, bool, error) {
	binding, err := sub.env.LookupSymbol(ref.Name)
	if err != nil {
		return Binding{}, false, err
	}

	if !binding.Defined {
		if sub.missing == "" {
			sub.missing = ref.Name
		}
		return Binding{}, false, nil
	}

	return binding, true, nil
}

func (sub *substituter) symbol(ref *SymbolRef) (Expr, error) {
	binding, ok, err := sub.lookup(ref)
	if err != nil || !ok {
		return ref, err
	}

	if binding.Value == nil {
		return ref, nil
	}

	_, ok = sub.visiting[ref.Name]
	if ok {
		return nil, asmerr.New(
			asmerr.Semantic,
			ref.Loc(),
			"circular reference to symbol %s",
			ref.Name)
	}

	sub.visiting[ref.Name] = struct{}{}
	defer delete(sub.visiting, ref.Name)

	return sub.substitute(binding.Value)
}

func (sub *substituter) segment(op *Operation) (Expr, error) {
	ref := op.Operands[0].(*SymbolRef)
	binding, ok, err := sub.lookup(ref)
	if err != nil || !ok {
		return op, err
	}

	if binding.Segment == nil {
		return nil, asmerr.New(
			asmerr.Semantic,
			ref.Loc(),
			"symbol %s does not belong to any segment",
			ref.Name)
	}

	return binding.Segment, nil
}
