package expression

import (
	"github.com/pattyshack/assembly/asmerr"
)

type Term struct {
	// One of *SymbolRef, *SectionBase, *SegmentRef or *RegisterRef.
	Base Expr

	Coefficient int64
}

// A linear combination of leaf terms plus a constant.
type Linear struct {
	Constant int64
	Terms    []Term
}

func (linear Linear) IsConstant() bool {
	return len(linear.Terms) == 0
}

// Coefficient returns the coefficient of the given leaf (0 if absent).
func (linear Linear) Coefficient(leaf Expr) int64 {
	key := leafKey(leaf)
	for _, term := range linear.Terms {
		if leafKey(term.Base) == key {
			return term.Coefficient
		}
	}
	return 0
}

// Without returns a copy of the combination with the given leaf removed.
func (linear Linear) Without(leaf Expr) Linear {
	key := leafKey(leaf)
	result := Linear{Constant: linear.Constant}
	for _, term := range linear.Terms {
		if leafKey(term.Base) != key {
			result.Terms = append(result.Terms, term)
		}
	}
	return result
}

func (linear Linear) add(other Linear, scale int64) Linear {
	result := Linear{
		Constant: linear.Constant + scale*other.Constant,
		Terms:    append([]Term{}, linear.Terms...),
	}

	for _, term := range other.Terms {
		key := leafKey(term.Base)
		found := false
		for idx, existing := range result.Terms {
			if leafKey(existing.Base) == key {
				result.Terms[idx].Coefficient += scale * term.Coefficient
				found = true
				break
			}
		}

		if !found {
			result.Terms = append(
				result.Terms,
				Term{Base: term.Base, Coefficient: scale * term.Coefficient})
		}
	}

	terms := result.Terms[:0]
	for _, term := range result.Terms {
		if term.Coefficient != 0 {
			terms = append(terms, term)
		}
	}
	result.Terms = terms

	return result
}

// Linearize reduces an integer expression to a linear combination of leaf
// terms.  Non-linear use of symbolic terms (e.g., shifting a relocatable
// value) and floating point values are Semantic errors.
func Linearize(expr Expr) (Linear, error) {
	switch node := expr.(type) {
	case *IntConst:
		return Linear{Constant: node.Value}, nil
	case *FloatConst:
		return Linear{}, asmerr.New(
			asmerr.Semantic,
			node.Loc(),
			"floating point value %s used in integer context",
			node)
	case *Operation:
		return linearizeOperation(node)
	default:
		if Leaf(expr) {
			return Linear{Terms: []Term{{Base: expr, Coefficient: 1}}}, nil
		}
		return Linear{}, asmerr.New(
			asmerr.Semantic,
			expr.Loc(),
			"unexpected expression %s",
			expr)
	}
}

func linearizeOperation(op *Operation) (Linear, error) {
	if op.Op == SegmentOf {
		return Linear{}, asmerr.New(
			asmerr.Semantic,
			op.Loc(),
			"unsubstituted segment-of expression %s",
			op)
	}

	operands := make([]Linear, 0, len(op.Operands))
	for _, operand := range op.Operands {
		linear, err := Linearize(operand)
		if err != nil {
			return Linear{}, err
		}
		operands = append(operands, linear)
	}

	switch op.Op {
	case Add:
		result := Linear{}
		for _, operand := range operands {
			result = result.add(operand, 1)
		}
		return result, nil
	case Sub:
		return operands[0].add(operands[1], -1), nil
	case Neg:
		return Linear{}.add(operands[0], -1), nil
	case Mul:
		result := Linear{Constant: 1}
		for _, operand := range operands {
			if operand.IsConstant() {
				result = Linear{}.add(result, operand.Constant)
			} else if result.IsConstant() {
				result = Linear{}.add(operand, result.Constant)
			} else {
				return Linear{}, tooComplex(op)
			}
		}
		return result, nil
	}

	for _, operand := range operands {
		if !operand.IsConstant() {
			return Linear{}, tooComplex(op)
		}
	}

	left := operands[0].Constant
	switch op.Op {
	case Not:
		return Linear{Constant: ^left}, nil
	case And:
		for _, operand := range operands[1:] {
			left &= operand.Constant
		}
		return Linear{Constant: left}, nil
	case Or:
		for _, operand := range operands[1:] {
			left |= operand.Constant
		}
		return Linear{Constant: left}, nil
	case Xor:
		for _, operand := range operands[1:] {
			left ^= operand.Constant
		}
		return Linear{Constant: left}, nil
	}

	right := operands[1].Constant
	switch op.Op {
	case Shl, Shr:
		if right < 0 {
			return Linear{}, asmerr.New(
				asmerr.Semantic,
				op.Loc(),
				"negative shift count %d",
				right)
		}
		if right >= 64 {
			if op.Op == Shr && left < 0 {
				return Linear{Constant: -1}, nil
			}
			return Linear{}, nil
		}
		if op.Op == Shl {
			return Linear{Constant: left << uint(right)}, nil
		}
		return Linear{Constant: left >> uint(right)}, nil
	case Div, Mod:
		if right == 0 {
			return Linear{}, asmerr.New(asmerr.Semantic, op.Loc(), "division by zero")
		}
		if op.Op == Div {
			return Linear{Constant: left / right}, nil
		}
		return Linear{Constant: left % right}, nil
	}

	return Linear{}, asmerr.New(
		asmerr.Semantic,
		op.Loc(),
		"unexpected operator (%s)",
		op.Op)
}

func tooComplex(op *Operation) error {
	return asmerr.New(
		asmerr.Semantic,
		op.Loc(),
		"expression too complex: %s",
		op)
}
