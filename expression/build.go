package expression

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
)

type Operator string

const (
	Add = Operator("add")
	Sub = Operator("sub")
	Mul = Operator("mul")
	Div = Operator("div") // signed, truncating
	Mod = Operator("mod") // signed
	Shl = Operator("shl")
	Shr = Operator("shr") // arithmetic
	And = Operator("and")
	Or  = Operator("or")
	Xor = Operator("xor")
	Not = Operator("not") // bitwise complement
	Neg = Operator("neg")

	SegmentOf = Operator("seg")
)

type arity int

const (
	unary = arity(iota)
	binary
	nary // two or more, associative
)

type operatorSpec struct {
	arity  arity
	symbol string

	allowFloat bool
}

var operators = map[Operator]operatorSpec{
	Add:       {arity: nary, symbol: "+", allowFloat: true},
	Sub:       {arity: binary, symbol: "-", allowFloat: true},
	Mul:       {arity: nary, symbol: "*", allowFloat: true},
	Div:       {arity: binary, symbol: "/", allowFloat: true},
	Mod:       {arity: binary, symbol: "%"},
	Shl:       {arity: binary, symbol: "<<"},
	Shr:       {arity: binary, symbol: ">>"},
	And:       {arity: nary, symbol: "&"},
	Or:        {arity: nary, symbol: "|"},
	Xor:       {arity: nary, symbol: "^"},
	Not:       {arity: unary, symbol: "~"},
	Neg:       {arity: unary, symbol: "-", allowFloat: true},
	SegmentOf: {arity: unary, symbol: "seg "},
}

func IsOperator(op Operator) bool {
	_, ok := operators[op]
	return ok
}

// Build constructs an operation node.  Operator arity and operand type
// combinations are checked eagerly; violations are Semantic errors.
func Build(op Operator, operands ...Expr) (Expr, error) {
	var pos parseutil.StartEndPos
	if len(operands) > 0 {
		pos = parseutil.NewStartEndPos(
			operands[0].Loc(),
			operands[len(operands)-1].End())
	}

	return BuildAt(pos, op, operands...)
}

func BuildAt(
	pos parseutil.StartEndPos,
	op Operator,
	operands ...Expr,
) (
	Expr,
	error,
) {
	spec, ok := operators[op]
	if !ok {
		return nil, asmerr.New(
			asmerr.Semantic,
			pos.Loc(),
			"unknown operator (%s)",
			op)
	}

	for _, operand := range operands {
		if operand == nil {
			return nil, asmerr.New(
				asmerr.Semantic,
				pos.Loc(),
				"nil operand for operator (%s)",
				op)
		}
	}

	switch spec.arity {
	case unary:
		if len(operands) != 1 {
			return nil, asmerr.New(
				asmerr.Semantic,
				pos.Loc(),
				"operator (%s) expects 1 operand, found %d",
				op,
				len(operands))
		}
	case binary:
		if len(operands) != 2 {
			return nil, asmerr.New(
				asmerr.Semantic,
				pos.Loc(),
				"operator (%s) expects 2 operands, found %d",
				op,
				len(operands))
		}
	case nary:
		if len(operands) < 2 {
			return nil, asmerr.New(
				asmerr.Semantic,
				pos.Loc(),
				"operator (%s) expects at least 2 operands, found %d",
				op,
				len(operands))
		}
	}

	err := checkOperands(pos, op, spec, operands)
	if err != nil {
		return nil, err
	}

	return &Operation{
		StartEndPos: pos,
		Op:          op,
		Operands:    operands,
	}, nil
}

func checkOperands(
	pos parseutil.StartEndPos,
	op Operator,
	spec operatorSpec,
	operands []Expr,
) error {
	if op == SegmentOf {
		_, ok := operands[0].(*SymbolRef)
		if !ok {
			return asmerr.New(
				asmerr.Semantic,
				operands[0].Loc(),
				"segment-of requires a symbol operand, found %s",
				operands[0])
		}
		return nil
	}

	if !spec.allowFloat {
		for _, operand := range operands {
			if ContainsFloat(operand) {
				return asmerr.New(
					asmerr.Semantic,
					operand.Loc(),
					"floating point operand not allowed for operator (%s)",
					op)
			}
		}
	}

	numRegisterOperands := 0
	for _, operand := range operands {
		if ContainsRegister(operand) {
			numRegisterOperands++
		}
	}

	if numRegisterOperands > 0 {
		switch op {
		case Add:
		case Sub:
			if ContainsRegister(operands[1]) {
				return asmerr.New(
					asmerr.Semantic,
					operands[1].Loc(),
					"cannot subtract a register")
			}
		case Mul:
			if numRegisterOperands > 1 {
				return asmerr.New(
					asmerr.Semantic,
					pos.Loc(),
					"cannot multiply registers together")
			}
		default:
			return asmerr.New(
				asmerr.Semantic,
				pos.Loc(),
				"register operand not allowed for operator (%s)",
				op)
		}
	}

	if op == Div || op == Mod {
		zero := false
		switch divisor := Simplify(operands[1]).(type) {
		case *IntConst:
			zero = divisor.Value == 0
		case *FloatConst:
			zero = divisor.Value == 0
		}

		if zero {
			return asmerr.New(
				asmerr.Semantic,
				operands[1].Loc(),
				"division by zero (%s)",
				operands[1])
		}
	}

	return nil
}

// Difference returns a - b without eager checks.  Used internally to compute
// position-relative quantities.
func Difference(a Expr, b Expr) Expr {
	return &Operation{
		StartEndPos: parseutil.NewStartEndPos(a.Loc(), a.End()),
		Op:          Sub,
		Operands:    []Expr{a, b},
	}
}

// Sum returns the sum of the given terms without eager checks.
func Sum(terms ...Expr) Expr {
	switch len(terms) {
	case 0:
		return NewInt(0)
	case 1:
		return terms[0]
	}
	return &Operation{
		StartEndPos: parseutil.NewStartEndPos(terms[0].Loc(), terms[0].End()),
		Op:          Add,
		Operands:    terms,
	}
}
