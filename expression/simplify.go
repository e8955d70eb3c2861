package expression

import (
	"github.com/pattyshack/gt/parseutil"
)

// Simplify returns an equivalent tree with constant subtrees folded,
// identity operations elided and like leaf terms of sums combined.  The
// result is in canonical form: Simplify(Simplify(e)) == Simplify(e).
//
// Canonical form:
//   - subtraction is rewritten as addition of a negation
//   - sums and products are flattened, with the folded constant last
//   - sum terms are leaf, -leaf, leaf*c, or an opaque (non-linear) subtree
func Simplify(expr Expr) Expr {
	op, ok := expr.(*Operation)
	if !ok {
		return expr
	}

	operands := make([]Expr, 0, len(op.Operands))
	for _, operand := range op.Operands {
		operands = append(operands, Simplify(operand))
	}

	pos := op.StartEndPos
	switch op.Op {
	case Add:
		return simplifySum(pos, operands)
	case Sub:
		return simplifySum(pos, []Expr{operands[0], negate(pos, operands[1])})
	case Neg:
		return negate(pos, operands[0])
	case Mul:
		return simplifyProduct(pos, operands)
	case And, Or, Xor:
		return simplifyBitwise(pos, op.Op, operands)
	case Not:
		value, ok := operands[0].(*IntConst)
		if ok {
			return intAt(pos, ^value.Value)
		}
	case Shl, Shr:
		return simplifyShift(pos, op.Op, operands[0], operands[1])
	case Div, Mod:
		return simplifyDivision(pos, op.Op, operands[0], operands[1])
	}

	return &Operation{
		StartEndPos: pos,
		Op:          op.Op,
		Operands:    operands,
	}
}

func intAt(pos parseutil.StartEndPos, value int64) *IntConst {
	return &IntConst{StartEndPos: pos, Value: value}
}

func floatAt(pos parseutil.StartEndPos, value float64) *FloatConst {
	return &FloatConst{StartEndPos: pos, Value: value}
}

func operation(pos parseutil.StartEndPos, op Operator, operands ...Expr) Expr {
	if len(operands) == 1 && operators[op].arity == nary {
		return operands[0]
	}
	return &Operation{
		StartEndPos: pos,
		Op:          op,
		Operands:    operands,
	}
}

// negate expects a simplified operand and returns a simplified result.
func negate(pos parseutil.StartEndPos, expr Expr) Expr {
	switch value := expr.(type) {
	case *IntConst:
		return intAt(pos, -value.Value)
	case *FloatConst:
		return floatAt(pos, -value.Value)
	case *Operation:
		switch value.Op {
		case Neg:
			return value.Operands[0]
		case Add:
			terms := make([]Expr, 0, len(value.Operands))
			for _, term := range value.Operands {
				terms = append(terms, negate(pos, term))
			}
			return simplifySum(pos, terms)
		case Mul:
			last := value.Operands[len(value.Operands)-1]
			switch factor := last.(type) {
			case *IntConst:
				factors := append([]Expr{}, value.Operands[:len(value.Operands)-1]...)
				factors = append(factors, intAt(pos, -factor.Value))
				return simplifyProduct(pos, factors)
			case *FloatConst:
				factors := append([]Expr{}, value.Operands[:len(value.Operands)-1]...)
				factors = append(factors, floatAt(pos, -factor.Value))
				return simplifyProduct(pos, factors)
			}
		}
	}

	return &Operation{
		StartEndPos: pos,
		Op:          Neg,
		Operands:    []Expr{expr},
	}
}

type sumTerm struct {
	leaf        Expr // nil for opaque terms
	coefficient int64

	opaque Expr
}

func simplifySum(pos parseutil.StartEndPos, operands []Expr) Expr {
	flattened := make([]Expr, 0, len(operands))
	for _, operand := range operands {
		op, ok := operand.(*Operation)
		if ok && op.Op == Add {
			flattened = append(flattened, op.Operands...)
		} else {
			flattened = append(flattened, operand)
		}
	}

	intSum := int64(0)
	floatSum := float64(0)
	hasFloat := false

	terms := []*sumTerm{}
	leafTerms := map[string]*sumTerm{}
	addLeaf := func(leaf Expr, coefficient int64) {
		key := leafKey(leaf)
		term, ok := leafTerms[key]
		if !ok {
			term = &sumTerm{leaf: leaf}
			leafTerms[key] = term
			terms = append(terms, term)
		}
		term.coefficient += coefficient
	}

	for _, operand := range flattened {
		switch value := operand.(type) {
		case *IntConst:
			intSum += value.Value
			continue
		case *FloatConst:
			floatSum += value.Value
			hasFloat = true
			continue
		case *Operation:
			switch value.Op {
			case Neg:
				if Leaf(value.Operands[0]) {
					addLeaf(value.Operands[0], -1)
					continue
				}
			case Mul:
				if len(value.Operands) == 2 && Leaf(value.Operands[0]) {
					factor, ok := value.Operands[1].(*IntConst)
					if ok {
						addLeaf(value.Operands[0], factor.Value)
						continue
					}
				}
			}
		default:
			if Leaf(operand) {
				addLeaf(operand, 1)
				continue
			}
		}

		terms = append(terms, &sumTerm{opaque: operand})
	}

	result := make([]Expr, 0, len(terms)+1)
	for _, term := range terms {
		if term.leaf == nil {
			result = append(result, term.opaque)
			continue
		}

		switch term.coefficient {
		case 0:
		case 1:
			result = append(result, term.leaf)
		case -1:
			result = append(
				result,
				&Operation{
					StartEndPos: pos,
					Op:          Neg,
					Operands:    []Expr{term.leaf},
				})
		default:
			result = append(
				result,
				&Operation{
					StartEndPos: pos,
					Op:          Mul,
					Operands:    []Expr{term.leaf, intAt(pos, term.coefficient)},
				})
		}
	}

	if hasFloat {
		total := floatSum + float64(intSum)
		if total != 0 || len(result) == 0 {
			result = append(result, floatAt(pos, total))
		}
	} else if intSum != 0 || len(result) == 0 {
		result = append(result, intAt(pos, intSum))
	}

	return operation(pos, Add, result...)
}

func simplifyProduct(pos parseutil.StartEndPos, operands []Expr) Expr {
	intProduct := int64(1)
	floatProduct := float64(1)
	hasFloat := false

	factors := make([]Expr, 0, len(operands))
	var collect func(Expr)
	collect = func(operand Expr) {
		switch value := operand.(type) {
		case *IntConst:
			intProduct *= value.Value
		case *FloatConst:
			floatProduct *= value.Value
			hasFloat = true
		case *Operation:
			if value.Op == Mul {
				for _, factor := range value.Operands {
					collect(factor)
				}
				return
			}
			factors = append(factors, operand)
		default:
			factors = append(factors, operand)
		}
	}

	for _, operand := range operands {
		collect(operand)
	}

	if hasFloat {
		total := floatProduct * float64(intProduct)
		if len(factors) == 0 {
			return floatAt(pos, total)
		}
		if total != 1 {
			factors = append(factors, floatAt(pos, total))
		}
		return operation(pos, Mul, factors...)
	}

	if intProduct == 0 || len(factors) == 0 {
		return intAt(pos, intProduct)
	}

	if intProduct != 1 {
		factors = append(factors, intAt(pos, intProduct))
	}

	return operation(pos, Mul, factors...)
}

func simplifyBitwise(
	pos parseutil.StartEndPos,
	op Operator,
	operands []Expr,
) Expr {
	identity := int64(0)
	if op == And {
		identity = -1
	}

	folded := identity
	operandsOut := make([]Expr, 0, len(operands))

	var collect func(Expr)
	collect = func(operand Expr) {
		switch value := operand.(type) {
		case *IntConst:
			switch op {
			case And:
				folded &= value.Value
			case Or:
				folded |= value.Value
			case Xor:
				folded ^= value.Value
			}
		case *Operation:
			if value.Op == op {
				for _, inner := range value.Operands {
					collect(inner)
				}
				return
			}
			operandsOut = append(operandsOut, operand)
		default:
			operandsOut = append(operandsOut, operand)
		}
	}

	for _, operand := range operands {
		collect(operand)
	}

	if len(operandsOut) == 0 {
		return intAt(pos, folded)
	}

	if op == And && folded == 0 {
		return intAt(pos, 0)
	}

	if folded != identity {
		operandsOut = append(operandsOut, intAt(pos, folded))
	}

	return operation(pos, op, operandsOut...)
}

func simplifyShift(
	pos parseutil.StartEndPos,
	op Operator,
	value Expr,
	amount Expr,
) Expr {
	count, ok := amount.(*IntConst)
	if ok {
		if count.Value == 0 {
			return value
		}

		base, ok := value.(*IntConst)
		if ok && count.Value > 0 {
			if count.Value >= 64 {
				if op == Shr && base.Value < 0 {
					return intAt(pos, -1)
				}
				return intAt(pos, 0)
			}

			if op == Shl {
				return intAt(pos, base.Value<<uint(count.Value))
			}
			return intAt(pos, base.Value>>uint(count.Value))
		}
	}

	return &Operation{
		StartEndPos: pos,
		Op:          op,
		Operands:    []Expr{value, amount},
	}
}

func simplifyDivision(
	pos parseutil.StartEndPos,
	op Operator,
	dividend Expr,
	divisor Expr,
) Expr {
	switch right := divisor.(type) {
	case *IntConst:
		if right.Value == 1 {
			if op == Div {
				return dividend
			}
			return intAt(pos, 0)
		}

		left, ok := dividend.(*IntConst)
		if ok && right.Value != 0 {
			if op == Div {
				return intAt(pos, left.Value/right.Value)
			}
			return intAt(pos, left.Value%right.Value)
		}

		leftFloat, ok := dividend.(*FloatConst)
		if ok && op == Div && right.Value != 0 {
			return floatAt(pos, leftFloat.Value/float64(right.Value))
		}
	case *FloatConst:
		if op == Div && right.Value != 0 {
			switch left := dividend.(type) {
			case *IntConst:
				return floatAt(pos, float64(left.Value)/right.Value)
			case *FloatConst:
				return floatAt(pos, left.Value/right.Value)
			}
		}
	}

	return &Operation{
		StartEndPos: pos,
		Op:          op,
		Operands:    []Expr{dividend, divisor},
	}
}
