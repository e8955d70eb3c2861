package expression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pattyshack/gt/parseutil"
)

// Expressions are immutable once built.  Simplify and Substitute return new
// trees and never modify their input.
type Expr interface {
	parseutil.Locatable
	End() parseutil.Location

	Walk(Visitor)
	String() string

	isExpr()
}

type Visitor interface {
	Enter(Expr)
	Exit(Expr)
}

type exprNode struct{}

func (exprNode) isExpr() {}

type IntConst struct {
	exprNode
	parseutil.StartEndPos

	Value int64
}

func NewInt(value int64) *IntConst {
	return &IntConst{Value: value}
}

func (c *IntConst) Walk(visitor Visitor) {
	visitor.Enter(c)
	visitor.Exit(c)
}

func (c *IntConst) String() string {
	return strconv.FormatInt(c.Value, 10)
}

type FloatConst struct {
	exprNode
	parseutil.StartEndPos

	Value float64
}

func NewFloat(value float64) *FloatConst {
	return &FloatConst{Value: value}
}

func (c *FloatConst) Walk(visitor Visitor) {
	visitor.Enter(c)
	visitor.Exit(c)
}

func (c *FloatConst) String() string {
	return strconv.FormatFloat(c.Value, 'g', -1, 64)
}

// A weak (lookup-only) reference into the symbol table.
type SymbolRef struct {
	exprNode
	parseutil.StartEndPos

	Name string
}

func NewSymbolRef(name string) *SymbolRef {
	return &SymbolRef{Name: name}
}

func (ref *SymbolRef) Walk(visitor Visitor) {
	visitor.Enter(ref)
	visitor.Exit(ref)
}

func (ref *SymbolRef) String() string {
	return ref.Name
}

type RegisterRef struct {
	exprNode
	parseutil.StartEndPos

	Name string
}

func NewRegisterRef(name string) *RegisterRef {
	return &RegisterRef{Name: name}
}

func (ref *RegisterRef) Walk(visitor Visitor) {
	visitor.Enter(ref)
	visitor.Exit(ref)
}

func (ref *RegisterRef) String() string {
	return "%" + ref.Name
}

// The start address of a section that is placed by the linker.  Only
// produced by substitution.
type SectionBase struct {
	exprNode
	parseutil.StartEndPos

	Section string
}

func NewSectionBase(section string) *SectionBase {
	return &SectionBase{Section: section}
}

func (base *SectionBase) Walk(visitor Visitor) {
	visitor.Enter(base)
	visitor.Exit(base)
}

func (base *SectionBase) String() string {
	return "[" + base.Section + "]"
}

// The segment (section identity) of a symbol.  Exactly one of Section /
// Symbol is set; Symbol is used when the section is only known to the
// linker.  Only produced by substitution.
type SegmentRef struct {
	exprNode
	parseutil.StartEndPos

	Section string
	Symbol  string
}

func (seg *SegmentRef) Walk(visitor Visitor) {
	visitor.Enter(seg)
	visitor.Exit(seg)
}

func (seg *SegmentRef) String() string {
	if seg.Symbol != "" {
		return "seg(" + seg.Symbol + ")"
	}
	return "seg[" + seg.Section + "]"
}

type Operation struct {
	exprNode
	parseutil.StartEndPos

	Op       Operator
	Operands []Expr
}

func (op *Operation) Walk(visitor Visitor) {
	visitor.Enter(op)
	for _, operand := range op.Operands {
		operand.Walk(visitor)
	}
	visitor.Exit(op)
}

func (op *Operation) String() string {
	spec := operators[op.Op]
	if spec.arity == unary {
		return spec.symbol + op.Operands[0].String()
	}

	parts := make([]string, 0, len(op.Operands))
	for _, operand := range op.Operands {
		parts = append(parts, operand.String())
	}
	return "(" + strings.Join(parts, " "+spec.symbol+" ") + ")"
}

// Leaf reports whether expr is a non-constant leaf term (symbol, register,
// section base or segment reference).
func Leaf(expr Expr) bool {
	switch expr.(type) {
	case *SymbolRef, *RegisterRef, *SectionBase, *SegmentRef:
		return true
	}
	return false
}

func leafKey(expr Expr) string {
	switch leaf := expr.(type) {
	case *SymbolRef:
		return "sym:" + leaf.Name
	case *RegisterRef:
		return "reg:" + leaf.Name
	case *SectionBase:
		return "sect:" + leaf.Section
	case *SegmentRef:
		return "seg:" + leaf.Section + ":" + leaf.Symbol
	default:
		panic(fmt.Sprintf("not a leaf: %T", expr))
	}
}

type collector struct {
	enter func(Expr)
}

func (c collector) Enter(expr Expr) { c.enter(expr) }
func (collector) Exit(Expr)         {}

// SymbolNames returns the names of all symbols referenced by expr, in
// order of first appearance.
func SymbolNames(expr Expr) []string {
	names := []string{}
	seen := map[string]struct{}{}
	expr.Walk(collector{
		enter: func(node Expr) {
			ref, ok := node.(*SymbolRef)
			if !ok {
				return
			}
			_, ok = seen[ref.Name]
			if ok {
				return
			}
			seen[ref.Name] = struct{}{}
			names = append(names, ref.Name)
		},
	})
	return names
}

// ContainsRegister reports whether expr references any register.
func ContainsRegister(expr Expr) bool {
	found := false
	expr.Walk(collector{
		enter: func(node Expr) {
			_, ok := node.(*RegisterRef)
			if ok {
				found = true
			}
		},
	})
	return found
}

// ContainsFloat reports whether expr has any floating point constant.
func ContainsFloat(expr Expr) bool {
	found := false
	expr.Walk(collector{
		enter: func(node Expr) {
			_, ok := node.(*FloatConst)
			if ok {
				found = true
			}
		},
	})
	return found
}
