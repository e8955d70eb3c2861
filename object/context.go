package object

import (
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/platform"
)

// LengthContext exposes a bytecode's current position and the object's
// current symbol values to content callbacks.
type LengthContext struct {
	Bytecode *Bytecode

	env expression.Environment
}

var _ platform.LengthContext = &LengthContext{}

func NewLengthContext(bc *Bytecode) *LengthContext {
	return &LengthContext{
		Bytecode: bc,
		env:      bc.Section.Object.Environment(),
	}
}

func (ctx *LengthContext) Section() string {
	return ctx.Bytecode.Section.Name
}

func (ctx *LengthContext) Offset() int64 {
	return ctx.Bytecode.Offset
}

func (ctx *LengthContext) Length() int64 {
	return ctx.Bytecode.Length
}

// Position returns the address expression of the bytecode's start.
func (ctx *LengthContext) Position() expression.Expr {
	return ctx.Bytecode.Section.position(ctx.Bytecode.Offset)
}

func (ctx *LengthContext) Evaluate(
	expr expression.Expr,
) (
	expression.Result,
	error,
) {
	return expression.Substitute(expr, ctx.env)
}

func (ctx *LengthContext) Relative(
	expr expression.Expr,
	origin int64,
) (
	expression.Result,
	error,
) {
	return expression.Substitute(
		expression.Difference(
			expr,
			expression.Sum(ctx.Position(), expression.NewInt(origin))),
		ctx.env)
}
