package resolver

import (
	"errors"

	"github.com/golang/glog"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/object"
	"github.com/pattyshack/assembly/platform"
	"github.com/pattyshack/assembly/relocation"
)

// Resolver reduces expressions at their final bytecode positions into
// constants or relocations.  It must only be used after the layout
// converged.
type Resolver struct {
	object      *object.Object
	relocations *relocation.Emitter
}

func NewResolver(
	obj *object.Object,
	relocations *relocation.Emitter,
) *Resolver {
	return &Resolver{
		object:      obj,
		relocations: relocations,
	}
}

// Resolve substitutes the current symbol values into expr, evaluated at
// bc's position.  Constants are range checked against field.  Relocatable
// values are classified into a relocation that the object format must
// support.
func (resolver *Resolver) Resolve(
	bc *object.Bytecode,
	expr expression.Expr,
	field platform.Field,
) (
	Value,
	error,
) {
	ctx := object.NewLengthContext(bc)

	var result expression.Result
	var err error
	if field.PCRelative {
		result, err = ctx.Relative(expr, field.Origin)
	} else {
		result, err = ctx.Evaluate(expr)
	}
	if err != nil {
		return Value{}, err
	}

	if result.State == expression.Unresolved {
		return Value{}, asmerr.New(
			asmerr.UndefinedSymbol,
			expr.Loc(),
			"symbol %s is undefined",
			result.Missing)
	}

	if field.Float {
		value, ok := result.Expr.(*expression.FloatConst)
		if ok {
			return Value{Kind: FloatValue, Float: value.Value}, nil
		}
	}

	linear, err := expression.Linearize(result.Expr)
	if err != nil {
		return Value{}, err
	}

	if linear.IsConstant() {
		err := CheckRange(linear.Constant, field)
		if err != nil {
			return Value{}, locate(err, expr)
		}
		return Value{Kind: IntValue, Int: linear.Constant}, nil
	}

	reloc, err := resolver.classify(ctx, expr, field, linear)
	if err != nil {
		return Value{}, err
	}

	if !resolver.object.Format.SupportsRelocation(reloc) {
		return Value{}, asmerr.New(
			asmerr.UnsupportedRelocation,
			expr.Loc(),
			"%s format cannot represent %s relocation (%s)",
			resolver.object.Format.Name(),
			reloc.Kind,
			reloc)
	}

	return Value{Kind: RelocatableValue, Relocation: reloc}, nil
}

func locate(err error, expr expression.Expr) error {
	var asmErr *asmerr.Error
	if !errors.As(err, &asmErr) || asmErr.Loc != (parseutil.Location{}) {
		return err
	}

	located := *asmErr
	located.Loc = expr.Loc()
	return &located
}

// relocatable returns the relocation target named by a linear term.
func relocatable(term expression.Term) (string, bool, bool) {
	switch base := term.Base.(type) {
	case *expression.SymbolRef:
		return base.Name, false, true
	case *expression.SectionBase:
		return base.Section, true, true
	}
	return "", false, false
}

func (resolver *Resolver) classify(
	ctx *object.LengthContext,
	expr expression.Expr,
	field platform.Field,
	linear expression.Linear,
) (
	platform.Relocation,
	error,
) {
	bc := ctx.Bytecode
	reloc := platform.Relocation{
		Section:    bc.Section.Name,
		Offset:     bc.Offset + int64(field.Offset),
		Size:       field.Size,
		Bits:       field.Bits,
		Shift:      field.Shift,
		Signedness: field.Signedness,
		Loc:        expr.Loc(),
	}

	unsupported := func() error {
		return asmerr.New(
			asmerr.UnsupportedRelocation,
			expr.Loc(),
			"value (%s) cannot be expressed as a relocation",
			expr)
	}

	if field.PCRelative {
		// The relocation is relative to the field's address rather than
		// the field's origin, hence classify the absolute target instead.
		result, err := ctx.Evaluate(expr)
		if err != nil {
			return reloc, err
		}

		target, err := expression.Linearize(result.Expr)
		if err != nil {
			return reloc, err
		}

		if len(target.Terms) != 1 || target.Terms[0].Coefficient != 1 {
			return reloc, unsupported()
		}

		name, isSection, ok := relocatable(target.Terms[0])
		if !ok {
			return reloc, unsupported()
		}

		reloc.Kind = platform.RelativeRelocation
		reloc.Symbol = name
		reloc.SymbolIsSection = isSection
		reloc.Addend = target.Constant + int64(field.Offset) - field.Origin
		return reloc, nil
	}

	for _, term := range linear.Terms {
		_, ok := term.Base.(*expression.RegisterRef)
		if ok {
			return reloc, asmerr.New(
				asmerr.Semantic,
				expr.Loc(),
				"register not allowed in value (%s)",
				expr)
		}
	}

	switch len(linear.Terms) {
	case 1:
		term := linear.Terms[0]
		if term.Coefficient != 1 {
			return reloc, unsupported()
		}

		segment, ok := term.Base.(*expression.SegmentRef)
		if ok {
			if linear.Constant != 0 {
				return reloc, unsupported()
			}

			reloc.Kind = platform.SegmentRelocation
			if segment.Symbol != "" {
				reloc.Symbol = segment.Symbol
			} else {
				reloc.Symbol = segment.Section
				reloc.SymbolIsSection = true
			}
			return reloc, nil
		}

		name, isSection, ok := relocatable(term)
		if !ok {
			return reloc, unsupported()
		}

		reloc.Kind = platform.AbsoluteRelocation
		reloc.Symbol = name
		reloc.SymbolIsSection = isSection
		reloc.Addend = linear.Constant
		return reloc, nil
	case 2:
		plus := linear.Terms[0]
		minus := linear.Terms[1]
		if plus.Coefficient < 0 {
			plus, minus = minus, plus
		}

		if plus.Coefficient != 1 || minus.Coefficient != -1 {
			return reloc, unsupported()
		}

		name, isSection, ok := relocatable(plus)
		if !ok {
			return reloc, unsupported()
		}

		subtrahend, subtrahendIsSection, ok := relocatable(minus)
		if !ok {
			return reloc, unsupported()
		}

		reloc.Symbol = name
		reloc.SymbolIsSection = isSection

		if subtrahendIsSection && subtrahend == bc.Section.Name {
			// x - $ style self relative value
			reloc.Kind = platform.RelativeRelocation
			reloc.Addend = linear.Constant + reloc.Offset
			return reloc, nil
		}

		reloc.Kind = platform.DifferenceRelocation
		reloc.Subtrahend = subtrahend
		reloc.SubtrahendIsSection = subtrahendIsSection
		reloc.Addend = linear.Constant
		return reloc, nil
	}

	return reloc, unsupported()
}

// OutputValue resolves expr into buf's field.  Relocatable values leave
// the field's value bits as is (zero) and emit exactly one relocation.
func (resolver *Resolver) OutputValue(
	bc *object.Bytecode,
	buf []byte,
	expr expression.Expr,
	field platform.Field,
) error {
	value, err := resolver.Resolve(bc, expr, field)
	if err != nil {
		return err
	}

	order := resolver.object.Architecture.ByteOrder()
	switch value.Kind {
	case IntValue:
		return locate(EncodeInt(buf, value.Int, field, order), expr)
	case FloatValue:
		return locate(EncodeFloat(buf, value.Float, field, order), expr)
	default:
		glog.V(2).Infof("%s: relocation %s", bc, value.Relocation)
		resolver.relocations.Emit(value.Relocation)
		return nil
	}
}

// Encode produces bc's final bytes.  The encoding must be exactly as long
// as the converged length.
func (resolver *Resolver) Encode(bc *object.Bytecode) error {
	ctx := &encodeContext{
		LengthContext: object.NewLengthContext(bc),
		resolver:      resolver,
	}

	encoded, err := bc.Content.Encode(ctx)
	if err != nil {
		return asmerr.Wrap(err, "failed to encode %s (%s)", bc, bc.Content)
	}

	if int64(len(encoded)) != bc.Length {
		return asmerr.New(
			asmerr.Module,
			bc.Loc(),
			"%s encoded to %d bytes, expected %d",
			bc,
			len(encoded),
			bc.Length)
	}

	if !bc.Section.NoBits {
		bc.Bytes = encoded
	}
	return nil
}

type encodeContext struct {
	*object.LengthContext

	resolver *Resolver
}

var _ platform.EncodeContext = &encodeContext{}

func (ctx *encodeContext) OutputValue(
	buf []byte,
	expr expression.Expr,
	field platform.Field,
) error {
	return ctx.resolver.OutputValue(ctx.Bytecode, buf, expr, field)
}
