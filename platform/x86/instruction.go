package x86

import (
	"fmt"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/platform"
)

type encodingKind int

const (
	// Opcode bytes only.
	fixedEncoding = encodingKind(iota)

	// Short (rel8) / near (rel32) pc relative branch.
	branchEncoding

	// rel32 pc relative call.
	callEncoding

	// Opcode + register number (push / pop).
	registerEncoding

	// mov r64, imm32 (sign extended) / mov r64, imm64.
	moveImmediateEncoding
)

const (
	shortBranchLength = 2

	callLength = 5

	moveImm32Length = 7
	moveImm64Length = 10

	rexW = 0x48
	rexB = 0x41
)

type operationSpec struct {
	kind        encodingKind
	numOperands int

	// Used by fixed, call and register encodings.
	opcode []byte

	// Used by branch encoding.
	shortOpcode []byte
	nearOpcode  []byte
}

func (spec *operationSpec) nearBranchLength() int64 {
	return int64(len(spec.nearOpcode) + 4)
}

var (
	conditionCodes = []string{
		"o", "no", "b", "ae", "e", "ne", "be", "a",
		"s", "ns", "p", "np", "l", "ge", "le", "g",
	}

	operations = newOperations()
)

func newOperations() map[string]*operationSpec {
	ops := map[string]*operationSpec{
		"ret":     {kind: fixedEncoding, opcode: []byte{0xc3}},
		"leave":   {kind: fixedEncoding, opcode: []byte{0xc9}},
		"nop":     {kind: fixedEncoding, opcode: []byte{0x90}},
		"hlt":     {kind: fixedEncoding, opcode: []byte{0xf4}},
		"int3":    {kind: fixedEncoding, opcode: []byte{0xcc}},
		"syscall": {kind: fixedEncoding, opcode: []byte{0x0f, 0x05}},
		"call": {
			kind:        callEncoding,
			numOperands: 1,
			opcode:      []byte{0xe8},
		},
		"push": {
			kind:        registerEncoding,
			numOperands: 1,
			opcode:      []byte{0x50},
		},
		"pop": {
			kind:        registerEncoding,
			numOperands: 1,
			opcode:      []byte{0x58},
		},
		"mov": {
			kind:        moveImmediateEncoding,
			numOperands: 2,
		},
		"jmp": {
			kind:        branchEncoding,
			numOperands: 1,
			shortOpcode: []byte{0xeb},
			nearOpcode:  []byte{0xe9},
		},
	}

	for cc, name := range conditionCodes {
		ops["j"+name] = &operationSpec{
			kind:        branchEncoding,
			numOperands: 1,
			shortOpcode: []byte{0x70 + byte(cc)},
			nearOpcode:  []byte{0x0f, 0x80 + byte(cc)},
		}
	}

	return ops
}

type Instruction struct {
	mnemonic string
	operands []expression.Expr
	spec     *operationSpec

	// The destination register for register / move immediate encodings.
	register *platform.Register

	// Once a branch (or move immediate) is widened, it stays wide for the
	// rest of the optimization run.
	long bool
}

var _ platform.Instruction = &Instruction{}

func newInstruction(
	mnemonic string,
	operands []expression.Expr,
) (
	*Instruction,
	error,
) {
	loc := parseutil.Location{}
	if len(operands) > 0 {
		loc = operands[0].Loc()
	}

	spec, ok := operations[mnemonic]
	if !ok {
		return nil, asmerr.New(
			asmerr.Semantic,
			loc,
			"unsupported x86 instruction (%s)",
			mnemonic)
	}

	if len(operands) != spec.numOperands {
		return nil, asmerr.New(
			asmerr.Semantic,
			loc,
			"%s expects %d operands, found %d",
			mnemonic,
			spec.numOperands,
			len(operands))
	}

	insn := &Instruction{
		mnemonic: mnemonic,
		operands: operands,
		spec:     spec,
	}

	switch spec.kind {
	case branchEncoding, callEncoding:
		if expression.ContainsRegister(operands[0]) {
			return nil, asmerr.New(
				asmerr.Semantic,
				loc,
				"indirect %s not supported",
				mnemonic)
		}
	case registerEncoding, moveImmediateEncoding:
		reg, err := generalRegister(operands[0])
		if err != nil {
			return nil, err
		}
		insn.register = reg

		if spec.kind == moveImmediateEncoding &&
			expression.ContainsRegister(operands[1]) {

			return nil, asmerr.New(
				asmerr.Semantic,
				operands[1].Loc(),
				"mov source must be an immediate")
		}
	}

	return insn, nil
}

func generalRegister(operand expression.Expr) (*platform.Register, error) {
	ref, ok := operand.(*expression.RegisterRef)
	if !ok {
		return nil, asmerr.New(
			asmerr.Semantic,
			operand.Loc(),
			"expected register operand, found %s",
			operand)
	}

	reg, ok := ArchitectureRegisters.LookupClass(
		ref.Name,
		platform.GeneralClass)
	if !ok {
		return nil, asmerr.New(
			asmerr.Semantic,
			operand.Loc(),
			"expected general register, found %s",
			operand)
	}

	return reg, nil
}

func (insn *Instruction) Mnemonic() string {
	return insn.mnemonic
}

func (insn *Instruction) Operands() []expression.Expr {
	return insn.operands
}

func (insn *Instruction) String() string {
	return fmt.Sprintf("%s %v", insn.mnemonic, insn.operands)
}

func (insn *Instruction) isVariable() bool {
	switch insn.spec.kind {
	case branchEncoding:
		return true
	case moveImmediateEncoding:
		_, ok := expression.Simplify(insn.operands[1]).(*expression.IntConst)
		return !ok
	default:
		return false
	}
}

func (insn *Instruction) registerPrefixLength() int64 {
	if insn.register.Number >= 8 {
		return 1
	}
	return 0
}

// Returns the length of the narrowest form that is valid for the current
// symbol values.
func (insn *Instruction) length(ctx platform.LengthContext) (int64, error) {
	switch insn.spec.kind {
	case fixedEncoding:
		return int64(len(insn.spec.opcode)), nil
	case callEncoding:
		return callLength, nil
	case registerEncoding:
		return 1 + insn.registerPrefixLength(), nil
	case branchEncoding:
		return insn.branchLength(ctx)
	case moveImmediateEncoding:
		return insn.moveLength(ctx)
	default:
		panic("should never happen")
	}
}

func (insn *Instruction) branchLength(
	ctx platform.LengthContext,
) (
	int64,
	error,
) {
	if insn.long {
		return insn.spec.nearBranchLength(), nil
	}

	result, err := ctx.Relative(insn.operands[0], shortBranchLength)
	if err != nil {
		return 0, err
	}

	switch result.State {
	case expression.Unresolved:
		return shortBranchLength, nil
	case expression.Resolved:
		displacement, ok := result.Int()
		if !ok {
			return 0, asmerr.New(
				asmerr.Semantic,
				insn.operands[0].Loc(),
				"%s target (%s) is not an integer",
				insn.mnemonic,
				result)
		}

		if -128 <= displacement && displacement <= 127 {
			return shortBranchLength, nil
		}
	}

	// Out of short range, or relocatable.
	insn.long = true
	return insn.spec.nearBranchLength(), nil
}

func (insn *Instruction) moveLength(
	ctx platform.LengthContext,
) (
	int64,
	error,
) {
	if insn.long {
		return moveImm64Length, nil
	}

	result, err := ctx.Evaluate(insn.operands[1])
	if err != nil {
		return 0, err
	}

	switch result.State {
	case expression.Unresolved:
		return moveImm32Length, nil
	case expression.Resolved:
		value, ok := result.Int()
		if !ok {
			return 0, asmerr.New(
				asmerr.Semantic,
				insn.operands[1].Loc(),
				"mov immediate (%s) is not an integer",
				result)
		}

		if -(1<<31) <= value && value < (1<<31) {
			return moveImm32Length, nil
		}
	}

	insn.long = true
	return moveImm64Length, nil
}

func (insn *Instruction) encode(ctx platform.EncodeContext) ([]byte, error) {
	length := ctx.Length()

	switch insn.spec.kind {
	case fixedEncoding:
		return append([]byte{}, insn.spec.opcode...), nil
	case registerEncoding:
		result := []byte{}
		if insn.register.Number >= 8 {
			result = append(result, rexB)
		}
		return append(
			result,
			insn.spec.opcode[0]+byte(insn.register.Number&7)), nil
	case callEncoding:
		buf := []byte{insn.spec.opcode[0], 0, 0, 0, 0}
		err := ctx.OutputValue(
			buf,
			insn.operands[0],
			platform.Field{
				Offset:     1,
				Size:       4,
				Signedness: platform.Signed,
				PCRelative: true,
				Origin:     callLength,
			})
		return buf, err
	case branchEncoding:
		opcode := insn.spec.shortOpcode
		size := 1
		if length == insn.spec.nearBranchLength() {
			opcode = insn.spec.nearOpcode
			size = 4
		} else if length != shortBranchLength {
			return nil, insn.unexpectedLength(length)
		}

		buf := make([]byte, length)
		copy(buf, opcode)
		err := ctx.OutputValue(
			buf,
			insn.operands[0],
			platform.Field{
				Offset:     len(opcode),
				Size:       size,
				Signedness: platform.Signed,
				PCRelative: true,
				Origin:     length,
			})
		return buf, err
	case moveImmediateEncoding:
		rex := byte(rexW)
		if insn.register.Number >= 8 {
			rex |= 0x01
		}
		regBits := byte(insn.register.Number & 7)

		var buf []byte
		var field platform.Field
		switch length {
		case moveImm32Length:
			buf = []byte{rex, 0xc7, 0xc0 | regBits, 0, 0, 0, 0}
			field = platform.Field{
				Offset:     3,
				Size:       4,
				Signedness: platform.Signed,
			}
		case moveImm64Length:
			buf = []byte{rex, 0xb8 + regBits, 0, 0, 0, 0, 0, 0, 0, 0}
			field = platform.Field{
				Offset:     2,
				Size:       8,
				Signedness: platform.Either,
			}
		default:
			return nil, insn.unexpectedLength(length)
		}

		err := ctx.OutputValue(buf, insn.operands[1], field)
		return buf, err
	default:
		panic("should never happen")
	}
}

func (insn *Instruction) unexpectedLength(length int64) error {
	return asmerr.New(
		asmerr.Module,
		insn.operands[0].Loc(),
		"no %s encoding with length %d",
		insn.mnemonic,
		length)
}
