package mips

import (
	"encoding/binary"
	"errors"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/platform"
)

// All mips instructions are 4 bytes in size.
const instructionLength = 4

type format int

const (
	// No operands.
	fixedFormat = format(iota)

	// rd, rs, rt
	registerFormat

	// rd, rt, sa
	shiftFormat

	// rs
	jumpRegisterFormat

	// rt, rs, imm16
	immediateFormat

	// rt, imm16
	loadUpperFormat

	// rt, offset16, base
	memoryFormat

	// rs, rt, target
	branchFormat

	// rs, target
	branchZeroFormat

	// target
	jumpFormat
)

var numOperands = map[format]int{
	fixedFormat:        0,
	registerFormat:     3,
	shiftFormat:        3,
	jumpRegisterFormat: 1,
	immediateFormat:    3,
	loadUpperFormat:    2,
	memoryFormat:       3,
	branchFormat:       3,
	branchZeroFormat:   2,
	jumpFormat:         1,
}

type operationSpec struct {
	format format

	// Primary opcode (bits 26-31), or the full word for fixed format.
	opcode uint32

	// Function code for register / shift / jump register formats.
	funct uint32

	// Immediate signedness.
	signedness platform.Signedness
}

var operations = map[string]*operationSpec{
	"nop":     {format: fixedFormat, opcode: 0x00000000},
	"syscall": {format: fixedFormat, opcode: 0x0000000c},
	"break":   {format: fixedFormat, opcode: 0x0000000d},

	"add":  {format: registerFormat, funct: 0x20},
	"addu": {format: registerFormat, funct: 0x21},
	"sub":  {format: registerFormat, funct: 0x22},
	"subu": {format: registerFormat, funct: 0x23},
	"and":  {format: registerFormat, funct: 0x24},
	"or":   {format: registerFormat, funct: 0x25},
	"xor":  {format: registerFormat, funct: 0x26},
	"nor":  {format: registerFormat, funct: 0x27},
	"slt":  {format: registerFormat, funct: 0x2a},
	"sltu": {format: registerFormat, funct: 0x2b},

	"sll": {format: shiftFormat, funct: 0x00},
	"srl": {format: shiftFormat, funct: 0x02},
	"sra": {format: shiftFormat, funct: 0x03},

	"jr": {format: jumpRegisterFormat, funct: 0x08},

	"addi":  {format: immediateFormat, opcode: 0x08, signedness: platform.Signed},
	"addiu": {format: immediateFormat, opcode: 0x09, signedness: platform.Signed},
	"slti":  {format: immediateFormat, opcode: 0x0a, signedness: platform.Signed},
	"sltiu": {format: immediateFormat, opcode: 0x0b, signedness: platform.Signed},
	"andi":  {format: immediateFormat, opcode: 0x0c, signedness: platform.Unsigned},
	"ori":   {format: immediateFormat, opcode: 0x0d, signedness: platform.Unsigned},
	"xori":  {format: immediateFormat, opcode: 0x0e, signedness: platform.Unsigned},

	"lui": {format: loadUpperFormat, opcode: 0x0f, signedness: platform.Either},

	"lb":  {format: memoryFormat, opcode: 0x20, signedness: platform.Signed},
	"lh":  {format: memoryFormat, opcode: 0x21, signedness: platform.Signed},
	"lw":  {format: memoryFormat, opcode: 0x23, signedness: platform.Signed},
	"lbu": {format: memoryFormat, opcode: 0x24, signedness: platform.Signed},
	"lhu": {format: memoryFormat, opcode: 0x25, signedness: platform.Signed},
	"sb":  {format: memoryFormat, opcode: 0x28, signedness: platform.Signed},
	"sh":  {format: memoryFormat, opcode: 0x29, signedness: platform.Signed},
	"sw":  {format: memoryFormat, opcode: 0x2b, signedness: platform.Signed},

	"beq": {format: branchFormat, opcode: 0x04},
	"bne": {format: branchFormat, opcode: 0x05},

	"blez": {format: branchZeroFormat, opcode: 0x06},
	"bgtz": {format: branchZeroFormat, opcode: 0x07},

	"j":   {format: jumpFormat, opcode: 0x02},
	"jal": {format: jumpFormat, opcode: 0x03},
}

type Instruction struct {
	mnemonic string
	operands []expression.Expr
	spec     *operationSpec

	// Register numbers, in operand order.
	registers []uint32
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
			"unsupported mips instruction (%s)",
			mnemonic)
	}

	expected := numOperands[spec.format]
	if len(operands) != expected {
		return nil, asmerr.New(
			asmerr.Semantic,
			loc,
			"%s expects %d operands, found %d",
			mnemonic,
			expected,
			len(operands))
	}

	insn := &Instruction{
		mnemonic: mnemonic,
		operands: operands,
		spec:     spec,
	}

	var registerOperands []expression.Expr
	var valueOperands []expression.Expr
	switch spec.format {
	case registerFormat, jumpRegisterFormat:
		registerOperands = operands
	case shiftFormat, immediateFormat:
		registerOperands = operands[:2]
		valueOperands = operands[2:]
	case loadUpperFormat:
		registerOperands = operands[:1]
		valueOperands = operands[1:]
	case memoryFormat:
		registerOperands = []expression.Expr{operands[0], operands[2]}
		valueOperands = operands[1:2]
	case branchFormat:
		registerOperands = operands[:2]
		valueOperands = operands[2:]
	case branchZeroFormat:
		registerOperands = operands[:1]
		valueOperands = operands[1:]
	case jumpFormat:
		valueOperands = operands
	}

	for _, operand := range registerOperands {
		number, err := generalRegister(operand)
		if err != nil {
			return nil, err
		}
		insn.registers = append(insn.registers, number)
	}

	for _, operand := range valueOperands {
		if expression.ContainsRegister(operand) {
			return nil, asmerr.New(
				asmerr.Semantic,
				operand.Loc(),
				"%s expects an immediate operand, found %s",
				mnemonic,
				operand)
		}
	}

	return insn, nil
}

func generalRegister(operand expression.Expr) (uint32, error) {
	ref, ok := operand.(*expression.RegisterRef)
	if ok {
		reg, ok := ArchitectureRegisters.LookupClass(
			ref.Name,
			platform.GeneralClass)
		if ok {
			return uint32(reg.Number), nil
		}
	}

	return 0, asmerr.New(
		asmerr.Semantic,
		operand.Loc(),
		"expected general register, found %s",
		operand)
}

func (insn *Instruction) Mnemonic() string {
	return insn.mnemonic
}

func (insn *Instruction) Operands() []expression.Expr {
	return insn.operands
}

func (insn *Instruction) encode(ctx platform.EncodeContext) ([]byte, error) {
	if ctx.Length() != instructionLength {
		return nil, asmerr.New(
			asmerr.Module,
			parseutil.Location{},
			"no %s encoding with length %d",
			insn.mnemonic,
			ctx.Length())
	}

	spec := insn.spec
	regs := insn.registers

	var word uint32
	var value expression.Expr
	var field platform.Field

	immediate := platform.Field{
		Size:       instructionLength,
		Bits:       16,
		Signedness: spec.signedness,
	}

	switch spec.format {
	case fixedFormat:
		word = spec.opcode
	case registerFormat:
		word = regs[1]<<21 | regs[2]<<16 | regs[0]<<11 | spec.funct
	case shiftFormat:
		amount, err := shiftAmount(ctx, insn.operands[2])
		if err != nil {
			return nil, err
		}
		word = regs[1]<<16 | regs[0]<<11 | amount<<6 | spec.funct
	case jumpRegisterFormat:
		word = regs[0]<<21 | spec.funct
	case immediateFormat:
		word = spec.opcode<<26 | regs[1]<<21 | regs[0]<<16
		value = insn.operands[2]
		field = immediate
	case loadUpperFormat:
		word = spec.opcode<<26 | regs[0]<<16
		value = insn.operands[1]
		field = immediate
	case memoryFormat:
		word = spec.opcode<<26 | regs[1]<<21 | regs[0]<<16
		value = insn.operands[1]
		field = immediate
	case branchFormat, branchZeroFormat:
		word = spec.opcode<<26 | regs[0]<<21
		if spec.format == branchFormat {
			word |= regs[1] << 16
		}
		value = insn.operands[len(insn.operands)-1]
		field = platform.Field{
			Size:       instructionLength,
			Bits:       16,
			Shift:      2,
			Signedness: platform.Signed,
			PCRelative: true,
			Origin:     instructionLength,
		}
	case jumpFormat:
		word = spec.opcode << 26
		value = insn.operands[0]
		field = platform.Field{
			Size:       instructionLength,
			Bits:       26,
			Shift:      2,
			Signedness: platform.Unsigned,
		}
	default:
		panic("should never happen")
	}

	buf := make([]byte, instructionLength)
	binary.LittleEndian.PutUint32(buf, word)

	if value != nil {
		err := ctx.OutputValue(buf, value, field)
		if err != nil {
			if errors.Is(err, asmerr.ValueOverflow) &&
				spec.format == jumpFormat {

				return nil, asmerr.New(
					asmerr.ValueOverflow,
					value.Loc(),
					"jump target out of range (%s)",
					value)
			}
			return nil, err
		}
	}

	return buf, nil
}

func shiftAmount(
	ctx platform.EncodeContext,
	expr expression.Expr,
) (
	uint32,
	error,
) {
	result, err := ctx.Evaluate(expr)
	if err != nil {
		return 0, err
	}

	amount, ok := result.Int()
	if !ok {
		return 0, asmerr.New(
			asmerr.Semantic,
			expr.Loc(),
			"shift amount (%s) is not an absolute integer",
			result)
	}

	if amount < 0 || amount > 31 {
		return 0, asmerr.New(
			asmerr.ValueOverflow,
			expr.Loc(),
			"shift amount (%d) out of range",
			amount)
	}

	return uint32(amount), nil
}
