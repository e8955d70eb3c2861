package mips

import (
	"encoding/binary"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/platform"
)

// Architecture is the 32-bit little endian mips module.  Every instruction
// has a fixed length; branch targets that don't fit the instruction's
// immediate are value overflows rather than expansions.
type Architecture struct{}

var _ platform.Architecture = Architecture{}

func NewArchitecture() platform.Architecture {
	return Architecture{}
}

func (Architecture) Name() platform.ArchitectureName {
	return platform.Mips
}

func (Architecture) AddressSize() int {
	return 32
}

func (Architecture) ByteOrder() binary.ByteOrder {
	return binary.LittleEndian
}

func (Architecture) Registers() *platform.ArchitectureRegisters {
	return ArchitectureRegisters
}

func (Architecture) NewInstruction(
	mnemonic string,
	operands []expression.Expr,
) (
	platform.Instruction,
	error,
) {
	return newInstruction(mnemonic, operands)
}

func (Architecture) IsVariable(platform.Instruction) bool {
	return false
}

func (Architecture) TentativeLength(
	platform.Instruction,
	platform.LengthContext,
) (
	int64,
	error,
) {
	return instructionLength, nil
}

func (Architecture) ResolveLength(
	platform.Instruction,
	platform.LengthContext,
) (
	int64,
	error,
) {
	return instructionLength, nil
}

func (Architecture) Encode(
	in platform.Instruction,
	ctx platform.EncodeContext,
) (
	[]byte,
	error,
) {
	insn, ok := in.(*Instruction)
	if !ok {
		return nil, asmerr.New(
			asmerr.Module,
			parseutil.Location{},
			"not a mips instruction (%s)",
			in.Mnemonic())
	}
	return insn.encode(ctx)
}

// Fill pads with nop (all zero) words.
func (Architecture) Fill(length int64) ([]byte, error) {
	if length%instructionLength != 0 {
		return nil, asmerr.New(
			asmerr.Module,
			parseutil.Location{},
			"cannot fill %d bytes with mips instructions",
			length)
	}
	return make([]byte, length), nil
}
