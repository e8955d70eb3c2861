package x86

import (
	"encoding/binary"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/assembly/asmerr"
	"github.com/pattyshack/assembly/expression"
	"github.com/pattyshack/assembly/platform"
)

// Architecture is the x86-64 module.  Branches and move immediates have
// variable length encodings: branches start short (rel8) and are widened to
// near (rel32) once the displacement no longer fits.
type Architecture struct{}

var _ platform.Architecture = Architecture{}

func NewArchitecture() platform.Architecture {
	return Architecture{}
}

func (Architecture) Name() platform.ArchitectureName {
	return platform.X86
}

func (Architecture) AddressSize() int {
	return 64
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

func instruction(in platform.Instruction) (*Instruction, error) {
	insn, ok := in.(*Instruction)
	if !ok {
		return nil, asmerr.New(
			asmerr.Module,
			parseutil.Location{},
			"not an x86 instruction (%s)",
			in.Mnemonic())
	}
	return insn, nil
}

func (Architecture) IsVariable(in platform.Instruction) bool {
	insn, err := instruction(in)
	if err != nil {
		return false
	}
	return insn.isVariable()
}

// TentativeLength returns the narrowest encoding's length, which is a lower
// bound of every length ResolveLength may return.
func (Architecture) TentativeLength(
	in platform.Instruction,
	ctx platform.LengthContext,
) (
	int64,
	error,
) {
	insn, err := instruction(in)
	if err != nil {
		return 0, err
	}

	switch insn.spec.kind {
	case branchEncoding:
		if insn.long {
			return insn.spec.nearBranchLength(), nil
		}
		return shortBranchLength, nil
	case moveImmediateEncoding:
		if insn.isVariable() {
			if insn.long {
				return moveImm64Length, nil
			}
			return moveImm32Length, nil
		}
	}

	return insn.length(ctx)
}

func (Architecture) ResolveLength(
	in platform.Instruction,
	ctx platform.LengthContext,
) (
	int64,
	error,
) {
	insn, err := instruction(in)
	if err != nil {
		return 0, err
	}
	return insn.length(ctx)
}

func (Architecture) Encode(
	in platform.Instruction,
	ctx platform.EncodeContext,
) (
	[]byte,
	error,
) {
	insn, err := instruction(in)
	if err != nil {
		return nil, err
	}
	return insn.encode(ctx)
}

func (Architecture) Fill(length int64) ([]byte, error) {
	return nop(int(length)), nil
}
