package mips

import (
	"fmt"

	"github.com/pattyshack/assembly/platform"
)

const stackPointer = 29

var ArchitectureRegisters = newArchitectureRegisters()

// r0 - r31 are general registers (r29 is the conventional stack pointer,
// but is still usable as a general register), f0 - f31 are float registers.
func newArchitectureRegisters() *platform.ArchitectureRegisters {
	registers := []*platform.Register{}
	for i := 0; i < 32; i++ {
		name := fmt.Sprintf("r%d", i)
		if i == stackPointer {
			registers = append(
				registers,
				platform.NewStackPointerRegister(name, i))
		} else {
			registers = append(registers, platform.NewGeneralRegister(name, i))
		}
	}
	for i := 0; i < 32; i++ {
		registers = append(
			registers,
			platform.NewFloatRegister(fmt.Sprintf("f%d", i), i))
	}
	return platform.NewArchitectureRegisters(registers...)
}
