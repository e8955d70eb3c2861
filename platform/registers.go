package platform

import (
	"fmt"
)

type RegisterClass string

const (
	GeneralClass = RegisterClass("general")
	FloatClass   = RegisterClass("float")
)

type Register struct {
	Name  string
	Class RegisterClass

	// The register's encoding number within its class.
	Number int

	// The conventional stack pointer.  It is still a general register as far
	// as instruction encoding is concerned.
	IsStackPointer bool
}

func NewGeneralRegister(name string, number int) *Register {
	return &Register{
		Name:   name,
		Class:  GeneralClass,
		Number: number,
	}
}

func NewStackPointerRegister(name string, number int) *Register {
	reg := NewGeneralRegister(name, number)
	reg.IsStackPointer = true
	return reg
}

func NewFloatRegister(name string, number int) *Register {
	return &Register{
		Name:   name,
		Class:  FloatClass,
		Number: number,
	}
}

func (reg *Register) String() string {
	return "%" + reg.Name
}

// The architecture's register file.  Register reference leaves in
// expressions are validated against it by name.
type ArchitectureRegisters struct {
	StackPointer *Register

	registers []*Register
	byName    map[string]*Register
}

// NewArchitectureRegisters panics on malformed register files, since those
// are programming errors in the architecture module.
func NewArchitectureRegisters(registers ...*Register) *ArchitectureRegisters {
	set := &ArchitectureRegisters{
		byName: map[string]*Register{},
	}

	numbers := map[RegisterClass]map[int]string{}
	for _, reg := range registers {
		if reg.Name == "" {
			panic("no register name")
		}

		_, ok := set.byName[reg.Name]
		if ok {
			panic("added duplicate register: " + reg.Name)
		}

		if reg.Class != GeneralClass && reg.Class != FloatClass {
			panic(fmt.Sprintf("register %s has unknown class", reg.Name))
		}

		classNumbers, ok := numbers[reg.Class]
		if !ok {
			classNumbers = map[int]string{}
			numbers[reg.Class] = classNumbers
		}

		other, ok := classNumbers[reg.Number]
		if ok {
			panic(fmt.Sprintf(
				"registers %s and %s share encoding number %d",
				other,
				reg.Name,
				reg.Number))
		}
		classNumbers[reg.Number] = reg.Name

		if reg.IsStackPointer {
			if set.StackPointer != nil {
				panic("multiple stack pointer register specified")
			}
			set.StackPointer = reg
		}

		set.byName[reg.Name] = reg
		set.registers = append(set.registers, reg)
	}

	return set
}

// All registers in declaration order.
func (set *ArchitectureRegisters) Registers() []*Register {
	return set.registers
}

func (set *ArchitectureRegisters) Lookup(name string) (*Register, bool) {
	reg, ok := set.byName[name]
	return reg, ok
}

// LookupClass is like Lookup, but only returns registers of the given class.
func (set *ArchitectureRegisters) LookupClass(
	name string,
	class RegisterClass,
) (
	*Register,
	bool,
) {
	reg, ok := set.byName[name]
	if !ok || reg.Class != class {
		return nil, false
	}
	return reg, true
}
