package x86

import (
	"github.com/pattyshack/assembly/platform"
)

var (
	rsp = platform.NewStackPointerRegister("rsp", 4)

	rax = platform.NewGeneralRegister("rax", 0)
	rcx = platform.NewGeneralRegister("rcx", 1)
	rdx = platform.NewGeneralRegister("rdx", 2)
	rbx = platform.NewGeneralRegister("rbx", 3)
	rbp = platform.NewGeneralRegister("rbp", 5)
	rsi = platform.NewGeneralRegister("rsi", 6)
	rdi = platform.NewGeneralRegister("rdi", 7)
	r8  = platform.NewGeneralRegister("r8", 8)
	r9  = platform.NewGeneralRegister("r9", 9)
	r10 = platform.NewGeneralRegister("r10", 10)
	r11 = platform.NewGeneralRegister("r11", 11)
	r12 = platform.NewGeneralRegister("r12", 12)
	r13 = platform.NewGeneralRegister("r13", 13)
	r14 = platform.NewGeneralRegister("r14", 14)
	r15 = platform.NewGeneralRegister("r15", 15)

	xmm0  = platform.NewFloatRegister("xmm0", 0)
	xmm1  = platform.NewFloatRegister("xmm1", 1)
	xmm2  = platform.NewFloatRegister("xmm2", 2)
	xmm3  = platform.NewFloatRegister("xmm3", 3)
	xmm4  = platform.NewFloatRegister("xmm4", 4)
	xmm5  = platform.NewFloatRegister("xmm5", 5)
	xmm6  = platform.NewFloatRegister("xmm6", 6)
	xmm7  = platform.NewFloatRegister("xmm7", 7)
	xmm8  = platform.NewFloatRegister("xmm8", 8)
	xmm9  = platform.NewFloatRegister("xmm9", 9)
	xmm10 = platform.NewFloatRegister("xmm10", 10)
	xmm11 = platform.NewFloatRegister("xmm11", 11)
	xmm12 = platform.NewFloatRegister("xmm12", 12)
	xmm13 = platform.NewFloatRegister("xmm13", 13)
	xmm14 = platform.NewFloatRegister("xmm14", 14)
	xmm15 = platform.NewFloatRegister("xmm15", 15)

	ArchitectureRegisters = platform.NewArchitectureRegisters(
		rsp,
		rax, rcx, rdx, rbx, rbp, rsi, rdi,
		r8, r9, r10, r11, r12, r13, r14, r15,
		xmm0, xmm1, xmm2, xmm3, xmm4, xmm5, xmm6, xmm7,
		xmm8, xmm9, xmm10, xmm11, xmm12, xmm13, xmm14, xmm15)
)
