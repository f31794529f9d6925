package x86

import (
	"github.com/mewmew/pcode/pcode"
	"golang.org/x/arch/x86/x86asm"
)

// Register space offsets of 32-bit registers.
const (
	offEAX = 0x00
	offECX = 0x04
	offEDX = 0x08
	offEBX = 0x0C
	offESP = 0x10
	offEBP = 0x14
	offESI = 0x18
	offEDI = 0x1C
	offEIP = 0x284
)

// Register space offsets of status flags.
const (
	offCF = 0x200
	offPF = 0x202
	offAF = 0x204
	offZF = 0x206
	offSF = 0x207
	offDF = 0x20A
	offOF = 0x20B
)

// Status flags.
var (
	cf = pcode.NewRegister(offCF, 1)
	pf = pcode.NewRegister(offPF, 1)
	zf = pcode.NewRegister(offZF, 1)
	sf = pcode.NewRegister(offSF, 1)
	of = pcode.NewRegister(offOF, 1)
)

// Frequently used registers.
var (
	ecx = pcode.NewRegister(offECX, 4)
	esp = pcode.NewRegister(offESP, 4)
)

// regs maps from x86 register to register varnode.
var regs = map[x86asm.Reg]pcode.Varnode{
	// 32-bit registers.
	x86asm.EAX: pcode.NewRegister(offEAX, 4),
	x86asm.ECX: pcode.NewRegister(offECX, 4),
	x86asm.EDX: pcode.NewRegister(offEDX, 4),
	x86asm.EBX: pcode.NewRegister(offEBX, 4),
	x86asm.ESP: pcode.NewRegister(offESP, 4),
	x86asm.EBP: pcode.NewRegister(offEBP, 4),
	x86asm.ESI: pcode.NewRegister(offESI, 4),
	x86asm.EDI: pcode.NewRegister(offEDI, 4),
	// 16-bit registers.
	x86asm.AX: pcode.NewRegister(offEAX, 2),
	x86asm.CX: pcode.NewRegister(offECX, 2),
	x86asm.DX: pcode.NewRegister(offEDX, 2),
	x86asm.BX: pcode.NewRegister(offEBX, 2),
	x86asm.SP: pcode.NewRegister(offESP, 2),
	x86asm.BP: pcode.NewRegister(offEBP, 2),
	x86asm.SI: pcode.NewRegister(offESI, 2),
	x86asm.DI: pcode.NewRegister(offEDI, 2),
	// 8-bit registers.
	x86asm.AL: pcode.NewRegister(offEAX, 1),
	x86asm.CL: pcode.NewRegister(offECX, 1),
	x86asm.DL: pcode.NewRegister(offEDX, 1),
	x86asm.BL: pcode.NewRegister(offEBX, 1),
	x86asm.AH: pcode.NewRegister(offEAX+1, 1),
	x86asm.CH: pcode.NewRegister(offECX+1, 1),
	x86asm.DH: pcode.NewRegister(offEDX+1, 1),
	x86asm.BH: pcode.NewRegister(offEBX+1, 1),
}

// regKey identifies a register in the register space.
type regKey struct {
	offset uint64
	size   uint64
}

// regNames maps from register space location to register name.
var regNames = map[regKey]string{
	{offEIP, 4}: "EIP",
	{offCF, 1}:  "CF",
	{offPF, 1}:  "PF",
	{offAF, 1}:  "AF",
	{offZF, 1}:  "ZF",
	{offSF, 1}:  "SF",
	{offDF, 1}:  "DF",
	{offOF, 1}:  "OF",
}

func init() {
	for reg, v := range regs {
		regNames[regKey{offset: v.Offset, size: v.Size}] = reg.String()
	}
}
