package x86

import (
	"github.com/mewmew/pcode/bin"
	"github.com/mewmew/pcode/pcode"
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

// ramSpace identifies the memory space in the first input of LOAD and STORE
// operations.
var ramSpace = pcode.NewConstant(uint64(pcode.Memory), 4)

// builder emits the p-code operations of one x86 instruction.
type builder struct {
	// Decoder, allocating temporaries.
	d *Decoder
	// Receiver of p-code operations.
	e pcode.Emitter
	// Address of the instruction.
	addr bin.Addr
	// Address of the next instruction.
	next bin.Addr
}

// lift emits the p-code operations of the given instruction.
func (b *builder) lift(inst x86asm.Inst) error {
	switch inst.Op {
	case x86asm.NOP:
		return nil
	case x86asm.MOV:
		return b.liftMOV(inst)
	case x86asm.LEA:
		return b.liftLEA(inst)
	case x86asm.ADD, x86asm.SUB, x86asm.CMP:
		return b.liftArith(inst)
	case x86asm.AND, x86asm.OR, x86asm.XOR, x86asm.TEST:
		return b.liftLogic(inst)
	case x86asm.INC, x86asm.DEC:
		return b.liftIncDec(inst)
	case x86asm.NEG, x86asm.NOT:
		return b.liftNegNot(inst)
	case x86asm.PUSH:
		return b.liftPUSH(inst)
	case x86asm.POP:
		return b.liftPOP(inst)
	case x86asm.JMP:
		return b.liftJMP(inst)
	case x86asm.CALL:
		return b.liftCALL(inst)
	case x86asm.RET:
		return b.liftRET(inst)
	case x86asm.CPUID:
		b.emit(pcode.CALLOTHER, nil, pcode.NewConstant(userOpCPUID, 4))
		return nil
	case x86asm.RDTSC:
		b.emit(pcode.CALLOTHER, nil, pcode.NewConstant(userOpRDTSC, 4))
		return nil
	}
	if _, ok := conds[inst.Op]; ok {
		return b.liftJcc(inst)
	}
	return errors.Errorf("support for x86 instruction %v at %v not yet implemented", inst.Op, b.addr)
}

// liftMOV emits the p-code of a MOV instruction.
func (b *builder) liftMOV(inst x86asm.Inst) error {
	size := opSize(inst)
	src, err := b.read(inst.Args[1], size)
	if err != nil {
		return errors.WithStack(err)
	}
	return b.write(inst.Args[0], src)
}

// liftLEA emits the p-code of an LEA instruction.
func (b *builder) liftLEA(inst x86asm.Inst) error {
	mem, ok := inst.Args[1].(x86asm.Mem)
	if !ok {
		return errors.Errorf("invalid LEA source operand %v at %v", inst.Args[1], b.addr)
	}
	addr := b.address(mem)
	if opSize(inst) != 4 {
		return errors.Errorf("support for %d-byte LEA at %v not yet implemented", opSize(inst), b.addr)
	}
	return b.write(inst.Args[0], addr)
}

// liftArith emits the p-code of an ADD, SUB or CMP instruction.
func (b *builder) liftArith(inst x86asm.Inst) error {
	size := opSize(inst)
	x, err := b.read(inst.Args[0], size)
	if err != nil {
		return errors.WithStack(err)
	}
	y, err := b.read(inst.Args[1], size)
	if err != nil {
		return errors.WithStack(err)
	}
	var result pcode.Varnode
	if inst.Op == x86asm.ADD {
		b.emit(pcode.INT_CARRY, &cf, x, y)
		b.emit(pcode.INT_SCARRY, &of, x, y)
		result = b.binary(pcode.INT_ADD, x, y, size)
	} else {
		b.emit(pcode.INT_LESS, &cf, x, y)
		b.emit(pcode.INT_SBORROW, &of, x, y)
		result = b.binary(pcode.INT_SUB, x, y, size)
	}
	b.resultFlags(result)
	if inst.Op == x86asm.CMP {
		return nil
	}
	return b.write(inst.Args[0], result)
}

// logicOps maps from x86 logic instruction to p-code operation.
var logicOps = map[x86asm.Op]pcode.OpCode{
	x86asm.AND:  pcode.INT_AND,
	x86asm.OR:   pcode.INT_OR,
	x86asm.XOR:  pcode.INT_XOR,
	x86asm.TEST: pcode.INT_AND,
}

// liftLogic emits the p-code of an AND, OR, XOR or TEST instruction.
func (b *builder) liftLogic(inst x86asm.Inst) error {
	size := opSize(inst)
	x, err := b.read(inst.Args[0], size)
	if err != nil {
		return errors.WithStack(err)
	}
	y, err := b.read(inst.Args[1], size)
	if err != nil {
		return errors.WithStack(err)
	}
	result := b.binary(logicOps[inst.Op], x, y, size)
	b.emit(pcode.COPY, &cf, pcode.NewConstant(0, 1))
	b.emit(pcode.COPY, &of, pcode.NewConstant(0, 1))
	b.resultFlags(result)
	if inst.Op == x86asm.TEST {
		return nil
	}
	return b.write(inst.Args[0], result)
}

// liftIncDec emits the p-code of an INC or DEC instruction. The carry flag is
// not affected.
func (b *builder) liftIncDec(inst x86asm.Inst) error {
	size := opSize(inst)
	x, err := b.read(inst.Args[0], size)
	if err != nil {
		return errors.WithStack(err)
	}
	one := pcode.NewConstant(1, size)
	var result pcode.Varnode
	if inst.Op == x86asm.INC {
		b.emit(pcode.INT_SCARRY, &of, x, one)
		result = b.binary(pcode.INT_ADD, x, one, size)
	} else {
		b.emit(pcode.INT_SBORROW, &of, x, one)
		result = b.binary(pcode.INT_SUB, x, one, size)
	}
	b.resultFlags(result)
	return b.write(inst.Args[0], result)
}

// liftNegNot emits the p-code of a NEG or NOT instruction.
func (b *builder) liftNegNot(inst x86asm.Inst) error {
	size := opSize(inst)
	x, err := b.read(inst.Args[0], size)
	if err != nil {
		return errors.WithStack(err)
	}
	if inst.Op == x86asm.NOT {
		return b.write(inst.Args[0], b.unary(pcode.INT_NEGATE, x, size))
	}
	zero := pcode.NewConstant(0, size)
	b.emit(pcode.INT_NOTEQUAL, &cf, x, zero)
	b.emit(pcode.INT_SBORROW, &of, zero, x)
	result := b.unary(pcode.INT_2COMP, x, size)
	b.resultFlags(result)
	return b.write(inst.Args[0], result)
}

// liftPUSH emits the p-code of a PUSH instruction.
func (b *builder) liftPUSH(inst x86asm.Inst) error {
	v, err := b.read(inst.Args[0], opSize(inst))
	if err != nil {
		return errors.WithStack(err)
	}
	b.push(v)
	return nil
}

// liftPOP emits the p-code of a POP instruction.
func (b *builder) liftPOP(inst x86asm.Inst) error {
	return b.write(inst.Args[0], b.pop(opSize(inst)))
}

// liftJMP emits the p-code of a JMP instruction.
func (b *builder) liftJMP(inst x86asm.Inst) error {
	if rel, ok := inst.Args[0].(x86asm.Rel); ok {
		b.emit(pcode.BRANCH, nil, b.target(rel))
		return nil
	}
	target, err := b.read(inst.Args[0], 4)
	if err != nil {
		return errors.WithStack(err)
	}
	b.emit(pcode.BRANCHIND, nil, target)
	return nil
}

// liftCALL emits the p-code of a CALL instruction.
func (b *builder) liftCALL(inst x86asm.Inst) error {
	ret := pcode.NewConstant(uint64(b.next), 4)
	if rel, ok := inst.Args[0].(x86asm.Rel); ok {
		b.push(ret)
		b.emit(pcode.CALL, nil, b.target(rel))
		return nil
	}
	target, err := b.read(inst.Args[0], 4)
	if err != nil {
		return errors.WithStack(err)
	}
	if target.Space != pcode.Scratch {
		// Read the target before ESP is updated.
		t := b.tmp(4)
		b.emit(pcode.COPY, &t, target)
		target = t
	}
	b.push(ret)
	b.emit(pcode.CALLIND, nil, target)
	return nil
}

// liftRET emits the p-code of a RET instruction.
func (b *builder) liftRET(inst x86asm.Inst) error {
	target := b.pop(4)
	if imm, ok := inst.Args[0].(x86asm.Imm); ok {
		b.emit(pcode.INT_ADD, &esp, esp, pcode.NewConstant(uint64(imm), 4))
	}
	b.emit(pcode.RETURN, nil, target)
	return nil
}

// conds maps from x86 conditional jump instruction to the p-code computing its
// condition.
var conds = map[x86asm.Op]func(b *builder) pcode.Varnode{
	x86asm.JO:  func(b *builder) pcode.Varnode { return of },
	x86asm.JNO: func(b *builder) pcode.Varnode { return b.not(of) },
	x86asm.JB:  func(b *builder) pcode.Varnode { return cf },
	x86asm.JAE: func(b *builder) pcode.Varnode { return b.not(cf) },
	x86asm.JE:  func(b *builder) pcode.Varnode { return zf },
	x86asm.JNE: func(b *builder) pcode.Varnode { return b.not(zf) },
	x86asm.JBE: func(b *builder) pcode.Varnode { return b.binary(pcode.BOOL_OR, cf, zf, 1) },
	x86asm.JA:  func(b *builder) pcode.Varnode { return b.not(b.binary(pcode.BOOL_OR, cf, zf, 1)) },
	x86asm.JS:  func(b *builder) pcode.Varnode { return sf },
	x86asm.JNS: func(b *builder) pcode.Varnode { return b.not(sf) },
	x86asm.JP:  func(b *builder) pcode.Varnode { return pf },
	x86asm.JNP: func(b *builder) pcode.Varnode { return b.not(pf) },
	x86asm.JL:  func(b *builder) pcode.Varnode { return b.binary(pcode.INT_NOTEQUAL, sf, of, 1) },
	x86asm.JGE: func(b *builder) pcode.Varnode { return b.binary(pcode.INT_EQUAL, sf, of, 1) },
	x86asm.JLE: func(b *builder) pcode.Varnode {
		return b.binary(pcode.BOOL_OR, zf, b.binary(pcode.INT_NOTEQUAL, sf, of, 1), 1)
	},
	x86asm.JG: func(b *builder) pcode.Varnode {
		return b.binary(pcode.BOOL_AND, b.not(zf), b.binary(pcode.INT_EQUAL, sf, of, 1), 1)
	},
	x86asm.JECXZ: func(b *builder) pcode.Varnode {
		return b.binary(pcode.INT_EQUAL, ecx, pcode.NewConstant(0, 4), 1)
	},
}

// liftJcc emits the p-code of a conditional jump instruction.
func (b *builder) liftJcc(inst x86asm.Inst) error {
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return errors.Errorf("invalid %v target operand %v at %v", inst.Op, inst.Args[0], b.addr)
	}
	cond := conds[inst.Op](b)
	b.emit(pcode.CBRANCH, nil, b.target(rel), cond)
	return nil
}

// ### [ Operands ] ############################################################

// read returns a varnode holding the value of the given operand.
func (b *builder) read(arg x86asm.Arg, size uint64) (pcode.Varnode, error) {
	switch arg := arg.(type) {
	case x86asm.Reg:
		return reg(arg)
	case x86asm.Imm:
		return pcode.NewConstant(uint64(arg)&mask(size), size), nil
	case x86asm.Mem:
		if abs, ok := absolute(arg); ok {
			return pcode.NewMemory(abs, size), nil
		}
		v := b.tmp(size)
		b.emit(pcode.LOAD, &v, ramSpace, b.address(arg))
		return v, nil
	}
	return pcode.Varnode{}, errors.Errorf("support for operand %v (%T) at %v not yet implemented", arg, arg, b.addr)
}

// write emits the p-code storing v in the given operand.
func (b *builder) write(arg x86asm.Arg, v pcode.Varnode) error {
	switch arg := arg.(type) {
	case x86asm.Reg:
		dst, err := reg(arg)
		if err != nil {
			return errors.WithStack(err)
		}
		b.emit(pcode.COPY, &dst, v)
		return nil
	case x86asm.Mem:
		if abs, ok := absolute(arg); ok {
			dst := pcode.NewMemory(abs, v.Size)
			b.emit(pcode.COPY, &dst, v)
			return nil
		}
		b.emit(pcode.STORE, nil, ramSpace, b.address(arg), v)
		return nil
	}
	return errors.Errorf("invalid destination operand %v (%T) at %v", arg, arg, b.addr)
}

// address returns a varnode holding the effective address of the given memory
// operand. Segment overrides are ignored.
func (b *builder) address(mem x86asm.Mem) pcode.Varnode {
	if mem.Segment != 0 {
		warn.Printf("ignoring segment override %v at %v", mem.Segment, b.addr)
	}
	disp := pcode.NewConstant(uint64(mem.Disp)&mask(4), 4)
	var addr *pcode.Varnode
	if mem.Base != 0 {
		base, err := reg(mem.Base)
		if err == nil {
			addr = &base
		}
	}
	if mem.Index != 0 {
		if index, err := reg(mem.Index); err == nil {
			if mem.Scale > 1 {
				index = b.binary(pcode.INT_MULT, index, pcode.NewConstant(uint64(mem.Scale), 4), 4)
			}
			if addr != nil {
				index = b.binary(pcode.INT_ADD, *addr, index, 4)
			}
			addr = &index
		}
	}
	switch {
	case addr == nil:
		return disp
	case mem.Disp == 0:
		return *addr
	}
	return b.binary(pcode.INT_ADD, *addr, disp, 4)
}

// target returns the memory varnode of the target address of a relative
// branch.
func (b *builder) target(rel x86asm.Rel) pcode.Varnode {
	addr := uint64(int64(b.next)+int64(rel)) & mask(4)
	return pcode.NewMemory(addr, 4)
}

// ### [ P-code ] ##############################################################

// emit emits the given p-code operation.
func (b *builder) emit(op pcode.OpCode, out *pcode.Varnode, in ...pcode.Varnode) {
	b.e.Emit(b.addr, op, out, in)
}

// tmp returns a new temporary of the given size in bytes.
func (b *builder) tmp(size uint64) pcode.Varnode {
	v := pcode.NewScratch(b.d.unique, size)
	b.d.unique += 0x10
	return v
}

// unary emits the unary operation op on x into a new temporary of the given
// size.
func (b *builder) unary(op pcode.OpCode, x pcode.Varnode, size uint64) pcode.Varnode {
	t := b.tmp(size)
	b.emit(op, &t, x)
	return t
}

// binary emits the binary operation op on x and y into a new temporary of the
// given size.
func (b *builder) binary(op pcode.OpCode, x, y pcode.Varnode, size uint64) pcode.Varnode {
	t := b.tmp(size)
	b.emit(op, &t, x, y)
	return t
}

// not returns the boolean negation of the given flag.
func (b *builder) not(flag pcode.Varnode) pcode.Varnode {
	return b.unary(pcode.BOOL_NEGATE, flag, 1)
}

// resultFlags emits the p-code computing the sign, zero and parity flags of
// the given result.
func (b *builder) resultFlags(result pcode.Varnode) {
	zero := pcode.NewConstant(0, result.Size)
	b.emit(pcode.INT_SLESS, &sf, result, zero)
	b.emit(pcode.INT_EQUAL, &zf, result, zero)
	// PF is set if the low byte has an even number of set bits.
	low := b.binary(pcode.SUBPIECE, result, pcode.NewConstant(0, 4), 1)
	n := b.unary(pcode.POPCOUNT, low, 1)
	odd := b.binary(pcode.INT_AND, n, pcode.NewConstant(1, 1), 1)
	b.emit(pcode.INT_EQUAL, &pf, odd, pcode.NewConstant(0, 1))
}

// push emits the p-code pushing v onto the stack.
func (b *builder) push(v pcode.Varnode) {
	if v.Space == pcode.Register {
		// PUSH ESP stores the value of ESP before the decrement.
		t := b.tmp(v.Size)
		b.emit(pcode.COPY, &t, v)
		v = t
	}
	b.emit(pcode.INT_SUB, &esp, esp, pcode.NewConstant(v.Size, 4))
	b.emit(pcode.STORE, nil, ramSpace, esp, v)
}

// pop emits the p-code popping a value of the given size off the stack.
func (b *builder) pop(size uint64) pcode.Varnode {
	v := b.tmp(size)
	b.emit(pcode.LOAD, &v, ramSpace, esp)
	b.emit(pcode.INT_ADD, &esp, esp, pcode.NewConstant(size, 4))
	return v
}

// ### [ Helper functions ] ####################################################

// reg returns the varnode of the given register.
func reg(r x86asm.Reg) (pcode.Varnode, error) {
	v, ok := regs[r]
	if !ok {
		return pcode.Varnode{}, errors.Errorf("support for register %v not yet implemented", r)
	}
	return v, nil
}

// absolute reports whether the given memory operand is an absolute address,
// and returns the address.
func absolute(mem x86asm.Mem) (uint64, bool) {
	if mem.Base != 0 || mem.Index != 0 || mem.Segment != 0 {
		return 0, false
	}
	return uint64(mem.Disp) & mask(4), true
}

// opSize returns the operand size in bytes of the given instruction.
func opSize(inst x86asm.Inst) uint64 {
	for _, arg := range inst.Args {
		if r, ok := arg.(x86asm.Reg); ok {
			if v, ok := regs[r]; ok {
				return v.Size
			}
		}
	}
	if inst.MemBytes != 0 {
		return uint64(inst.MemBytes)
	}
	return uint64(inst.DataSize / 8)
}

// mask returns the bit mask of values of the given size in bytes.
func mask(size uint64) uint64 {
	if size >= 8 {
		return 1<<64 - 1
	}
	return 1<<(size*8) - 1
}
