package lift

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/mewmew/pcode/arch"
	"github.com/mewmew/pcode/bin"
	"github.com/pkg/errors"
)

// Lifter lifts machine instructions into LLVM IR, based on their p-code.
//
// A lifter resets its decoder before each decoding pass and is not safe for
// concurrent use.
type Lifter struct {
	// Architecture description.
	arch arch.Arch
	// Machine instruction to p-code decoder.
	dec Decoder
}

// NewLifter returns a new lifter for the given architecture and decoder.
func NewLifter(a arch.Arch, dec Decoder) *Lifter {
	return &Lifter{arch: a, dec: dec}
}

// Arch returns the architecture description of the lifter.
func (l *Lifter) Arch() arch.Arch {
	return l.arch
}

// Decode decodes the leading bytes in src as a single instruction at addr, and
// determines its control flow category.
//
// The returned instruction is marked invalid if the bytes fail to decode.
func (l *Lifter) Decode(addr bin.Addr, src []byte) (*Instruction, error) {
	inst := &Instruction{Addr: addr}
	l.dec.Reset()
	fr := &FlowResolver{}
	n, err := l.dec.OneInstruction(addr, src, fr)
	if err != nil {
		return inst, errors.WithStack(err)
	}
	if n <= 0 || n > len(src) {
		return inst, errors.Errorf("invalid instruction length %d at %v; expected 1 <= n <= %d", n, addr, len(src))
	}
	inst.Bytes = append([]byte(nil), src[:n]...)
	inst.Valid = true
	if mnemonic, err := l.dec.Disassemble(addr, inst.Bytes); err == nil {
		inst.Mnemonic = mnemonic
	} else {
		warn.Printf("unable to disassemble instruction at %v; %v", addr, err)
	}
	fr.Resolve(inst.next(), inst)
	dbg.Printf("decoded %v", inst)
	return inst, nil
}

// LiftIntoFunc lifts the given instruction into a new instruction function of
// m, and returns the lift status and the instruction function.
//
// The instruction function takes a pointer to the CPU-state structure, the
// program counter and the memory token, and returns the updated memory token.
func (l *Lifter) LiftIntoFunc(inst *Instruction, m *ir.Module) (Status, *ir.Func) {
	if !inst.Valid {
		warn.Printf("unable to lift invalid instruction at %v", inst.Addr)
		return StatusInvalid, nil
	}
	l.arch.PrepareModule(m)
	name := uniqueFuncName(m, fmt.Sprintf("insn_%08X", uint64(inst.Addr)))
	f := newFunc(m, l.arch, name)
	e := newEmitter(l.arch, l.dec, inst, f)
	l.dec.Reset()
	if _, err := l.dec.OneInstruction(inst.Addr, inst.Bytes, e); err != nil {
		// The instruction decoded successfully before; the decoder is
		// inconsistent.
		panic(errors.Wrapf(err, "unable to re-decode instruction at %v", inst.Addr))
	}
	e.finish()
	f.Linkage = enum.LinkageInternal
	f.FuncAttrs = append(f.FuncAttrs, enum.FuncAttrAlwaysInline)
	dbg.Printf("lifted %v (%v)", inst, e.status)
	return e.status, f
}

// ### [ Helper functions ] ####################################################

// newFunc defines a new function of the given name in m, with the signature
// of instruction functions.
func newFunc(m *ir.Module, a arch.Arch, name string) *ir.Func {
	state := ir.NewParam("state", types.NewPointer(a.StateType()))
	pc := ir.NewParam("pc", a.WordType())
	memory := ir.NewParam("memory", a.MemoryType())
	return m.NewFunc(name, a.MemoryType(), state, pc, memory)
}

// uniqueFuncName returns a function name based on name which is not yet used
// in m.
func uniqueFuncName(m *ir.Module, name string) string {
	used := make(map[string]bool)
	for _, f := range m.Funcs {
		used[f.Name()] = true
	}
	if !used[name] {
		return name
	}
	for i := 1; ; i++ {
		s := fmt.Sprintf("%s.%d", name, i)
		if !used[s] {
			return s
		}
	}
}
