package lift

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
	"github.com/mewmew/pcode/arch"
	"github.com/pkg/errors"
)

// Frame holds the local variables of a dispatcher function, through which
// instruction functions are called.
type Frame struct {
	// Pointer to the CPU-state structure.
	State value.Value
	// Current program counter.
	PC *ir.InstAlloca
	// Program counter of the next instruction.
	NextPC *ir.InstAlloca
	// Memory token.
	Memory *ir.InstAlloca
}

// NewBlockFunc defines a new dispatcher function of the given name in m, with
// the signature of instruction functions. The returned frame holds the local
// variables of the entry basic block, which is left unterminated.
func NewBlockFunc(m *ir.Module, a arch.Arch, name string) (*ir.Func, *Frame) {
	a.PrepareModule(m)
	f := newFunc(m, a, name)
	entry := f.NewBlock("entry")
	frame := &Frame{
		State:  f.Params[0],
		PC:     newLocal(entry, "PC", a.WordType(), f.Params[1]),
		NextPC: newLocal(entry, nextPCName, a.WordType(), f.Params[1]),
		Memory: newLocal(entry, memoryName, a.MemoryType(), f.Params[2]),
	}
	return f, frame
}

// LiftIntoBlock lifts the given instruction into an instruction function, and
// emits a call to it into block, using the local variables of frame. After the
// call, the program counter of the CPU-state structure is copied into both the
// PC and NEXT_PC locals.
//
// Invalid instructions are not lifted, and nothing is emitted.
func (l *Lifter) LiftIntoBlock(inst *Instruction, block *ir.Block, frame *Frame) Status {
	if !inst.Valid {
		warn.Printf("unable to lift invalid instruction at %v", inst.Addr)
		return StatusInvalid
	}
	status, f := l.LiftIntoFunc(inst, block.Parent.Parent)
	word := l.arch.WordType()
	pc := block.NewLoad(word, frame.PC)
	mem := block.NewLoad(l.arch.MemoryType(), frame.Memory)
	block.NewStore(block.NewCall(f, frame.State, pc, mem), frame.Memory)
	reg, ok := l.arch.RegisterByName("PC")
	if !ok {
		panic(errors.Errorf("unable to locate program counter register of architecture %q", l.arch.Name()))
	}
	statePC := block.NewLoad(word, slotPtr(block, reg.AddressOf(block, frame.State), reg.Type, word))
	block.NewStore(statePC, frame.PC)
	block.NewStore(statePC, frame.NextPC)
	return status
}
