package lift

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/mewmew/pcode/arch"
	"github.com/mewmew/pcode/bin"
	"github.com/mewmew/pcode/pcode"
)

// Names of the local variables of instruction functions.
const (
	nextPCName            = "NEXT_PC"
	suppressWritebackName = "SUPPRESS_WRITEBACK"
	zeroCName             = "ZERO_C"
	branchTakenName       = "BRANCH_TAKEN"
	memoryName            = "MEMORY"
)

// emitter translates the p-code operations of one instruction into the basic
// blocks of an instruction function. It implements the pcode.Emitter
// interface.
//
// An emitter is used for exactly one instruction and then discarded.
type emitter struct {
	// Architecture description.
	arch arch.Arch
	// Decoder of the instruction, for register and user-defined operation
	// names.
	dec Decoder
	// Instruction being lifted.
	inst *Instruction

	// Instruction function.
	f *ir.Func
	// Entry basic block, holding local variables.
	entry *ir.Block
	// Current basic block.
	cur *ir.Block
	// Shared exit basic block; appended to the function by finish.
	exit *ir.Block
	// Pointer to the CPU-state structure.
	state value.Value
	// Local variables.
	nextPC      *ir.InstAlloca
	branchTaken *ir.InstAlloca
	memory      *ir.InstAlloca

	// Scratch slots of unique space varnodes.
	uniques *scratchSpace
	// Scratch slots of registers not present in the architecture.
	unknownRegs *scratchSpace
	// Value substitutions of constant offsets.
	claims *claims

	// Worst lift status observed.
	status Status
	// Number of continuation basic blocks.
	ncont int
}

// newEmitter returns a new emitter of the given instruction into the
// instruction function f, and emits the instruction prologue.
//
// The parameters of f are the CPU-state pointer, the program counter and the
// memory token.
func newEmitter(a arch.Arch, dec Decoder, inst *Instruction, f *ir.Func) *emitter {
	entry := f.NewBlock("entry")
	e := &emitter{
		arch:        a,
		dec:         dec,
		inst:        inst,
		f:           f,
		entry:       entry,
		exit:        ir.NewBlock("exit"),
		state:       f.Params[0],
		uniques:     newScratchSpace(entry),
		unknownRegs: newScratchSpace(entry),
		claims:      newClaims(),
		status:      StatusLifted,
	}
	word := a.WordType()
	e.nextPC = newLocal(entry, nextPCName, word, f.Params[1])
	newLocal(entry, suppressWritebackName, types.I32, constant.NewInt(types.I32, 0))
	newLocal(entry, zeroCName, types.I8, constant.NewInt(types.I8, 0))
	e.branchTaken = newLocal(entry, branchTakenName, types.I8, constant.NewInt(types.I8, 0))
	e.memory = newLocal(entry, memoryName, a.MemoryType(), f.Params[2])

	// Lifted p-code is emitted after the locals, so that scratch slots may be
	// allocated in the entry basic block on demand.
	e.cur = f.NewBlock("lift")
	entry.NewBr(e.cur)

	// PC = NEXT_PC = NEXT_PC + len(bytes)
	nextPC := e.cur.NewLoad(word, e.nextPC)
	curPC := e.cur.NewAdd(nextPC, constant.NewInt(word, int64(len(inst.Bytes))))
	e.cur.NewStore(curPC, e.nextPC)
	e.write(e.programCounter(), curPC)
	return e
}

// Emit lifts the given p-code operation into the current basic block.
func (e *emitter) Emit(addr bin.Addr, op pcode.OpCode, out *pcode.Varnode, in []pcode.Varnode) {
	if e.cur.Term != nil {
		// Operations following an unconditional control transfer are
		// unreachable.
		e.cur = e.newContinuation()
	}
	var status Status
	switch {
	case op == pcode.MULTIEQUAL, op == pcode.CPOOLREF:
		status = e.emitVariadic(op, out, in)
	case op == pcode.CALLOTHER:
		status = e.emitCallOther(out, in)
	default:
		switch len(in) {
		case 1:
			status = e.emitUnary(op, out, in[0])
		case 2:
			status = e.emitBinary(op, out, in[0], in[1])
		case 3:
			status = e.emitTernary(op, out, in[0], in[1], in[2])
		default:
			status = StatusUnsupported
		}
	}
	e.updateStatus(addr, op, status)
}

// updateStatus records the lift status of the given operation.
func (e *emitter) updateStatus(addr bin.Addr, op pcode.OpCode, status Status) {
	if status != StatusLifted {
		warn.Printf("unable to lift %v operation of instruction at %v; %v", op, addr, status)
	}
	e.status = worse(e.status, status)
}

// finish terminates the basic blocks of the instruction function and appends
// the exit basic block, which stores PC into NEXT_PC and returns the memory
// token.
func (e *emitter) finish() {
	e.terminate()
	exit := e.exit
	exit.Parent = e.f
	e.f.Blocks = append(e.f.Blocks, exit)
	pc := e.programCounterIn(exit)
	exit.NewStore(exit.NewLoad(e.arch.WordType(), slotPtr(exit, pc.ptr, pc.typ, e.arch.WordType())), e.nextPC)
	exit.NewRet(exit.NewLoad(e.arch.MemoryType(), e.memory))
}

// ### [ Control flow ] ########################################################

// redirect emits a write of the target address into the program counter and
// terminates the current basic block.
func (e *emitter) redirect(target value.Value) Status {
	target = fitInt(e.cur, target, e.arch.WordType())
	status := e.write(e.programCounter(), target)
	e.terminate()
	return status
}

// terminate terminates the current basic block, if not yet terminated, with an
// unconditional branch to the exit basic block.
func (e *emitter) terminate() {
	if e.cur.Term == nil {
		e.cur.NewBr(e.exit)
	}
}

// terminateWithCondition terminates the current basic block with a conditional
// branch to the exit basic block, and continues emission in a new continuation
// basic block.
func (e *emitter) terminateWithCondition(cond value.Value) {
	cont := e.newContinuation()
	e.cur.NewCondBr(cond, e.exit, cont)
	e.cur = cont
}

// newContinuation returns a new continuation basic block.
func (e *emitter) newContinuation() *ir.Block {
	e.ncont++
	return e.f.NewBlock(fmt.Sprintf("continuation_%d", e.ncont))
}

// ### [ Helper functions ] ####################################################

// newLocal emits a local variable of the given name and type into block,
// initialized to init.
func newLocal(block *ir.Block, name string, typ types.Type, init value.Value) *ir.InstAlloca {
	v := block.NewAlloca(typ)
	v.SetName(name)
	block.NewStore(init, v)
	return v
}

// programCounterIn returns the program counter register parameter, with its
// address computed in the given basic block.
func (e *emitter) programCounterIn(block *ir.Block) *param {
	cur := e.cur
	e.cur = block
	pc := e.programCounter()
	e.cur = cur
	return pc
}

// readInt emits a read of the given varnode as an integer of its size.
func (e *emitter) readInt(v pcode.Varnode) (value.Value, bool) {
	return e.read(e.resolve(v), intType(v.Size))
}

// readFloat emits a read of the given varnode as a floating-point value of its
// size.
func (e *emitter) readFloat(v pcode.Varnode) (value.Value, bool) {
	typ, ok := floatType(v.Size)
	if !ok {
		return nil, false
	}
	return e.read(e.resolve(v), typ)
}

// storeOut emits a write of v to the output varnode out.
func (e *emitter) storeOut(out *pcode.Varnode, v value.Value) Status {
	if out == nil {
		return StatusUnsupported
	}
	return e.write(e.resolve(*out), v)
}
