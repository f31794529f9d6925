package lift

import (
	"github.com/mewmew/pcode/bin"
	"github.com/mewmew/pcode/pcode"
)

// flow is the control flow of an instruction, as determined by one control
// transfer operation.
type flow struct {
	// Control flow category.
	category Category
	// Target address of direct control flow.
	target bin.Addr
}

// FlowResolver determines the control flow category of an instruction from its
// p-code operations. It implements the pcode.Emitter interface.
//
// An instruction with more than one control transfer operation is demoted to
// an indirect branch.
type FlowResolver struct {
	// Control flow of the instruction; or nil if no control transfer operation
	// has been seen.
	flow *flow
}

// Emit records the control flow of the given p-code operation.
func (fr *FlowResolver) Emit(addr bin.Addr, op pcode.OpCode, out *pcode.Varnode, in []pcode.Varnode) {
	if !op.IsFlow() {
		return
	}
	if len(in) == 0 {
		warn.Printf("%v operation without target at %v", op, addr)
		return
	}
	if fr.flow != nil {
		warn.Printf("demoting instruction at %v to indirect branch; more than one control transfer operation", addr)
		fr.flow = &flow{category: CategoryIndirectBranch}
		return
	}
	f := flowOf(op, in[0])
	fr.flow = &f
}

// Resolve sets the control flow category and target address of inst, based on
// the address of the next instruction in memory.
func (fr *FlowResolver) Resolve(next bin.Addr, inst *Instruction) {
	inst.Fallthrough = next
	inst.Target = 0
	switch {
	case fr.flow == nil:
		inst.Category = CategoryNormal
	case fr.flow.category == CategoryDirectConditionalBranch && fr.flow.target == next:
		// Both edges of the conditional branch lead to the next instruction.
		inst.Category = CategoryNormal
	default:
		inst.Category = fr.flow.category
		if inst.Category.IsDirect() {
			inst.Target = fr.flow.target
		}
	}
}

// Reset forgets the control flow seen so far.
func (fr *FlowResolver) Reset() {
	fr.flow = nil
}

// flowOf returns the control flow of the given control transfer operation with
// the given controlling operand.
func flowOf(op pcode.OpCode, target pcode.Varnode) flow {
	direct := target.IsConstant()
	switch op {
	case pcode.BRANCH, pcode.CALL, pcode.CBRANCH:
		// Absolute target address.
		direct = direct || target.Space == pcode.Memory
	}
	if direct {
		f := flow{target: bin.Addr(target.Offset)}
		switch op {
		case pcode.CALL, pcode.CALLIND:
			f.category = CategoryDirectCall
		case pcode.CBRANCH:
			f.category = CategoryDirectConditionalBranch
		default:
			f.category = CategoryDirectBranch
		}
		return f
	}
	switch op {
	case pcode.CALL, pcode.CALLIND:
		return flow{category: CategoryIndirectCall}
	case pcode.RETURN:
		return flow{category: CategoryIndirectReturn}
	default:
		return flow{category: CategoryIndirectBranch}
	}
}
