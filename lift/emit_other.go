package lift

import (
	"github.com/llir/llvm/ir"
	"github.com/mewmew/pcode/pcode"
)

// emitTernary lifts the given ternary p-code operation.
func (e *emitter) emitTernary(op pcode.OpCode, out *pcode.Varnode, x, y, z pcode.Varnode) Status {
	switch op {
	case pcode.STORE:
		// x is the address space identifier.
		index, ok := e.read(e.resolve(y), e.arch.WordType())
		if !ok {
			return StatusUnsupported
		}
		v, ok := e.readInt(z)
		if !ok {
			return StatusUnsupported
		}
		return e.write(memoryParam(index), v)
	case pcode.PTRADD:
		// base + index*elemSize
		base, ok := e.read(e.resolve(x), e.arch.WordType())
		if !ok {
			return StatusUnsupported
		}
		index, ok := e.readInt(y)
		if !ok {
			return StatusUnsupported
		}
		index = fitInt(e.cur, index, e.arch.WordType())
		elemSize := literal(e.arch.WordType(), z.Offset)
		return e.storeOut(out, e.cur.NewAdd(base, e.cur.NewMul(index, elemSize)))
	case pcode.PTRSUB:
		// base + offset
		base, ok := e.read(e.resolve(x), e.arch.WordType())
		if !ok {
			return StatusUnsupported
		}
		offset, ok := e.readInt(y)
		if !ok {
			return StatusUnsupported
		}
		offset = fitInt(e.cur, offset, e.arch.WordType())
		return e.storeOut(out, e.cur.NewAdd(base, offset))
	}
	return StatusUnsupported
}

// emitVariadic lifts the given variadic p-code operation.
func (e *emitter) emitVariadic(op pcode.OpCode, out *pcode.Varnode, in []pcode.Varnode) Status {
	switch op {
	case pcode.MULTIEQUAL:
		if out == nil || len(in) == 0 {
			return StatusUnsupported
		}
		var incs []*ir.Incoming
		for _, v := range in {
			x, ok := e.readInt(v)
			if !ok {
				return StatusUnsupported
			}
			// TODO: track the predecessor basic block of each incoming value;
			// every edge is currently tagged with the current basic block.
			incs = append(incs, ir.NewIncoming(x, e.cur))
		}
		return e.storeOut(out, e.cur.NewPhi(incs...))
	case pcode.CPOOLREF:
		// Only generated for managed bytecode.
		return StatusUnsupported
	}
	return StatusUnsupported
}

// emitCallOther lifts a call to a user-defined operation. The first input
// identifies the operation.
func (e *emitter) emitCallOther(out *pcode.Varnode, in []pcode.Varnode) Status {
	names := e.dec.UserOpNames()
	if len(in) < 1 || in[0].Offset >= uint64(len(names)) {
		return StatusUnsupported
	}
	name := names[in[0].Offset]
	if name == equalityClaimName && len(in) == equalityClaimArity {
		e.applyEqualityClaim(in[1], in[2])
		return StatusLifted
	}
	dbg.Printf("user-defined operation %q not supported", name)
	return StatusUnsupported
}
