package lift

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/mewmew/pcode/bin"
	"github.com/mewmew/pcode/intrinsic"
	"github.com/mewmew/pcode/pcode"
)

// binaryOp emits a binary integer operation on x and y into block. Both
// operands have the same type.
type binaryOp func(block *ir.Block, x, y value.Value) value.Value

// binaryOps maps from binary integer operation to its lifted form.
var binaryOps = map[pcode.OpCode]binaryOp{
	pcode.INT_AND: func(block *ir.Block, x, y value.Value) value.Value { return block.NewAnd(x, y) },
	pcode.INT_OR:  func(block *ir.Block, x, y value.Value) value.Value { return block.NewOr(x, y) },
	pcode.INT_XOR: func(block *ir.Block, x, y value.Value) value.Value { return block.NewXor(x, y) },
	pcode.INT_LEFT: func(block *ir.Block, x, y value.Value) value.Value {
		return block.NewShl(x, y)
	},
	pcode.INT_RIGHT: func(block *ir.Block, x, y value.Value) value.Value {
		return block.NewLShr(x, y)
	},
	pcode.INT_SRIGHT: func(block *ir.Block, x, y value.Value) value.Value {
		return block.NewAShr(x, y)
	},
	pcode.INT_ADD:        func(block *ir.Block, x, y value.Value) value.Value { return block.NewAdd(x, y) },
	pcode.INT_SUB:        func(block *ir.Block, x, y value.Value) value.Value { return block.NewSub(x, y) },
	pcode.INT_MULT:       func(block *ir.Block, x, y value.Value) value.Value { return block.NewMul(x, y) },
	pcode.INT_DIV:        func(block *ir.Block, x, y value.Value) value.Value { return block.NewUDiv(x, y) },
	pcode.INT_SDIV:       func(block *ir.Block, x, y value.Value) value.Value { return block.NewSDiv(x, y) },
	pcode.INT_REM:        func(block *ir.Block, x, y value.Value) value.Value { return block.NewURem(x, y) },
	pcode.INT_SREM:       func(block *ir.Block, x, y value.Value) value.Value { return block.NewSRem(x, y) },
	pcode.INT_EQUAL:      icmp(enum.IPredEQ),
	pcode.INT_NOTEQUAL:   icmp(enum.IPredNE),
	pcode.INT_LESS:       icmp(enum.IPredULT),
	pcode.INT_SLESS:      icmp(enum.IPredSLT),
	pcode.INT_LESSEQUAL:  icmp(enum.IPredULE),
	pcode.INT_SLESSEQUAL: icmp(enum.IPredSLE),
	pcode.INT_CARRY:      overflow("llvm.uadd.with.overflow"),
	pcode.INT_SCARRY:     overflow("llvm.sadd.with.overflow"),
	pcode.INT_SBORROW:    overflow("llvm.ssub.with.overflow"),
}

// compareOps specifies the binary integer operations producing a boolean, which
// is widened to one byte.
var compareOps = map[pcode.OpCode]bool{
	pcode.INT_EQUAL:      true,
	pcode.INT_NOTEQUAL:   true,
	pcode.INT_LESS:       true,
	pcode.INT_SLESS:      true,
	pcode.INT_LESSEQUAL:  true,
	pcode.INT_SLESSEQUAL: true,
	pcode.INT_CARRY:      true,
	pcode.INT_SCARRY:     true,
	pcode.INT_SBORROW:    true,
}

// shiftOps specifies the binary integer operations whose shift amount is
// coerced to the type of the shifted operand.
var shiftOps = map[pcode.OpCode]bool{
	pcode.INT_LEFT:   true,
	pcode.INT_RIGHT:  true,
	pcode.INT_SRIGHT: true,
}

// boolOps maps from binary boolean operation to its lifted form.
var boolOps = map[pcode.OpCode]binaryOp{
	pcode.BOOL_AND: func(block *ir.Block, x, y value.Value) value.Value { return block.NewAnd(x, y) },
	pcode.BOOL_OR:  func(block *ir.Block, x, y value.Value) value.Value { return block.NewOr(x, y) },
	pcode.BOOL_XOR: func(block *ir.Block, x, y value.Value) value.Value { return block.NewXor(x, y) },
}

// floatOps maps from binary floating-point operation to its lifted form.
var floatOps = map[pcode.OpCode]binaryOp{
	pcode.FLOAT_EQUAL:     fcmp(enum.FPredOEQ),
	pcode.FLOAT_NOTEQUAL:  fcmp(enum.FPredONE),
	pcode.FLOAT_LESS:      fcmp(enum.FPredOLT),
	pcode.FLOAT_LESSEQUAL: fcmp(enum.FPredOLE),
	pcode.FLOAT_ADD:       func(block *ir.Block, x, y value.Value) value.Value { return block.NewFAdd(x, y) },
	pcode.FLOAT_SUB:       func(block *ir.Block, x, y value.Value) value.Value { return block.NewFSub(x, y) },
	pcode.FLOAT_MULT:      func(block *ir.Block, x, y value.Value) value.Value { return block.NewFMul(x, y) },
	pcode.FLOAT_DIV:       func(block *ir.Block, x, y value.Value) value.Value { return block.NewFDiv(x, y) },
}

// emitBinary lifts the given binary p-code operation.
func (e *emitter) emitBinary(op pcode.OpCode, out *pcode.Varnode, x, y pcode.Varnode) Status {
	if f, ok := binaryOps[op]; ok {
		return e.emitIntegerOp(op, f, out, x, y)
	}
	if f, ok := boolOps[op]; ok {
		return e.emitOp(f, out, x, y, types.I8)
	}
	if f, ok := floatOps[op]; ok {
		typ, ok := floatType(x.Size)
		if !ok {
			return StatusUnsupported
		}
		return e.emitOp(f, out, x, y, typ)
	}
	switch op {
	case pcode.CBRANCH:
		return e.emitCBranch(x, y)
	case pcode.LOAD:
		return e.emitLoad(out, y)
	case pcode.PIECE:
		return e.emitPiece(out, x, y)
	case pcode.SUBPIECE:
		return e.emitSubpiece(out, x, y)
	case pcode.INDIRECT, pcode.NEW:
		return StatusUnsupported
	}
	return StatusUnsupported
}

// emitIntegerOp lifts the binary integer operation op, as lifted by f.
func (e *emitter) emitIntegerOp(op pcode.OpCode, f binaryOp, out *pcode.Varnode, x, y pcode.Varnode) Status {
	if x.Size != y.Size && !shiftOps[op] {
		return StatusUnsupported
	}
	a, ok := e.readInt(x)
	if !ok {
		return StatusUnsupported
	}
	b, ok := e.readInt(y)
	if !ok {
		return StatusUnsupported
	}
	if shiftOps[op] {
		b = fitInt(e.cur, b, intType(x.Size))
	}
	result := f(e.cur, a, b)
	if compareOps[op] {
		result = fitInt(e.cur, result, types.I8)
	}
	return e.storeOut(out, result)
}

// emitOp lifts the binary operation f with both operands read as typ.
func (e *emitter) emitOp(f binaryOp, out *pcode.Varnode, x, y pcode.Varnode, typ types.Type) Status {
	a, ok := e.read(e.resolve(x), typ)
	if !ok {
		return StatusUnsupported
	}
	b, ok := e.read(e.resolve(y), typ)
	if !ok {
		return StatusUnsupported
	}
	return e.storeOut(out, f(e.cur, a, b))
}

// emitCBranch lifts a conditional branch to target, taken if cond is non-zero.
func (e *emitter) emitCBranch(target, cond pcode.Varnode) Status {
	if target.IsConstant() {
		warn.Printf("internal control flow of %v operation not supported", pcode.CBRANCH)
		return StatusUnsupported
	}
	if target.Space == pcode.Memory && !e.claims.has(target.Offset) && bin.Addr(target.Offset) == e.inst.next() {
		// Both edges lead to the next instruction.
		return StatusLifted
	}
	c, ok := e.readInt(cond)
	if !ok {
		return StatusUnsupported
	}
	addr := fitInt(e.cur, e.resolveOrLiteral(target, intType(target.Size)), e.arch.WordType())
	taken := e.cur.NewTrunc(c, types.I1)
	if e.inst.Category == CategoryDirectConditionalBranch {
		e.cur.NewStore(fitInt(e.cur, c, types.I8), e.branchTaken)
	}
	pc := e.programCounter()
	curPC, ok := e.read(pc, e.arch.WordType())
	if !ok {
		return StatusUnsupported
	}
	status := e.write(pc, e.cur.NewSelect(taken, addr, curPC))
	e.terminateWithCondition(taken)
	return status
}

// emitLoad lifts a load from the memory address addr.
func (e *emitter) emitLoad(out *pcode.Varnode, addr pcode.Varnode) Status {
	if out == nil {
		return StatusUnsupported
	}
	index, ok := e.read(e.resolve(addr), e.arch.WordType())
	if !ok {
		return StatusUnsupported
	}
	x, ok := e.read(memoryParam(index), intType(out.Size))
	if !ok {
		return StatusUnsupported
	}
	return e.storeOut(out, x)
}

// emitPiece lifts the concatenation of the most significant part hi and the
// least significant part lo.
func (e *emitter) emitPiece(out *pcode.Varnode, hi, lo pcode.Varnode) Status {
	if out == nil || hi.Size+lo.Size != out.Size {
		return StatusUnsupported
	}
	a, ok := e.readInt(hi)
	if !ok {
		return StatusUnsupported
	}
	b, ok := e.readInt(lo)
	if !ok {
		return StatusUnsupported
	}
	typ := intType(out.Size)
	shift := literal(typ, lo.Bits())
	high := e.cur.NewShl(e.cur.NewZExt(a, typ), shift)
	return e.storeOut(out, e.cur.NewOr(high, e.cur.NewZExt(b, typ)))
}

// emitSubpiece lifts the extraction of x starting at the byte offset of the
// constant varnode offset.
func (e *emitter) emitSubpiece(out *pcode.Varnode, x, offset pcode.Varnode) Status {
	if out == nil || !offset.IsConstant() || offset.Offset >= x.Size {
		return StatusUnsupported
	}
	a, ok := e.readInt(x)
	if !ok {
		return StatusUnsupported
	}
	v := a
	if offset.Offset > 0 {
		v = e.cur.NewLShr(a, literal(intType(x.Size), offset.Offset*8))
	}
	return e.storeOut(out, fitInt(e.cur, v, intType(out.Size)))
}

// ### [ Helper functions ] ####################################################

// icmp returns the lifted form of an integer comparison with the given
// predicate.
func icmp(pred enum.IPred) binaryOp {
	return func(block *ir.Block, x, y value.Value) value.Value {
		return block.NewICmp(pred, x, y)
	}
}

// fcmp returns the lifted form of a floating-point comparison with the given
// predicate, widened to one byte.
func fcmp(pred enum.FPred) binaryOp {
	return func(block *ir.Block, x, y value.Value) value.Value {
		return block.NewZExt(block.NewFCmp(pred, x, y), types.I8)
	}
}

// overflow returns the lifted form of an overflow check, computed by the given
// arithmetic with overflow intrinsic.
func overflow(base string) binaryOp {
	return func(block *ir.Block, x, y value.Value) value.Value {
		typ := x.Type()
		retType := types.NewStruct(typ, types.I1)
		callee := intrinsic.Declare(block.Parent.Parent, intrinsic.Overloaded(base, typ), retType, typ, typ)
		return block.NewExtractValue(block.NewCall(callee, x, y), 1)
	}
}
