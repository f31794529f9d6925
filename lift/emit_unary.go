package lift

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/mewmew/pcode/intrinsic"
	"github.com/mewmew/pcode/pcode"
)

// floatIntrinsics maps from unary floating-point operation to LLVM intrinsic.
var floatIntrinsics = map[pcode.OpCode]string{
	pcode.FLOAT_ABS:   "llvm.fabs",
	pcode.FLOAT_SQRT:  "llvm.sqrt",
	pcode.FLOAT_CEIL:  "llvm.ceil",
	pcode.FLOAT_FLOOR: "llvm.floor",
	pcode.FLOAT_ROUND: "llvm.round",
}

// emitUnary lifts the given unary p-code operation.
func (e *emitter) emitUnary(op pcode.OpCode, out *pcode.Varnode, in pcode.Varnode) Status {
	switch op {
	// Control transfer.
	case pcode.BRANCH, pcode.CALL:
		if in.IsConstant() {
			warn.Printf("internal control flow of %v operation not supported", op)
			return StatusUnsupported
		}
		// The offset of the varnode is the target address.
		return e.redirect(e.resolveOrLiteral(in, intType(in.Size)))
	case pcode.BRANCHIND, pcode.CALLIND, pcode.RETURN:
		target, ok := e.readInt(in)
		if !ok {
			return StatusUnsupported
		}
		return e.redirect(target)
	// Integer operations.
	case pcode.COPY, pcode.CAST:
		x, ok := e.readInt(in)
		if !ok {
			return StatusUnsupported
		}
		return e.storeOut(out, x)
	case pcode.INT_ZEXT, pcode.INT_SEXT:
		if out == nil || out.Size < in.Size {
			return StatusUnsupported
		}
		x, ok := e.readInt(in)
		if !ok {
			return StatusUnsupported
		}
		if out.Size == in.Size {
			return e.storeOut(out, x)
		}
		typ := intType(out.Size)
		if op == pcode.INT_ZEXT {
			return e.storeOut(out, e.cur.NewZExt(x, typ))
		}
		return e.storeOut(out, e.cur.NewSExt(x, typ))
	case pcode.INT_2COMP:
		x, ok := e.readInt(in)
		if !ok {
			return StatusUnsupported
		}
		zero := constant.NewInt(intType(in.Size), 0)
		return e.storeOut(out, e.cur.NewSub(zero, x))
	case pcode.INT_NEGATE:
		x, ok := e.readInt(in)
		if !ok {
			return StatusUnsupported
		}
		ones := constant.NewInt(intType(in.Size), -1)
		return e.storeOut(out, e.cur.NewXor(x, ones))
	case pcode.BOOL_NEGATE:
		if out == nil {
			return StatusUnsupported
		}
		x, ok := e.readInt(in)
		if !ok {
			return StatusUnsupported
		}
		zero := constant.NewInt(intType(in.Size), 0)
		cond := e.cur.NewICmp(enum.IPredEQ, x, zero)
		return e.storeOut(out, e.cur.NewZExt(cond, intType(out.Size)))
	case pcode.POPCOUNT, pcode.LZCOUNT:
		if out == nil {
			return StatusUnsupported
		}
		x, ok := e.readInt(in)
		if !ok {
			return StatusUnsupported
		}
		return e.storeOut(out, fitInt(e.cur, e.countBits(op, x), intType(out.Size)))
	// Floating-point operations.
	case pcode.FLOAT_NEG:
		x, ok := e.readFloat(in)
		if !ok {
			return StatusUnsupported
		}
		return e.storeOut(out, e.cur.NewFNeg(x))
	case pcode.FLOAT_ABS, pcode.FLOAT_SQRT, pcode.FLOAT_CEIL, pcode.FLOAT_FLOOR, pcode.FLOAT_ROUND:
		x, ok := e.readFloat(in)
		if !ok {
			return StatusUnsupported
		}
		m := e.f.Parent
		typ := x.Type()
		callee := intrinsic.Declare(m, intrinsic.Overloaded(floatIntrinsics[op], typ), typ, typ)
		return e.storeOut(out, e.cur.NewCall(callee, x))
	case pcode.FLOAT_NAN:
		if out == nil {
			return StatusUnsupported
		}
		x, ok := e.readFloat(in)
		if !ok {
			return StatusUnsupported
		}
		cond := e.cur.NewFCmp(enum.FPredUNO, x, x)
		return e.storeOut(out, e.cur.NewZExt(cond, intType(out.Size)))
	case pcode.FLOAT_INT2FLOAT:
		if out == nil {
			return StatusUnsupported
		}
		typ, ok := floatType(out.Size)
		if !ok {
			return StatusUnsupported
		}
		x, ok := e.readInt(in)
		if !ok {
			return StatusUnsupported
		}
		return e.storeOut(out, e.cur.NewSIToFP(x, typ))
	case pcode.FLOAT_FLOAT2FLOAT:
		if out == nil {
			return StatusUnsupported
		}
		typ, ok := floatType(out.Size)
		if !ok {
			return StatusUnsupported
		}
		x, ok := e.readFloat(in)
		if !ok {
			return StatusUnsupported
		}
		switch {
		case out.Size > in.Size:
			return e.storeOut(out, e.cur.NewFPExt(x, typ))
		case out.Size < in.Size:
			return e.storeOut(out, e.cur.NewFPTrunc(x, typ))
		}
		return e.storeOut(out, x)
	case pcode.FLOAT_TRUNC:
		if out == nil {
			return StatusUnsupported
		}
		x, ok := e.readFloat(in)
		if !ok {
			return StatusUnsupported
		}
		return e.storeOut(out, e.cur.NewFPToSI(x, intType(out.Size)))
	}
	return StatusUnsupported
}

// countBits emits a call to the bit counting intrinsic of the given operation.
func (e *emitter) countBits(op pcode.OpCode, x value.Value) value.Value {
	m := e.f.Parent
	typ := x.Type()
	if op == pcode.POPCOUNT {
		callee := intrinsic.Declare(m, intrinsic.Overloaded("llvm.ctpop", typ), typ, typ)
		return e.cur.NewCall(callee, x)
	}
	// The result of ctlz is defined for zero input.
	callee := intrinsic.Declare(m, intrinsic.Overloaded("llvm.ctlz", typ), typ, typ, types.I1)
	return e.cur.NewCall(callee, x, constant.False)
}
