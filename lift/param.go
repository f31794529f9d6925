package lift

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// paramKind is the kind of a resolved operand.
type paramKind uint8

// Parameter kinds.
const (
	// Slot of the CPU-state structure or local scratch slot.
	paramRegister paramKind = iota + 1
	// Memory location, accessed through the memory token.
	paramMemory
	// Constant value.
	paramConstant
)

// param is a resolved p-code operand.
type param struct {
	// Parameter kind.
	kind paramKind

	// Pointer to slot (paramRegister).
	ptr value.Value
	// Slot type (paramRegister).
	typ types.Type
	// Memory address (paramMemory).
	index value.Value
	// Constant value (paramConstant).
	c value.Value
}

// registerParam returns a new register parameter of the given slot.
func registerParam(ptr value.Value, typ types.Type) *param {
	return &param{kind: paramRegister, ptr: ptr, typ: typ}
}

// memoryParam returns a new memory parameter of the given address.
func memoryParam(index value.Value) *param {
	return &param{kind: paramMemory, index: index}
}

// constantParam returns a new constant parameter of the given value.
func constantParam(c value.Value) *param {
	return &param{kind: paramConstant, c: c}
}

// read emits a read of the parameter as a value of type typ into the current
// basic block. The boolean result is false if the parameter cannot be read as
// typ.
func (e *emitter) read(p *param, typ types.Type) (value.Value, bool) {
	switch p.kind {
	case paramRegister:
		return e.cur.NewLoad(typ, slotPtr(e.cur, p.ptr, p.typ, typ)), true
	case paramMemory:
		mem := e.cur.NewLoad(e.arch.MemoryType(), e.memory)
		return e.arch.ReadMemory(e.cur, mem, p.index, typ)
	case paramConstant:
		if !types.Equal(p.c.Type(), typ) {
			return nil, false
		}
		return p.c, true
	}
	panic(fmt.Errorf("support for parameter kind %d not yet implemented", p.kind))
}

// write emits a write of v to the parameter into the current basic block.
func (e *emitter) write(p *param, v value.Value) Status {
	switch p.kind {
	case paramRegister:
		e.cur.NewStore(v, slotPtr(e.cur, p.ptr, p.typ, v.Type()))
		return StatusLifted
	case paramMemory:
		mem := e.cur.NewLoad(e.arch.MemoryType(), e.memory)
		newMem, ok := e.arch.WriteMemory(e.cur, mem, p.index, v)
		if !ok {
			return StatusInvalid
		}
		e.cur.NewStore(newMem, e.memory)
		return StatusLifted
	case paramConstant:
		return StatusUnsupported
	}
	panic(fmt.Errorf("support for parameter kind %d not yet implemented", p.kind))
}

// ### [ Helper functions ] ####################################################

// slotPtr returns a pointer to the slot of the given type, for accessing it as
// a value of type typ.
func slotPtr(block *ir.Block, ptr value.Value, slotType, typ types.Type) value.Value {
	if types.Equal(slotType, typ) {
		return ptr
	}
	return block.NewBitCast(ptr, types.NewPointer(typ))
}

// literal returns an integer constant of the given type, with the value x
// truncated to the bit size of the type.
func literal(typ *types.IntType, x uint64) *constant.Int {
	bits := typ.BitSize
	switch {
	case bits > 64:
		c := constant.NewInt(typ, 0)
		c.X.SetUint64(x)
		return c
	case bits == 64:
		return constant.NewInt(typ, int64(x))
	}
	x &= 1<<bits - 1
	// Sign-extend to the canonical two's complement representation.
	if x&(1<<(bits-1)) != 0 {
		return constant.NewInt(typ, int64(x)-1<<bits)
	}
	return constant.NewInt(typ, int64(x))
}

// fitInt returns v zero extended or truncated to the integer type typ.
func fitInt(block *ir.Block, v value.Value, typ *types.IntType) value.Value {
	t, ok := v.Type().(*types.IntType)
	switch {
	case !ok, t.BitSize == typ.BitSize:
		return v
	case t.BitSize < typ.BitSize:
		return block.NewZExt(v, typ)
	default:
		return block.NewTrunc(v, typ)
	}
}

// intType returns the integer type of the given size in bytes.
func intType(size uint64) *types.IntType {
	return types.NewInt(size * 8)
}

// floatType returns the floating-point type of the given size in bytes. The
// boolean result is false if no floating-point type has the given size.
func floatType(size uint64) (*types.FloatType, bool) {
	switch size {
	case 2:
		return types.Half, true
	case 4:
		return types.Float, true
	case 8:
		return types.Double, true
	case 10:
		return types.X86_FP80, true
	case 16:
		return types.FP128, true
	}
	return nil, false
}
