// Package x86 describes the 32-bit x86 architecture for the p-code lifter.
package x86

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/mewmew/pcode/arch"
	"github.com/mewmew/pcode/intrinsic"
)

// Field indices of the CPU-state structure.
const (
	fieldGPR = iota
	fieldEIP
	fieldCF
	fieldPF
	fieldAF
	fieldZF
	fieldSF
	fieldDF
	fieldOF
)

// Arch is the 32-bit x86 architecture description.
type Arch struct {
	// CPU-state structure type.
	state *types.StructType
	// Opaque memory structure type.
	mem *types.StructType
	// Memory token type.
	memPtr *types.PointerType
	// Maps from register name to register.
	regs map[string]*arch.Register
}

// New returns a new 32-bit x86 architecture description.
func New() *Arch {
	// %struct.State = type { [8 x i32], i32, i8, i8, i8, i8, i8, i8, i8 }
	state := types.NewStruct(
		types.NewArray(8, types.I32), // gpr
		types.I32,                    // eip
		types.I8,                     // cf
		types.I8,                     // pf
		types.I8,                     // af
		types.I8,                     // zf
		types.I8,                     // sf
		types.I8,                     // df
		types.I8,                     // of
	)
	state.SetName("struct.State")
	mem := &types.StructType{Opaque: true}
	mem.SetName("struct.Memory")
	a := &Arch{
		state:  state,
		mem:    mem,
		memPtr: types.NewPointer(mem),
		regs:   make(map[string]*arch.Register),
	}
	for i, name := range []string{"EAX", "ECX", "EDX", "EBX", "ESP", "EBP", "ESI", "EDI"} {
		a.addRegister(name, types.I32, fieldGPR, int64(i))
	}
	// Low-order sub-registers.
	for _, sub := range []struct {
		name, parent string
		typ          types.Type
	}{
		{"AX", "EAX", types.I16}, {"CX", "ECX", types.I16}, {"DX", "EDX", types.I16}, {"BX", "EBX", types.I16},
		{"SP", "ESP", types.I16}, {"BP", "EBP", types.I16}, {"SI", "ESI", types.I16}, {"DI", "EDI", types.I16},
		{"AL", "EAX", types.I8}, {"CL", "ECX", types.I8}, {"DL", "EDX", types.I8}, {"BL", "EBX", types.I8},
	} {
		a.regs[sub.name] = arch.NewSubRegister(sub.name, sub.typ, a.regs[sub.parent])
	}
	a.addRegister("EIP", types.I32, fieldEIP)
	a.addRegister("PC", types.I32, fieldEIP)
	a.addRegister("CF", types.I8, fieldCF)
	a.addRegister("PF", types.I8, fieldPF)
	a.addRegister("AF", types.I8, fieldAF)
	a.addRegister("ZF", types.I8, fieldZF)
	a.addRegister("SF", types.I8, fieldSF)
	a.addRegister("DF", types.I8, fieldDF)
	a.addRegister("OF", types.I8, fieldOF)
	return a
}

// addRegister adds a register of the given name and type, located at the given
// field indices of the CPU-state structure.
func (a *Arch) addRegister(name string, typ types.Type, indices ...int64) {
	a.regs[name] = arch.NewRegister(name, typ, a.state, indices...)
}

// Name returns the name of the architecture.
func (a *Arch) Name() string {
	return "x86"
}

// PrepareModule adds the CPU-state and memory type definitions to m.
func (a *Arch) PrepareModule(m *ir.Module) {
	for _, typ := range []*types.StructType{a.state, a.mem} {
		if !hasTypeDef(m, typ) {
			m.NewTypeDef(typ.Name(), typ)
		}
	}
}

// StateType returns the type of the CPU-state structure.
func (a *Arch) StateType() types.Type {
	return a.state
}

// WordType returns the native pointer-sized integer type.
func (a *Arch) WordType() *types.IntType {
	return types.I32
}

// MemoryType returns the type of the memory token.
func (a *Arch) MemoryType() types.Type {
	return a.memPtr
}

// RegisterByName returns the register of the given name.
func (a *Arch) RegisterByName(name string) (*arch.Register, bool) {
	reg, ok := a.regs[name]
	return reg, ok
}

// ReadMemory emits a call to the memory read helper of the given type.
func (a *Arch) ReadMemory(block *ir.Block, mem, addr value.Value, typ types.Type) (value.Value, bool) {
	suffix, ok := memSuffix(typ)
	if !ok {
		return nil, false
	}
	m := block.Parent.Parent
	name := fmt.Sprintf("__remill_read_memory_%s", suffix)
	f := intrinsic.Declare(m, name, typ, a.memPtr, types.I32)
	return block.NewCall(f, mem, a.toWord(block, addr)), true
}

// WriteMemory emits a call to the memory write helper of the type of val.
func (a *Arch) WriteMemory(block *ir.Block, mem, addr, val value.Value) (value.Value, bool) {
	suffix, ok := memSuffix(val.Type())
	if !ok {
		return nil, false
	}
	m := block.Parent.Parent
	name := fmt.Sprintf("__remill_write_memory_%s", suffix)
	f := intrinsic.Declare(m, name, a.memPtr, a.memPtr, types.I32, val.Type())
	return block.NewCall(f, mem, a.toWord(block, addr), val), true
}

// toWord converts the given integer address to the native word type.
func (a *Arch) toWord(block *ir.Block, addr value.Value) value.Value {
	t, ok := addr.Type().(*types.IntType)
	switch {
	case !ok, t.BitSize == 32:
		return addr
	case t.BitSize < 32:
		return block.NewZExt(addr, types.I32)
	default:
		return block.NewTrunc(addr, types.I32)
	}
}

// ### [ Helper functions ] ####################################################

// memSuffix returns the name suffix of the memory helper for values of the
// given type.
func memSuffix(typ types.Type) (string, bool) {
	switch t := typ.(type) {
	case *types.IntType:
		switch t.BitSize {
		case 8, 16, 32, 64:
			return fmt.Sprintf("%d", t.BitSize), true
		}
	case *types.FloatType:
		switch t.Kind {
		case types.FloatKindFloat:
			return "f32", true
		case types.FloatKindDouble:
			return "f64", true
		}
	}
	return "", false
}

// hasTypeDef reports whether m defines the given type.
func hasTypeDef(m *ir.Module, typ types.Type) bool {
	for _, def := range m.TypeDefs {
		if def == typ {
			return true
		}
	}
	return false
}
