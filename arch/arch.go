// Package arch defines the architecture description consumed by the p-code
// lifter; register layout of the CPU-state structure, native word width and
// memory access primitives.
package arch

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Arch is an architecture description.
type Arch interface {
	// Name returns the name of the architecture.
	Name() string
	// PrepareModule adds the type definitions of the architecture to m. It may
	// be called more than once for the same module.
	PrepareModule(m *ir.Module)
	// StateType returns the type of the CPU-state structure.
	StateType() types.Type
	// WordType returns the native pointer-sized integer type.
	WordType() *types.IntType
	// MemoryType returns the type of the memory token.
	MemoryType() types.Type
	// RegisterByName returns the register of the given name.
	RegisterByName(name string) (*Register, bool)
	// ReadMemory emits a read of a value of type typ at addr, through the
	// memory token mem. The boolean result is false if typ is not supported.
	ReadMemory(block *ir.Block, mem, addr value.Value, typ types.Type) (value.Value, bool)
	// WriteMemory emits a write of val at addr, through the memory token mem,
	// and returns the updated memory token. The boolean result is false if the
	// type of val is not supported.
	WriteMemory(block *ir.Block, mem, addr, val value.Value) (value.Value, bool)
}

// Register is a named slot of the CPU-state structure.
type Register struct {
	// Register name.
	Name string
	// Slot type.
	Type types.Type
	// Type of the CPU-state structure.
	stateType types.Type
	// Indices of the slot within the CPU-state structure.
	indices []int64
	// Register containing the sub-register; or nil if not a sub-register.
	parent *Register
}

// NewRegister returns a new register of the given name and type, located at
// the given field indices of the CPU-state structure.
func NewRegister(name string, typ, stateType types.Type, indices ...int64) *Register {
	return &Register{
		Name:      name,
		Type:      typ,
		stateType: stateType,
		indices:   indices,
	}
}

// NewSubRegister returns a new register of the given name and type, located at
// the low-order bytes of the parent register. The CPU-state structure is
// assumed to be little-endian.
func NewSubRegister(name string, typ types.Type, parent *Register) *Register {
	return &Register{
		Name:      name,
		Type:      typ,
		stateType: parent.stateType,
		indices:   parent.indices,
		parent:    parent,
	}
}

// AddressOf emits the address computation of the register slot into block,
// based on the given pointer to the CPU-state structure.
func (reg *Register) AddressOf(block *ir.Block, state value.Value) value.Value {
	indices := []value.Value{constant.NewInt(types.I32, 0)}
	for _, index := range reg.indices {
		indices = append(indices, constant.NewInt(types.I32, index))
	}
	ptr := block.NewGetElementPtr(reg.stateType, state, indices...)
	if reg.parent != nil {
		return block.NewBitCast(ptr, types.NewPointer(reg.Type))
	}
	return ptr
}
