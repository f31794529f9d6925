// Package pcode defines the architecture-independent micro-operations (p-code)
// that describe the semantics of a single machine instruction.
package pcode

import "fmt"

// Space is a storage domain referenced by a varnode.
type Space uint8

// Storage spaces.
const (
	// Register space; slots of the CPU-state structure.
	Register Space = iota + 1
	// Memory space; addressable memory (the "ram" space).
	Memory
	// Constant space; the offset of the varnode is the value itself.
	Constant
	// Scratch space; transient storage local to one instruction (the
	// "unique" space).
	Scratch
)

// spaceNames maps from storage space to space name.
var spaceNames = map[Space]string{
	Register: "register",
	Memory:   "ram",
	Constant: "const",
	Scratch:  "unique",
}

// String returns the string representation of the storage space.
func (space Space) String() string {
	if s, ok := spaceNames[space]; ok {
		return s
	}
	return fmt.Sprintf("space(%d)", uint8(space))
}

// Varnode is a storage descriptor; a contiguous sequence of bytes in a given
// storage space.
type Varnode struct {
	// Storage space.
	Space Space
	// Offset into the storage space.
	Offset uint64
	// Size in bytes.
	Size uint64
}

// NewRegister returns a new varnode in the register space.
func NewRegister(offset, size uint64) Varnode {
	return Varnode{Space: Register, Offset: offset, Size: size}
}

// NewMemory returns a new varnode in the memory space.
func NewMemory(offset, size uint64) Varnode {
	return Varnode{Space: Memory, Offset: offset, Size: size}
}

// NewConstant returns a new constant varnode of the given value.
func NewConstant(x, size uint64) Varnode {
	return Varnode{Space: Constant, Offset: x, Size: size}
}

// NewScratch returns a new varnode in the scratch space.
func NewScratch(offset, size uint64) Varnode {
	return Varnode{Space: Scratch, Offset: offset, Size: size}
}

// IsConstant reports whether the varnode is in the constant space.
func (v Varnode) IsConstant() bool {
	return v.Space == Constant
}

// Bits returns the size of the varnode in number of bits.
func (v Varnode) Bits() uint64 {
	return v.Size * 8
}

// String returns the string representation of the varnode.
func (v Varnode) String() string {
	return fmt.Sprintf("(%v,0x%X,%d)", v.Space, v.Offset, v.Size)
}
