package lift

import (
	"fmt"

	"github.com/mewmew/pcode/bin"
)

// Category is the control flow category of an instruction.
type Category uint8

// Instruction categories.
const (
	// CategoryInvalid is the category of instructions not yet decoded, or
	// which failed to decode.
	CategoryInvalid Category = iota
	// CategoryNormal is the category of instructions falling through to the
	// next instruction.
	CategoryNormal
	CategoryDirectBranch
	CategoryDirectCall
	CategoryDirectConditionalBranch
	CategoryIndirectBranch
	CategoryIndirectCall
	CategoryIndirectReturn
)

// categoryNames maps from instruction category to category name.
var categoryNames = map[Category]string{
	CategoryInvalid:                 "invalid",
	CategoryNormal:                  "normal",
	CategoryDirectBranch:            "direct branch",
	CategoryDirectCall:              "direct call",
	CategoryDirectConditionalBranch: "direct conditional branch",
	CategoryIndirectBranch:          "indirect branch",
	CategoryIndirectCall:            "indirect call",
	CategoryIndirectReturn:          "return",
}

// String returns the string representation of the instruction category.
func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// IsDirect reports whether the category has a direct target address.
func (c Category) IsDirect() bool {
	switch c {
	case CategoryDirectBranch, CategoryDirectCall, CategoryDirectConditionalBranch:
		return true
	}
	return false
}

// Instruction is a decoded machine instruction.
type Instruction struct {
	// Address of instruction.
	Addr bin.Addr
	// Instruction bytes.
	Bytes []byte
	// Reports whether the instruction bytes decoded successfully.
	Valid bool
	// Control flow category.
	Category Category
	// Target address of direct control flow instructions.
	Target bin.Addr
	// Address of the next instruction in memory.
	Fallthrough bin.Addr
	// Assembly mnemonic; or empty if unknown.
	Mnemonic string
}

// String returns the string representation of the instruction.
func (inst *Instruction) String() string {
	s := fmt.Sprintf("%v: %s (%v", inst.Addr, inst.Mnemonic, inst.Category)
	if inst.Category.IsDirect() {
		s += fmt.Sprintf(" to %v", inst.Target)
	}
	return s + ")"
}

// next returns the address of the instruction following inst in memory.
func (inst *Instruction) next() bin.Addr {
	return inst.Addr + bin.Addr(len(inst.Bytes))
}
