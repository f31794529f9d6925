package lift

import (
	"github.com/llir/llvm/ir"
)

// scratchKey identifies a scratch slot.
type scratchKey struct {
	offset uint64
	size   uint64
}

// scratchSpace allocates transient storage slots of one instruction function.
// The same key always yields the same slot.
type scratchSpace struct {
	// Entry basic block of the instruction function, holding the allocas.
	entry *ir.Block
	// Maps from key to allocated slot.
	slots map[scratchKey]*param
}

// newScratchSpace returns a new scratch space allocating slots in the given
// entry basic block.
func newScratchSpace(entry *ir.Block) *scratchSpace {
	return &scratchSpace{
		entry: entry,
		slots: make(map[scratchKey]*param),
	}
}

// lookup returns the slot of the given key, allocating a slot of the given size
// in bytes on first use.
func (s *scratchSpace) lookup(key scratchKey, size uint64) *param {
	if p, ok := s.slots[key]; ok {
		return p
	}
	typ := intType(size)
	p := registerParam(s.entry.NewAlloca(typ), typ)
	s.slots[key] = p
	return p
}
