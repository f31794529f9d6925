package lift

import (
	"github.com/mewmew/pcode/bin"
	"github.com/mewmew/pcode/pcode"
)

// Decoder translates machine instructions into p-code.
//
// A decoder carries engine state between calls and is not safe for concurrent
// use; callers sharing a decoder between goroutines must serialize access.
type Decoder interface {
	// Reset restores the decoder engine to its initial state.
	Reset()
	// OneInstruction decodes the leading bytes in src as a single instruction
	// at addr, emits its p-code operations to e, and returns the length of the
	// instruction in bytes.
	OneInstruction(addr bin.Addr, src []byte, e pcode.Emitter) (int, error)
	// Disassemble returns the assembly mnemonic of the instruction in src.
	Disassemble(addr bin.Addr, src []byte) (string, error)
	// RegisterName returns the name of the register at the given offset and
	// size in the register space; or the empty string if unnamed.
	RegisterName(offset, size uint64) string
	// UserOpNames returns the names of the user-defined operations, indexed by
	// the first input of CALLOTHER operations.
	UserOpNames() []string
}
