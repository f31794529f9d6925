// Package x86 implements a decoder of 32-bit x86 instructions into p-code.
package x86

import (
	"encoding/hex"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/mewmew/pcode/bin"
	"github.com/mewmew/pcode/pcode"
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

var (
	// dbg is a logger which logs debug messages with "x86:" prefix to standard
	// error.
	dbg = log.New(os.Stderr, term.MagentaBold("x86:")+" ", 0)
	// warn is a logger which logs warning messages with "warning:" prefix to
	// standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// Processor mode (16, 32 or 64-bit execution mode).
const cpuMode = 32

// Offset of the first temporary in the unique space.
const uniqueBase = 0x1000

// Names of user-defined operations, indexed by the first input of CALLOTHER
// operations.
var userOpNames = []string{"claim_eq", "cpuid", "rdtsc"}

// Indices of user-defined operations.
const (
	userOpClaimEq = iota
	userOpCPUID
	userOpRDTSC
)

// Decoder decodes 32-bit x86 instructions into p-code.
//
// A decoder allocates temporaries in the unique space and is not safe for
// concurrent use.
type Decoder struct {
	// Offset of the next temporary in the unique space.
	unique uint64
}

// NewDecoder returns a new 32-bit x86 decoder.
func NewDecoder() *Decoder {
	return &Decoder{unique: uniqueBase}
}

// Reset restores the decoder to its initial state.
func (d *Decoder) Reset() {
	d.unique = uniqueBase
}

// OneInstruction decodes the leading bytes in src as a single x86 instruction
// at addr, emits its p-code operations to e, and returns the length of the
// instruction in bytes.
func (d *Decoder) OneInstruction(addr bin.Addr, src []byte, e pcode.Emitter) (int, error) {
	inst, err := decodeInst(addr, src)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	b := &builder{
		d:    d,
		e:    e,
		addr: addr,
		next: addr + bin.Addr(inst.Len),
	}
	if err := b.lift(inst); err != nil {
		return 0, errors.WithStack(err)
	}
	return inst.Len, nil
}

// Disassemble returns the assembly of the x86 instruction in src, in Intel
// syntax.
func (d *Decoder) Disassemble(addr bin.Addr, src []byte) (string, error) {
	inst, err := decodeInst(addr, src)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return x86asm.IntelSyntax(inst, uint64(addr), nil), nil
}

// RegisterName returns the name of the register at the given offset and size
// in the register space; or the empty string if unnamed.
func (d *Decoder) RegisterName(offset, size uint64) string {
	return regNames[regKey{offset: offset, size: size}]
}

// UserOpNames returns the names of the user-defined operations.
func (d *Decoder) UserOpNames() []string {
	return userOpNames
}

// IsTerm reports whether the leading bytes in src decode to a terminator
// instruction.
func IsTerm(src []byte) bool {
	inst, err := x86asm.Decode(src, cpuMode)
	if err != nil {
		return false
	}
	return isTerm(inst)
}

// decodeInst decodes the leading bytes in src as a single x86 instruction.
func decodeInst(addr bin.Addr, src []byte) (x86asm.Inst, error) {
	inst, err := x86asm.Decode(src, cpuMode)
	if err != nil {
		end := 16
		if end > len(src) {
			end = len(src)
		}
		dbg.Printf("undecodable bytes at %v:\n%s", addr, hex.Dump(src[:end]))
		return x86asm.Inst{}, errors.Errorf("unable to parse instruction at address %v; %v", addr, err)
	}
	return inst, nil
}

// ### [ Helper functions ] ####################################################

// isTerm reports whether the given instruction ends a basic block. Calls fall
// through to the next instruction and do not end basic blocks.
func isTerm(inst x86asm.Inst) bool {
	// Conditional jumps lifted by the decoder.
	if _, ok := conds[inst.Op]; ok {
		return true
	}
	switch inst.Op {
	case x86asm.JMP, x86asm.RET, x86asm.LRET:
		return true
	// Conditional jumps and loops without p-code semantics; decoding fails,
	// but they still end the basic block.
	case x86asm.JCXZ, x86asm.JRCXZ, x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return true
	}
	return false
}
