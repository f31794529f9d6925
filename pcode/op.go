package pcode

import (
	"bytes"
	"fmt"

	"github.com/mewmew/pcode/bin"
)

// Emitter receives the p-code operations of a decoded instruction, one at a
// time and in program order.
type Emitter interface {
	// Emit handles the given p-code operation. The output varnode is nil for
	// operations without output.
	Emit(addr bin.Addr, op OpCode, out *Varnode, in []Varnode)
}

// Op is a p-code operation.
type Op struct {
	// Address of the instruction the operation belongs to.
	Addr bin.Addr
	// Operation code.
	Opcode OpCode
	// Output varnode; or nil if not present.
	Out *Varnode
	// Input varnodes.
	In []Varnode
}

// String returns the string representation of the p-code operation.
func (op *Op) String() string {
	buf := &bytes.Buffer{}
	if op.Out != nil {
		fmt.Fprintf(buf, "%v = ", op.Out)
	}
	buf.WriteString(op.Opcode.String())
	for _, in := range op.In {
		fmt.Fprintf(buf, " %v", in)
	}
	return buf.String()
}

// Ops is a recorder of p-code operations. It implements the Emitter interface.
type Ops []*Op

// Emit records the given p-code operation.
func (ops *Ops) Emit(addr bin.Addr, opcode OpCode, out *Varnode, in []Varnode) {
	op := &Op{
		Addr:   addr,
		Opcode: opcode,
		In:     append([]Varnode(nil), in...),
	}
	if out != nil {
		o := *out
		op.Out = &o
	}
	*ops = append(*ops, op)
}

// Replay emits the recorded p-code operations, in order, to e.
func (ops Ops) Replay(e Emitter) {
	for _, op := range ops {
		e.Emit(op.Addr, op.Opcode, op.Out, op.In)
	}
}
