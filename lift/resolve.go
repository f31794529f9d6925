package lift

import (
	"strings"

	"github.com/mewmew/pcode/pcode"
	"github.com/pkg/errors"
)

// resolve resolves the given varnode to a parameter.
func (e *emitter) resolve(v pcode.Varnode) *param {
	switch v.Space {
	case pcode.Memory:
		return memoryParam(e.resolveOrLiteral(v, e.arch.WordType()))
	case pcode.Register:
		name := e.dec.RegisterName(v.Offset, v.Size)
		if p, ok := e.namedRegister(name); ok {
			return p
		}
		dbg.Printf("register %q of %v not present in architecture; using scratch slot", name, v)
		return e.unknownRegs.lookup(scratchKey{offset: v.Offset, size: v.Size}, v.Size)
	case pcode.Constant:
		return constantParam(e.resolveOrLiteral(v, intType(v.Size)))
	case pcode.Scratch:
		return e.uniques.lookup(scratchKey{offset: v.Offset}, v.Size)
	}
	panic(errors.Errorf("support for storage space %v not yet implemented; unable to resolve varnode %v", v.Space, v))
}

// namedRegister returns the register parameter of the given name.
func (e *emitter) namedRegister(name string) (*param, bool) {
	reg, ok := e.arch.RegisterByName(strings.ToUpper(name))
	if !ok {
		return nil, false
	}
	return registerParam(reg.AddressOf(e.cur, e.state), reg.Type), true
}

// programCounter returns the program counter register parameter.
func (e *emitter) programCounter() *param {
	pc, ok := e.namedRegister("PC")
	if !ok {
		panic(errors.Errorf("unable to locate program counter register of architecture %q", e.arch.Name()))
	}
	return pc
}
