// Package intrinsic declares LLVM intrinsics and runtime helper functions on
// demand.
package intrinsic

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// Declare returns the function of the given name in m, declaring it with the
// given signature if not yet present.
func Declare(m *ir.Module, name string, retType types.Type, paramTypes ...types.Type) *ir.Func {
	for _, f := range m.Funcs {
		if f.Name() == name {
			return f
		}
	}
	var params []*ir.Param
	for _, paramType := range paramTypes {
		params = append(params, ir.NewParam("", paramType))
	}
	return m.NewFunc(name, retType, params...)
}

// Overloaded returns the name of the overloaded LLVM intrinsic base (e.g.
// "llvm.ctpop") specialized for the given types (e.g. "llvm.ctpop.i32").
func Overloaded(base string, ts ...types.Type) string {
	name := base
	for _, t := range ts {
		name += "." + Suffix(t)
	}
	return name
}

// Suffix returns the intrinsic name suffix of the given type.
func Suffix(t types.Type) string {
	switch t := t.(type) {
	case *types.IntType:
		return fmt.Sprintf("i%d", t.BitSize)
	case *types.FloatType:
		switch t.Kind {
		case types.FloatKindHalf:
			return "f16"
		case types.FloatKindFloat:
			return "f32"
		case types.FloatKindDouble:
			return "f64"
		case types.FloatKindX86_FP80:
			return "f80"
		case types.FloatKindFP128:
			return "f128"
		}
	}
	panic(fmt.Errorf("support for intrinsic type suffix of %v not yet implemented", t))
}
