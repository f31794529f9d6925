package lift

import (
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/mewmew/pcode/pcode"
	"github.com/pkg/errors"
)

// Name and arity of the user-defined operation through which the decoder claims
// that a constant is equal to a computed value.
const (
	equalityClaimName  = "claim_eq"
	equalityClaimArity = 3
)

// claims tracks the value substitutions of constant offsets of one instruction.
type claims struct {
	// Maps from offset to substituted value.
	replacements map[uint64]*param
	// Offsets whose substitution has been used.
	used map[uint64]bool
}

// newClaims returns a new, empty set of value substitutions.
func newClaims() *claims {
	return &claims{
		replacements: make(map[uint64]*param),
		used:         make(map[uint64]bool),
	}
}

// has reports whether the given offset has a substituted value.
func (c *claims) has(offset uint64) bool {
	_, ok := c.replacements[offset]
	return ok
}

// applyEqualityClaim substitutes the value of rhs for the constant lhs.
//
// Pre-condition: lhs is in the constant space.
func (e *emitter) applyEqualityClaim(lhs, rhs pcode.Varnode) {
	if !lhs.IsConstant() {
		panic(errors.Errorf("invalid equality claim; expected constant left-hand side, got %v", lhs))
	}
	dbg.Printf("claim %v == %v", lhs, rhs)
	e.claims.replacements[lhs.Offset] = e.resolve(rhs)
}

// resolveOrLiteral returns the substituted value of the offset of v as a value
// of type typ; or the offset itself if not substituted.
//
// A substitution is used at most once per instruction.
func (e *emitter) resolveOrLiteral(v pcode.Varnode, typ *types.IntType) value.Value {
	p, ok := e.claims.replacements[v.Offset]
	if !ok {
		return literal(typ, v.Offset)
	}
	if e.claims.used[v.Offset] {
		panic(errors.Errorf("ambiguous value substitution via %s of offset 0x%X", equalityClaimName, v.Offset))
	}
	x, ok := e.read(p, typ)
	if !ok {
		panic(errors.Errorf("unable to read substituted value of offset 0x%X as %v", v.Offset, typ))
	}
	e.claims.used[v.Offset] = true
	return x
}
