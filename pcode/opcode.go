package pcode

import "fmt"

// OpCode is a p-code operation code. The numbering matches the operation codes
// of the SLEIGH specification language.
type OpCode uint8

// P-code operation codes.
const (
	COPY              OpCode = 1
	LOAD              OpCode = 2
	STORE             OpCode = 3
	BRANCH            OpCode = 4
	CBRANCH           OpCode = 5
	BRANCHIND         OpCode = 6
	CALL              OpCode = 7
	CALLIND           OpCode = 8
	CALLOTHER         OpCode = 9
	RETURN            OpCode = 10
	INT_EQUAL         OpCode = 11
	INT_NOTEQUAL      OpCode = 12
	INT_SLESS         OpCode = 13
	INT_SLESSEQUAL    OpCode = 14
	INT_LESS          OpCode = 15
	INT_LESSEQUAL     OpCode = 16
	INT_ZEXT          OpCode = 17
	INT_SEXT          OpCode = 18
	INT_ADD           OpCode = 19
	INT_SUB           OpCode = 20
	INT_CARRY         OpCode = 21
	INT_SCARRY        OpCode = 22
	INT_SBORROW       OpCode = 23
	INT_2COMP         OpCode = 24
	INT_NEGATE        OpCode = 25
	INT_XOR           OpCode = 26
	INT_AND           OpCode = 27
	INT_OR            OpCode = 28
	INT_LEFT          OpCode = 29
	INT_RIGHT         OpCode = 30
	INT_SRIGHT        OpCode = 31
	INT_MULT          OpCode = 32
	INT_DIV           OpCode = 33
	INT_SDIV          OpCode = 34
	INT_REM           OpCode = 35
	INT_SREM          OpCode = 36
	BOOL_NEGATE       OpCode = 37
	BOOL_XOR          OpCode = 38
	BOOL_AND          OpCode = 39
	BOOL_OR           OpCode = 40
	FLOAT_EQUAL       OpCode = 41
	FLOAT_NOTEQUAL    OpCode = 42
	FLOAT_LESS        OpCode = 43
	FLOAT_LESSEQUAL   OpCode = 44
	FLOAT_NAN         OpCode = 46
	FLOAT_ADD         OpCode = 47
	FLOAT_DIV         OpCode = 48
	FLOAT_MULT        OpCode = 49
	FLOAT_SUB         OpCode = 50
	FLOAT_NEG         OpCode = 51
	FLOAT_ABS         OpCode = 52
	FLOAT_SQRT        OpCode = 53
	FLOAT_INT2FLOAT   OpCode = 54
	FLOAT_FLOAT2FLOAT OpCode = 55
	FLOAT_TRUNC       OpCode = 56
	FLOAT_CEIL        OpCode = 57
	FLOAT_FLOOR       OpCode = 58
	FLOAT_ROUND       OpCode = 59
	MULTIEQUAL        OpCode = 60
	INDIRECT          OpCode = 61
	PIECE             OpCode = 62
	SUBPIECE          OpCode = 63
	CAST              OpCode = 64
	PTRADD            OpCode = 65
	PTRSUB            OpCode = 66
	SEGMENTOP         OpCode = 67
	CPOOLREF          OpCode = 68
	NEW               OpCode = 69
	INSERT            OpCode = 70
	EXTRACT           OpCode = 71
	POPCOUNT          OpCode = 72
	LZCOUNT           OpCode = 73
)

// opNames maps from operation code to operation name.
var opNames = map[OpCode]string{
	COPY:              "COPY",
	LOAD:              "LOAD",
	STORE:             "STORE",
	BRANCH:            "BRANCH",
	CBRANCH:           "CBRANCH",
	BRANCHIND:         "BRANCHIND",
	CALL:              "CALL",
	CALLIND:           "CALLIND",
	CALLOTHER:         "CALLOTHER",
	RETURN:            "RETURN",
	INT_EQUAL:         "INT_EQUAL",
	INT_NOTEQUAL:      "INT_NOTEQUAL",
	INT_SLESS:         "INT_SLESS",
	INT_SLESSEQUAL:    "INT_SLESSEQUAL",
	INT_LESS:          "INT_LESS",
	INT_LESSEQUAL:     "INT_LESSEQUAL",
	INT_ZEXT:          "INT_ZEXT",
	INT_SEXT:          "INT_SEXT",
	INT_ADD:           "INT_ADD",
	INT_SUB:           "INT_SUB",
	INT_CARRY:         "INT_CARRY",
	INT_SCARRY:        "INT_SCARRY",
	INT_SBORROW:       "INT_SBORROW",
	INT_2COMP:         "INT_2COMP",
	INT_NEGATE:        "INT_NEGATE",
	INT_XOR:           "INT_XOR",
	INT_AND:           "INT_AND",
	INT_OR:            "INT_OR",
	INT_LEFT:          "INT_LEFT",
	INT_RIGHT:         "INT_RIGHT",
	INT_SRIGHT:        "INT_SRIGHT",
	INT_MULT:          "INT_MULT",
	INT_DIV:           "INT_DIV",
	INT_SDIV:          "INT_SDIV",
	INT_REM:           "INT_REM",
	INT_SREM:          "INT_SREM",
	BOOL_NEGATE:       "BOOL_NEGATE",
	BOOL_XOR:          "BOOL_XOR",
	BOOL_AND:          "BOOL_AND",
	BOOL_OR:           "BOOL_OR",
	FLOAT_EQUAL:       "FLOAT_EQUAL",
	FLOAT_NOTEQUAL:    "FLOAT_NOTEQUAL",
	FLOAT_LESS:        "FLOAT_LESS",
	FLOAT_LESSEQUAL:   "FLOAT_LESSEQUAL",
	FLOAT_NAN:         "FLOAT_NAN",
	FLOAT_ADD:         "FLOAT_ADD",
	FLOAT_DIV:         "FLOAT_DIV",
	FLOAT_MULT:        "FLOAT_MULT",
	FLOAT_SUB:         "FLOAT_SUB",
	FLOAT_NEG:         "FLOAT_NEG",
	FLOAT_ABS:         "FLOAT_ABS",
	FLOAT_SQRT:        "FLOAT_SQRT",
	FLOAT_INT2FLOAT:   "FLOAT_INT2FLOAT",
	FLOAT_FLOAT2FLOAT: "FLOAT_FLOAT2FLOAT",
	FLOAT_TRUNC:       "FLOAT_TRUNC",
	FLOAT_CEIL:        "FLOAT_CEIL",
	FLOAT_FLOOR:       "FLOAT_FLOOR",
	FLOAT_ROUND:       "FLOAT_ROUND",
	MULTIEQUAL:        "MULTIEQUAL",
	INDIRECT:          "INDIRECT",
	PIECE:             "PIECE",
	SUBPIECE:          "SUBPIECE",
	CAST:              "CAST",
	PTRADD:            "PTRADD",
	PTRSUB:            "PTRSUB",
	SEGMENTOP:         "SEGMENTOP",
	CPOOLREF:          "CPOOLREF",
	NEW:               "NEW",
	INSERT:            "INSERT",
	EXTRACT:           "EXTRACT",
	POPCOUNT:          "POPCOUNT",
	LZCOUNT:           "LZCOUNT",
}

// String returns the string representation of the operation code.
func (op OpCode) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("OpCode(%d)", uint8(op))
}

// IsFlow reports whether the operation code transfers control flow out of the
// instruction.
func (op OpCode) IsFlow() bool {
	switch op {
	case BRANCH, CBRANCH, BRANCHIND, CALL, CALLIND, RETURN:
		return true
	}
	return false
}
