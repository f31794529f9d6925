// Package lift translates the p-code of individual machine instructions into
// LLVM IR.
//
// Each instruction is lifted into a private, always-inlined instruction
// function taking a pointer to the CPU-state structure, the program counter
// and the memory token, and returning the updated memory token. A dispatcher
// calls the instruction function through LiftIntoBlock.
//
// Violations of the decoder or architecture contract (unknown storage space,
// ambiguous value substitution, missing program counter register) are not
// recoverable and cause a panic. Operations which cannot be lifted only
// degrade the status of the instruction.
package lift

import (
	"io"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
)

var (
	// dbg is a logger which logs debug messages with "lift:" prefix to standard
	// error.
	dbg = log.New(os.Stderr, term.MagentaBold("lift:")+" ", 0)
	// warn is a logger which logs warning messages with "warning:" prefix to
	// standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// SetDebugOutput sets the output destination of debug messages.
func SetDebugOutput(w io.Writer) {
	dbg.SetOutput(w)
}

// SetWarningOutput sets the output destination of warning messages.
func SetWarningOutput(w io.Writer) {
	warn.SetOutput(w)
}
