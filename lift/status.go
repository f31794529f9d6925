package lift

import "fmt"

// Status is the lift status of an operation or instruction. Statuses are
// ordered by severity.
type Status uint8

// Lift statuses.
const (
	// StatusLifted specifies that the instruction was fully lifted.
	StatusLifted Status = iota
	// StatusUnsupported specifies that the instruction was lifted, but
	// contains operations which are not supported.
	StatusUnsupported
	// StatusInvalid specifies that the instruction is invalid, or that one of
	// its operations could not be lifted into valid IR.
	StatusInvalid
)

// String returns the string representation of the lift status.
func (status Status) String() string {
	switch status {
	case StatusLifted:
		return "lifted"
	case StatusUnsupported:
		return "partially unsupported"
	case StatusInvalid:
		return "invalid"
	}
	return fmt.Sprintf("Status(%d)", uint8(status))
}

// worse returns the more severe of the two lift statuses.
func worse(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}
