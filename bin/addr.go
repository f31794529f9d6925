// Package bin provides the virtual addresses of 32- and 64-bit binary
// executables.
package bin

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Addr is a virtual address of up to 64 bits. Addresses within the 32-bit
// range print with 8 hexadecimal digits and wider addresses with 16.
//
// Addr implements the flag.Value, encoding.TextMarshaler and
// encoding.TextUnmarshaler interfaces, so addresses may be given in decimal or
// 0x-prefixed hexadecimal notation on the command line, in TOML and in JSON.
type Addr uint64

// String returns the hexadecimal string representation of v.
func (v Addr) String() string {
	if v > 0xFFFFFFFF {
		return fmt.Sprintf("0x%016X", uint64(v))
	}
	return fmt.Sprintf("0x%08X", uint64(v))
}

// Set sets v to the address represented by s.
func (v *Addr) Set(s string) error {
	x, err := parseAddr(s)
	if err != nil {
		return errors.WithStack(err)
	}
	*v = x
	return nil
}

// UnmarshalText unmarshals the text into v.
func (v *Addr) UnmarshalText(text []byte) error {
	return v.Set(string(text))
}

// MarshalText returns the textual representation of v.
func (v Addr) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Addrs implements the sort.Sort interface, sorting addresses in ascending
// order.
type Addrs []Addr

func (as Addrs) Len() int           { return len(as) }
func (as Addrs) Swap(i, j int)      { as[i], as[j] = as[j], as[i] }
func (as Addrs) Less(i, j int) bool { return as[i] < as[j] }

// Uniq sorts the addresses in place and returns them with duplicates removed.
func (as Addrs) Uniq() Addrs {
	if len(as) == 0 {
		return as
	}
	sort.Sort(as)
	out := as[:1]
	for _, a := range as[1:] {
		if a != out[len(out)-1] {
			out = append(out, a)
		}
	}
	return out
}

// ### [ Helper functions ] ####################################################

// parseAddr interprets s in base 10, or in base 16 if prefixed with "0x" or
// "0X".
func parseAddr(s string) (Addr, error) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[len("0x"):]
		base = 16
	}
	x, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid address %q", s)
	}
	return Addr(x), nil
}
