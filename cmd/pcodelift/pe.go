package main

import (
	"debug/pe"

	"github.com/mewmew/pcode/bin"
	"github.com/pkg/errors"
)

// section is an executable section of a PE file.
type section struct {
	// Section name.
	name string
	// Virtual address of the section.
	addr bin.Addr
	// Section contents.
	data []byte
}

// contains reports whether the section contains the given address.
func (sect *section) contains(addr bin.Addr) bool {
	return sect.addr <= addr && addr < sect.addr+bin.Addr(len(sect.data))
}

// parsePE parses the executable sections of the given 32-bit PE file.
func parsePE(binPath string) ([]*section, error) {
	dbg.Printf("parsePE(binPath = %q)", binPath)
	file, err := pe.Open(binPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer file.Close()
	optHdr, ok := file.OptionalHeader.(*pe.OptionalHeader32)
	if !ok {
		return nil, errors.New("support for 64-bit executables not yet implemented")
	}
	base := bin.Addr(optHdr.ImageBase)
	var sects []*section
	for _, sect := range file.Sections {
		if !isExec(sect) {
			continue
		}
		data, err := sect.Data()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		dbg.Printf("=== [ section %q ] ===", sect.Name)
		// Trailing section padding is not part of the code.
		if n := int(sect.VirtualSize); n != 0 && n < len(data) {
			data = data[:n]
		}
		sects = append(sects, &section{
			name: sect.Name,
			addr: base + bin.Addr(sect.VirtualAddress),
			data: data,
		})
	}
	return sects, nil
}

// blockStarts returns the entry addresses of the basic blocks of the given
// sections, in ascending order. Instruction addresses of the oracle outside the
// sections are dropped; without an oracle, each section starts a linear sweep.
func blockStarts(sects []*section, oracle bin.Addrs) bin.Addrs {
	if len(oracle) == 0 {
		var starts bin.Addrs
		for _, sect := range sects {
			starts = append(starts, sect.addr)
		}
		return starts
	}
	var starts bin.Addrs
	for _, addr := range oracle {
		if findSection(sects, addr) != nil {
			starts = append(starts, addr)
		}
	}
	return starts.Uniq()
}

// findSection returns the section containing the given address; or nil if not
// present.
func findSection(sects []*section, addr bin.Addr) *section {
	for _, sect := range sects {
		if sect.contains(addr) {
			return sect
		}
	}
	return nil
}

// ### [ Helper functions ] ####################################################

// isExec reports whether the given section is executable.
func isExec(sect *pe.Section) bool {
	const codeMask = 0x00000020
	return sect.Characteristics&codeMask != 0
}
