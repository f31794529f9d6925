package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/kr/pretty"
	"github.com/llir/llvm/ir"
	x86arch "github.com/mewmew/pcode/arch/x86"
	"github.com/mewmew/pcode/bin"
	x86dis "github.com/mewmew/pcode/disasm/x86"
	"github.com/mewmew/pcode/lift"
	"github.com/mewmew/pcode/pcode"
	"github.com/pkg/errors"
)

// lifter lifts x86 instructions into dispatcher functions of an LLVM IR
// module.
type lifter struct {
	// Tool settings.
	conf *config
	// Instruction lifter.
	l *lift.Lifter
	// LLVM IR module being lifted into.
	m *ir.Module
	// Address of the next hex-encoded instruction sequence.
	hexAddr bin.Addr
	// Entry addresses of lifted basic blocks.
	blocks map[bin.Addr]bool
	// Number of instructions per lift status.
	stats map[lift.Status]int
	// Decoded p-code operations; recorded when -pcode is set.
	dumps []*pcodeDump
}

// pcodeDump is the p-code of a single instruction.
type pcodeDump struct {
	// Decoded instruction.
	Inst *lift.Instruction
	// P-code operations of the instruction.
	Ops pcode.Ops
}

// newLifter returns a new lifter based on the given settings.
func newLifter(conf *config) *lifter {
	return &lifter{
		conf:    conf,
		l:       lift.NewLifter(x86arch.New(), x86dis.NewDecoder()),
		m:       ir.NewModule(),
		hexAddr: conf.Base,
		blocks:  make(map[bin.Addr]bool),
		stats:   make(map[lift.Status]int),
	}
}

// liftArg lifts the instructions of the given command line argument; a PE file
// if -pe is set, and a hex-encoded instruction sequence otherwise.
func (l *lifter) liftArg(arg string) error {
	if l.conf.PE {
		return l.liftPE(arg)
	}
	data, err := parseHex(arg)
	if err != nil {
		return errors.WithStack(err)
	}
	addr := l.hexAddr
	l.hexAddr += bin.Addr(len(data))
	l.liftCode(addr, data)
	return nil
}

// liftPE lifts the executable sections of the given PE file.
func (l *lifter) liftPE(binPath string) error {
	sects, err := parsePE(binPath)
	if err != nil {
		return errors.WithStack(err)
	}
	oracle, err := parseOracle(l.conf.Oracle)
	if err != nil {
		return errors.WithStack(err)
	}
	l.liftSections(sects, oracle)
	return nil
}

// liftSections lifts the given executable sections. Basic blocks start at the
// instruction addresses of the oracle when present, and each extends at most
// to the start of the next; otherwise each section is swept linearly.
func (l *lifter) liftSections(sects []*section, oracle bin.Addrs) {
	if len(oracle) == 0 {
		for _, sect := range sects {
			l.liftCode(sect.addr, sect.data)
		}
		return
	}
	starts := blockStarts(sects, oracle)
	for i, start := range starts {
		sect := findSection(sects, start)
		end := sect.addr + bin.Addr(len(sect.data))
		if i+1 < len(starts) && starts[i+1] < end {
			end = starts[i+1]
		}
		n, err := l.liftBlock(start, sect.data[start-sect.addr:end-sect.addr])
		if err != nil {
			warn.Printf("unable to decode instruction at %v; %v", start+bin.Addr(n), err)
			l.stats[lift.StatusInvalid]++
		}
	}
}

// liftCode lifts the instructions of data, located at start, by a linear sweep.
// Undecodable bytes are skipped one at a time.
func (l *lifter) liftCode(start bin.Addr, data []byte) {
	for off := 0; off < len(data); {
		addr := start + bin.Addr(off)
		n, err := l.liftBlock(addr, data[off:])
		if err != nil && n == 0 {
			warn.Printf("unable to decode instruction at %v; %v", addr, err)
			l.stats[lift.StatusInvalid]++
			n = 1
		}
		// An undecodable instruction ending a basic block starts the next one.
		off += n
	}
}

// liftBlock lifts the basic block at the start of src, located at start, into
// a dispatcher function, and returns the number of bytes lifted. The basic
// block ends at the first terminator instruction, undecodable instruction or
// the end of src; the returned error is the decoding error of the undecodable
// instruction.
func (l *lifter) liftBlock(start bin.Addr, src []byte) (int, error) {
	if l.blocks[start] {
		return len(src), nil
	}
	var (
		f     *ir.Func
		frame *lift.Frame
	)
	off := 0
	var err error
	for off < len(src) {
		addr := start + bin.Addr(off)
		var inst *lift.Instruction
		inst, err = l.l.Decode(addr, src[off:])
		if err != nil {
			break
		}
		if f == nil {
			f, frame = lift.NewBlockFunc(l.m, l.l.Arch(), fmt.Sprintf("block_%08X", uint64(start)))
			l.blocks[start] = true
		}
		dbg.Printf("%v", inst)
		status := l.l.LiftIntoBlock(inst, f.Blocks[0], frame)
		l.stats[status]++
		if l.conf.DumpPcode {
			l.recordPcode(inst)
		}
		off += len(inst.Bytes)
		if x86dis.IsTerm(inst.Bytes) {
			break
		}
	}
	if f != nil {
		entry := f.Blocks[0]
		entry.NewRet(entry.NewLoad(l.l.Arch().MemoryType(), frame.Memory))
	}
	if err != nil {
		return off, errors.WithStack(err)
	}
	return off, nil
}

// recordPcode records the p-code operations of the given instruction.
func (l *lifter) recordPcode(inst *lift.Instruction) {
	d := x86dis.NewDecoder()
	dump := &pcodeDump{Inst: inst}
	if _, err := d.OneInstruction(inst.Addr, inst.Bytes, &dump.Ops); err != nil {
		warn.Printf("unable to decode p-code of instruction at %v; %v", inst.Addr, err)
		return
	}
	l.dumps = append(l.dumps, dump)
}

// dumpPcode writes the recorded p-code operations to w.
func (l *lifter) dumpPcode(w io.Writer) {
	for _, dump := range l.dumps {
		fmt.Fprintf(w, "; %v\n", dump.Inst)
		for _, op := range dump.Ops {
			pretty.Fprintf(w, ";\t%# v\n", op)
		}
	}
}

// report logs the number of lifted instructions per lift status.
func (l *lifter) report() {
	for _, status := range []lift.Status{lift.StatusLifted, lift.StatusUnsupported, lift.StatusInvalid} {
		if n := l.stats[status]; n > 0 {
			dbg.Printf("%d instruction(s) %v", n, status)
		}
	}
}

// ### [ Helper functions ] ####################################################

// parseHex decodes the given hex-encoded instruction sequence. Spaces and an
// optional "0x" prefix are ignored.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.Join(strings.Fields(s), "")
	if len(s) == 0 {
		return nil, errors.New("empty instruction sequence")
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid hex-encoded instruction sequence %q", s)
	}
	return data, nil
}
