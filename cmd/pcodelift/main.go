// The pcodelift tool lifts x86 instructions to LLVM IR assembly through p-code.
//
// Each argument is either a hex-encoded instruction sequence or, with -pe, the
// path of a 32-bit PE executable. Instructions are grouped into basic blocks,
// each lifted into a dispatcher function which calls one instruction function
// per instruction.
//
// Usage:
//
//	pcodelift [OPTION]... ARG...
//
// Flags:
//
//	-addr value
//	      base address of hex-encoded instructions (default 0x00401000)
//	-config string
//	      TOML configuration file
//	-o string
//	      output path (default standard output)
//	-pcode
//	      dump decoded p-code operations
//	-pe
//	      interpret arguments as PE files
//	-q    suppress non-error messages
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/mewmew/pcode/bin"
	"github.com/mewmew/pcode/lift"
	"github.com/pkg/errors"
	"github.com/tebeka/atexit"
)

var (
	// dbg is a logger which logs debug messages with "pcodelift:" prefix to
	// standard error.
	dbg = log.New(os.Stderr, term.MagentaBold("pcodelift:")+" ", 0)
	// warn is a logger which logs warning messages with "warning:" prefix to
	// standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

func usage() {
	const use = `
Lift x86 instructions to LLVM IR assembly through p-code.

Usage:

	pcodelift [OPTION]... ARG...

Flags:
`
	fmt.Fprint(os.Stderr, use[1:])
	flag.PrintDefaults()
}

func main() {
	// Parse command line arguments.
	var (
		// configPath specifies the path of the TOML configuration file.
		configPath string
	)
	conf := defaultConfig()
	flag.StringVar(&configPath, "config", "", "TOML configuration file")
	flag.Var(&conf.Base, "addr", "base address of hex-encoded instructions")
	flag.StringVar(&conf.Output, "o", "", "output path (default standard output)")
	flag.BoolVar(&conf.PE, "pe", false, "interpret arguments as PE files")
	flag.BoolVar(&conf.DumpPcode, "pcode", false, "dump decoded p-code operations")
	flag.BoolVar(&conf.Quiet, "q", false, "suppress non-error messages")
	flag.Usage = usage
	flag.Parse()
	if configPath != "" {
		// Command line flags take precedence over the configuration file.
		if err := conf.load(configPath, explicitFlags()); err != nil {
			atexit.Fatalf("%+v", err)
		}
	}
	if flag.NArg() == 0 {
		flag.Usage()
		atexit.Exit(1)
	}
	// Skip debug output if -q is set.
	if conf.Quiet {
		dbg.SetOutput(io.Discard)
		lift.SetDebugOutput(io.Discard)
	}

	w := io.Writer(os.Stdout)
	if conf.Output != "" {
		f, err := os.Create(conf.Output)
		if err != nil {
			atexit.Fatalf("%+v", errors.WithStack(err))
		}
		atexit.Register(func() {
			if err := f.Close(); err != nil {
				log.Printf("%+v", errors.WithStack(err))
			}
		})
		w = f
	}

	l := newLifter(conf)
	for _, arg := range flag.Args() {
		if err := l.liftArg(arg); err != nil {
			atexit.Fatalf("%+v", err)
		}
	}
	if conf.DumpPcode {
		l.dumpPcode(os.Stderr)
	}
	if _, err := fmt.Fprintln(w, l.m); err != nil {
		atexit.Fatalf("%+v", errors.WithStack(err))
	}
	l.report()
	atexit.Exit(0)
}

// explicitFlags returns the set of flags specified on the command line.
func explicitFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// Ensure that bin.Addr may be used as a command line flag.
var _ flag.Value = (*bin.Addr)(nil)
