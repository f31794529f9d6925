package main

import (
	"github.com/BurntSushi/toml"
	"github.com/mewmew/pcode/bin"
	"github.com/pkg/errors"
)

// Default base address of hex-encoded instructions.
const defaultBase = 0x00401000

// Default path of the instruction address oracle of PE files.
const defaultOracle = "insts.json"

// config holds the settings of the pcodelift tool.
//
// Example TOML configuration file:
//
//	base = "0x00401000"
//	output = "out.ll"
//	oracle = "insts.json"
//	quiet = true
type config struct {
	// Base address of hex-encoded instructions.
	Base bin.Addr `toml:"base"`
	// Output path; standard output if empty.
	Output string `toml:"output"`
	// Path of the JSON file listing instruction addresses of PE files.
	Oracle string `toml:"oracle"`
	// Interpret arguments as PE files.
	PE bool `toml:"pe"`
	// Dump decoded p-code operations.
	DumpPcode bool `toml:"pcode"`
	// Suppress non-error messages.
	Quiet bool `toml:"quiet"`
}

// defaultConfig returns the default settings of the pcodelift tool.
func defaultConfig() *config {
	return &config{
		Base:   defaultBase,
		Oracle: defaultOracle,
	}
}

// load merges the settings of the given TOML file into conf. Settings of the
// flags in explicit are left untouched.
func (conf *config) load(path string, explicit map[string]bool) error {
	dbg.Printf("load(path = %q)", path)
	var file config
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return errors.WithStack(err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		warn.Printf("unknown configuration keys in %q: %v", path, undecoded)
	}
	// Maps from configuration key to flag name.
	merge := []struct {
		key, flag string
		apply     func()
	}{
		{key: "base", flag: "addr", apply: func() { conf.Base = file.Base }},
		{key: "output", flag: "o", apply: func() { conf.Output = file.Output }},
		{key: "oracle", apply: func() { conf.Oracle = file.Oracle }},
		{key: "pe", flag: "pe", apply: func() { conf.PE = file.PE }},
		{key: "pcode", flag: "pcode", apply: func() { conf.DumpPcode = file.DumpPcode }},
		{key: "quiet", flag: "q", apply: func() { conf.Quiet = file.Quiet }},
	}
	for _, m := range merge {
		if !md.IsDefined(m.key) || explicit[m.flag] {
			continue
		}
		m.apply()
	}
	return nil
}
