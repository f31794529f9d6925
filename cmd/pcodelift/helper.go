package main

import (
	"github.com/mewkiz/pkg/jsonutil"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewmew/pcode/bin"
	"github.com/pkg/errors"
)

// parseOracle parses the instruction addresses of the given JSON file; a JSON
// array of hexadecimal address strings. The addresses are sorted and
// deduplicated. A missing file yields no addresses.
func parseOracle(jsonPath string) (bin.Addrs, error) {
	if !osutil.Exists(jsonPath) {
		warn.Printf("unable to locate instruction address file %q; sweeping executable sections", jsonPath)
		return nil, nil
	}
	dbg.Printf("parseOracle(jsonPath = %q)", jsonPath)
	var addrs bin.Addrs
	if err := jsonutil.ParseFile(jsonPath, &addrs); err != nil {
		return nil, errors.Wrapf(err, "unable to parse instruction addresses of %q", jsonPath)
	}
	return addrs.Uniq(), nil
}
