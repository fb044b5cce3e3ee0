// Package config holds the compiler options shared by the CLI and the passes.
// Options can be loaded from a YAML file; CLI flags override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SkipAllocation leaves the upstream register numbering untouched
const SkipAllocation = -1

// ErrInvalid is returned for option values that cannot be honoured
var ErrInvalid = errors.New("invalid configuration")

// Options are the compiler settings
type Options struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	// RegisterAllocation is -1 to skip allocation, 0 to minimise the number of
	// registers, or a positive hard limit on the registers for locals.
	RegisterAllocation int `yaml:"registerAllocation"`

	// Strict turns error diagnostics into a failed compilation
	Strict bool `yaml:"strict"`

	// Dumps lists intermediate outputs to print: ollir, liveness, regalloc, jasmin
	Dumps []string `yaml:"dumps"`
}

// Default returns the options used when nothing is configured
func Default() *Options {
	return &Options{RegisterAllocation: SkipAllocation}
}

// Load reads options from a YAML file on top of the defaults
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML options on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Options, error) {
	opts := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return opts, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

var knownDumps = map[string]bool{
	"ollir":    true,
	"liveness": true,
	"regalloc": true,
	"jasmin":   true,
}

// Validate checks option ranges
func (o *Options) Validate() error {
	if o.RegisterAllocation < SkipAllocation {
		return fmt.Errorf("%w: registerAllocation must be >= -1, got %d", ErrInvalid, o.RegisterAllocation)
	}
	for _, d := range o.Dumps {
		if !knownDumps[d] {
			return fmt.Errorf("%w: unknown dump %q", ErrInvalid, d)
		}
	}
	return nil
}

// AllocationEnabled reports whether register allocation should run
func (o *Options) AllocationEnabled() bool {
	return o.RegisterAllocation != SkipAllocation
}

// Limit returns the colour budget for the allocator (0 means unbounded)
func (o *Options) Limit() int {
	if o.RegisterAllocation < 0 {
		return 0
	}
	return o.RegisterAllocation
}

// Dump reports whether the named dump was requested
func (o *Options) Dump(name string) bool {
	for _, d := range o.Dumps {
		if d == name {
			return true
		}
	}
	return false
}
