// Package config decodes the injector configuration document read from
// standard input into an immutable injector.Chain.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/iofault/fi/internal/clock"
	"github.com/iofault/fi/internal/injector"
)

// rule is one tagged element of the top-level configuration array. Exactly
// one of Fault, Latency, AttrOverride must be set; DisallowUnknownFields
// on the nested decoders rejects any key outside the documented schema.
type rule struct {
	Fault        *faultSpec        `json:"fault"`
	Latency      *latencySpec      `json:"latency"`
	AttrOverride *attrOverrideSpec `json:"attr_override"`
}

type faultSpec struct {
	Faults []faultRuleSpec `json:"faults"`
}

type faultRuleSpec struct {
	Methods []string `json:"methods"`
	Path    string   `json:"path"`
	Errno   int      `json:"errno"`
	Percent int      `json:"percent"`
}

type latencySpec struct {
	Methods []string `json:"methods"`
	Path    string   `json:"path"`
	Delay   string   `json:"delay"`
	Percent int      `json:"percent"`
}

type attrOverrideSpec struct {
	Path   string   `json:"path"`
	Ino    *uint64  `json:"ino"`
	Size   *uint64  `json:"size"`
	Nlink  *uint32  `json:"nlink"`
	Mode   *uint32  `json:"mode"`
	Uid    *uint32  `json:"uid"`
	Gid    *uint32  `json:"gid"`
	Rdev   *uint32  `json:"rdev"`
	Flags  *uint32  `json:"flags"`
	Blocks *uint64  `json:"blocks"`
	Atime  *string  `json:"atime"`
	Mtime  *string  `json:"mtime"`
	Ctime  *string  `json:"ctime"`
	Crtime *string  `json:"crtime"`
	Kind   *string  `json:"kind"`
}

// Load reads the configuration document from r and returns the resulting
// injector chain. clk is the time source Latency injectors use; pass
// clock.Real{} in production.
func Load(r io.Reader, clk clock.Clock) (*injector.Chain, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read stdin: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return injector.NewChain(), nil
	}

	var rules []rule
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	injectors := make([]injector.Injector, 0, len(rules))
	for i, r := range rules {
		inj, err := r.build(clk)
		if err != nil {
			return nil, fmt.Errorf("config: rule %d: %w", i, err)
		}
		injectors = append(injectors, inj)
	}
	return injector.NewChain(injectors...), nil
}

// LoadFile is a convenience wrapper for the CLI's --config-free stdin path
// when a path is supplied instead (mainly useful for tests).
func LoadFile(path string, clk clock.Clock) (*injector.Chain, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, clk)
}

func (r rule) build(clk clock.Clock) (injector.Injector, error) {
	n := 0
	if r.Fault != nil {
		n++
	}
	if r.Latency != nil {
		n++
	}
	if r.AttrOverride != nil {
		n++
	}
	if n != 1 {
		return nil, fmt.Errorf("exactly one of fault/latency/attr_override must be set, got %d", n)
	}

	switch {
	case r.Fault != nil:
		return r.Fault.build()
	case r.Latency != nil:
		return r.Latency.build(clk)
	default:
		return r.AttrOverride.build()
	}
}

func (f *faultSpec) build() (injector.Injector, error) {
	if len(f.Faults) == 0 {
		return nil, fmt.Errorf("fault: faults must be non-empty")
	}
	rules := make([]injector.FaultRule, 0, len(f.Faults))
	for i, fr := range f.Faults {
		methods, err := parseMethods(fr.Methods)
		if err != nil {
			return nil, fmt.Errorf("fault.faults[%d]: %w", i, err)
		}
		if err := validatePercent(fr.Percent); err != nil {
			return nil, fmt.Errorf("fault.faults[%d]: %w", i, err)
		}
		if fr.Errno <= 0 {
			return nil, fmt.Errorf("fault.faults[%d]: errno must be positive", i)
		}
		rules = append(rules, injector.NewFaultRule(methods, fr.Path, fr.Errno, fr.Percent))
	}
	return injector.NewFault(rules), nil
}

func (l *latencySpec) build(clk clock.Clock) (injector.Injector, error) {
	methods, err := parseMethods(l.Methods)
	if err != nil {
		return nil, fmt.Errorf("latency: %w", err)
	}
	if err := validatePercent(l.Percent); err != nil {
		return nil, fmt.Errorf("latency: %w", err)
	}
	d, err := time.ParseDuration(l.Delay)
	if err != nil {
		return nil, fmt.Errorf("latency: delay: %w", err)
	}
	return injector.NewLatency(methods, l.Path, d, l.Percent, clk), nil
}

func (a *attrOverrideSpec) build() (injector.Injector, error) {
	cfg := injector.AttrOverrideConfig{
		Path:   a.Path,
		Ino:    a.Ino,
		Size:   a.Size,
		Nlink:  a.Nlink,
		Uid:    a.Uid,
		Gid:    a.Gid,
		Rdev:   a.Rdev,
		Flags:  a.Flags,
		Blocks: a.Blocks,
	}
	if a.Mode != nil {
		m := osFileMode(*a.Mode)
		cfg.Mode = &m
	}
	if a.Kind != nil {
		bits, err := kindBits(*a.Kind)
		if err != nil {
			return nil, err
		}
		cfg.Kind = &bits
	}
	var err error
	if cfg.Atime, err = parseTimePtr(a.Atime); err != nil {
		return nil, fmt.Errorf("attr_override: atime: %w", err)
	}
	if cfg.Mtime, err = parseTimePtr(a.Mtime); err != nil {
		return nil, fmt.Errorf("attr_override: mtime: %w", err)
	}
	if cfg.Ctime, err = parseTimePtr(a.Ctime); err != nil {
		return nil, fmt.Errorf("attr_override: ctime: %w", err)
	}
	if cfg.Crtime, err = parseTimePtr(a.Crtime); err != nil {
		return nil, fmt.Errorf("attr_override: crtime: %w", err)
	}
	return injector.NewAttrOverride(cfg), nil
}

func parseMethods(raw []string) ([]injector.Method, error) {
	out := make([]injector.Method, 0, len(raw))
	for _, s := range raw {
		m, ok := injector.ParseMethod(s)
		if !ok {
			return nil, fmt.Errorf("unknown method %q", s)
		}
		out = append(out, m)
	}
	return out, nil
}

func validatePercent(p int) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("percent %d out of range [0, 100]", p)
	}
	return nil
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
