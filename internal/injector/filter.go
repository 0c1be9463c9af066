package injector

import (
	"math/rand"

	"github.com/iofault/fi/internal/globmatch"
)

// Filter is the conjunction {method ∈ set} ∧ {path matches glob}, gated by
// a per-call percent roll. Percent is evaluated per rule (SPEC_FULL.md
// OQ-c), so Filter owns its own random source rather than sharing one
// across a chain.
type Filter struct {
	Methods map[Method]struct{}
	Path    string
	Percent int

	rng *rand.Rand
}

// NewFilter builds a Filter from a method list and glob, clamping percent
// to [0, 100].
func NewFilter(methods []Method, path string, percent int) Filter {
	set := make(map[Method]struct{}, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return Filter{Methods: set, Path: path, Percent: percent, rng: rand.New(rand.NewSource(randSeed()))}
}

// Matches reports whether method/path pass the filter's method and glob
// axes and the percent gate fires for this call.
func (f *Filter) Matches(method Method, path string) bool {
	if len(f.Methods) > 0 {
		if _, ok := f.Methods[method]; !ok {
			return false
		}
	}
	if f.Path != "" && !globmatch.Match(f.Path, path) {
		return false
	}
	return f.roll()
}

func (f *Filter) roll() bool {
	switch {
	case f.Percent <= 0:
		return false
	case f.Percent >= 100:
		return true
	default:
		if f.rng == nil {
			f.rng = rand.New(rand.NewSource(randSeed()))
		}
		return f.rng.Intn(100) < f.Percent
	}
}
