package injector

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// FaultRule pairs a filter with the errno it returns when it fires.
type FaultRule struct {
	filter Filter
	errno  unix.Errno
}

// NewFaultRule builds one rule of a Fault injector's faults list.
func NewFaultRule(methods []Method, pathGlob string, errno int, percent int) FaultRule {
	return FaultRule{filter: NewFilter(methods, pathGlob, percent), errno: unix.Errno(errno)}
}

// Fault returns a configured errno for the first matching rule, stopping
// the underlying operation (spec.md §4.H "Fault Injector").
type Fault struct {
	rules []FaultRule
}

// NewFault builds a Fault injector from its ordered rule list.
func NewFault(rules []FaultRule) *Fault {
	return &Fault{rules: rules}
}

func (f *Fault) Inject(_ context.Context, method Method, path string) error {
	for i := range f.rules {
		r := &f.rules[i]
		if r.filter.Matches(method, path) {
			return fmt.Errorf("fault injector: %w", r.errno)
		}
	}
	return nil
}

func (f *Fault) InjectAttr(*Attr, string) {}
