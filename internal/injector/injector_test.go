package injector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/iofault/fi/internal/clock"
)

func TestFault_MatchFiresErrno(t *testing.T) {
	f := NewFault([]FaultRule{
		NewFaultRule([]Method{MethodOpen}, "/forbidden", 13, 100),
	})

	err := f.Inject(context.Background(), MethodOpen, "/forbidden")
	require.Error(t, err)
	assert.True(t, errors.Is(err, unix.EACCES))

	err = f.Inject(context.Background(), MethodOpen, "/other")
	assert.NoError(t, err)
}

func TestFault_FirstRuleWins(t *testing.T) {
	f := NewFault([]FaultRule{
		NewFaultRule([]Method{MethodOpen}, "*", 13, 100),
		NewFaultRule([]Method{MethodOpen}, "*", 2, 100),
	})

	err := f.Inject(context.Background(), MethodOpen, "/x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, unix.EACCES))
}

func TestLatency_LowerBound(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	l := NewLatency([]Method{MethodRead}, "*", 200*time.Millisecond, 100, fake)

	done := make(chan error, 1)
	go func() { done <- l.Inject(context.Background(), MethodRead, "/f") }()

	// Advancing by less than the configured duration must not unblock it.
	fake.Advance(100 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("latency injector returned before its duration elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	fake.Advance(100 * time.Millisecond)
	require.NoError(t, <-done)
}

func TestLatency_NoMatchIsNoop(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	l := NewLatency([]Method{MethodRead}, "/only", 200*time.Millisecond, 100, fake)

	err := l.Inject(context.Background(), MethodRead, "/elsewhere")
	require.NoError(t, err)
}

func TestAttrOverride_OnlyOverriddenFieldsChange(t *testing.T) {
	size := uint64(1048576)
	a := NewAttrOverride(AttrOverrideConfig{Path: "/zero", Size: &size})

	attr := Attr{Size: 4, Mode: 0644, Uid: 1000}
	a.InjectAttr(&attr, "/zero")

	assert.Equal(t, uint64(1048576), attr.Size)
	assert.Equal(t, uint32(1000), attr.Uid)
}

func TestAttrOverride_NonMatchingPathUntouched(t *testing.T) {
	size := uint64(1048576)
	a := NewAttrOverride(AttrOverrideConfig{Path: "/zero", Size: &size})

	attr := Attr{Size: 4}
	a.InjectAttr(&attr, "/other")

	assert.Equal(t, uint64(4), attr.Size)
}

func TestChain_InjectStopsAtFirstError(t *testing.T) {
	calls := 0
	recording := func(fn func(context.Context, Method, string) error) Injector {
		return &recordingInjector{fn: fn, calls: &calls}
	}

	chain := NewChain(
		recording(func(context.Context, Method, string) error { return nil }),
		recording(func(context.Context, Method, string) error { return errors.New("boom") }),
		recording(func(context.Context, Method, string) error { return nil }),
	)

	err := chain.Inject(context.Background(), MethodOpen, "/x")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestChain_InjectAttrAppliesAll(t *testing.T) {
	size := uint64(10)
	uid := uint32(99)
	chain := NewChain(
		NewAttrOverride(AttrOverrideConfig{Path: "*", Size: &size}),
		NewAttrOverride(AttrOverrideConfig{Path: "*", Uid: &uid}),
	)

	attr := Attr{}
	chain.InjectAttr(&attr, "/anything")

	assert.Equal(t, uint64(10), attr.Size)
	assert.Equal(t, uint32(99), attr.Uid)
}

type recordingInjector struct {
	fn    func(context.Context, Method, string) error
	calls *int
}

func (r *recordingInjector) Inject(ctx context.Context, m Method, p string) error {
	*r.calls++
	return r.fn(ctx, m, p)
}

func (r *recordingInjector) InjectAttr(*Attr, string) {}
