package hookfs

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/iofault/fi/internal/fusereply"
	"github.com/iofault/fi/internal/injector"
)

func newTestFS(t *testing.T, chain *injector.Chain, enabled bool) (*FileSystem, string) {
	t.Helper()
	root := t.TempDir()
	flag := &atomic.Bool{}
	flag.Store(enabled)
	return New(root, chain, flag), root
}

func TestLookUpInode_PassthroughIdentity(t *testing.T) {
	fs, root := newTestFS(t, nil, true)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello"), []byte("hi\n"), 0644))

	var got fusereply.Entry
	sink := fusereply.New[fusereply.Entry](&fakeOp{}, func(e fusereply.Entry) { got = e })

	fs.LookUpInode(context.Background(), rootInodeID, "hello", sink)
	assert.Equal(t, uint64(3), got.Attr.Size)
}

func TestFaultInjector_ShortCircuitsOpen(t *testing.T) {
	chain := injector.NewChain(injector.NewFault([]injector.FaultRule{
		injector.NewFaultRule([]injector.Method{injector.MethodOpen}, "/forbidden", int(unix.EACCES), 100),
	}))
	fs, root := newTestFS(t, chain, true)
	require.NoError(t, os.WriteFile(filepath.Join(root, "forbidden"), []byte("x"), 0644))

	ino := fs.inodes.lookUpOrMint("forbidden")

	var gotErr error
	sink := fusereply.New[fusereply.Open](&fakeOp{respond: func(err error) { gotErr = err }}, func(fusereply.Open) {})
	fs.OpenFile(context.Background(), ino, os.O_RDONLY, sink)

	require.Error(t, gotErr)
}

func TestAttrOverride_SizeOnGetattr(t *testing.T) {
	size := uint64(1048576)
	chain := injector.NewChain(injector.NewAttrOverride(injector.AttrOverrideConfig{Path: "/zero", Size: &size}))
	fs, root := newTestFS(t, chain, true)
	require.NoError(t, os.WriteFile(filepath.Join(root, "zero"), []byte("x"), 0644))

	ino := fs.inodes.lookUpOrMint("zero")

	var got fusereply.Attr
	sink := fusereply.New[fusereply.Attr](&fakeOp{}, func(a fusereply.Attr) { got = a })
	fs.GetInodeAttributes(context.Background(), ino, sink)

	assert.Equal(t, uint64(1048576), got.Attr.Size)
}

func TestDisabledGuard_BypassesChain(t *testing.T) {
	chain := injector.NewChain(injector.NewFault([]injector.FaultRule{
		injector.NewFaultRule([]injector.Method{injector.MethodOpen}, "*", int(unix.EACCES), 100),
	}))
	fs, root := newTestFS(t, chain, false)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("x"), 0644))
	ino := fs.inodes.lookUpOrMint("f")

	var gotErr error
	sink := fusereply.New[fusereply.Open](&fakeOp{respond: func(err error) { gotErr = err }}, func(fusereply.Open) {})
	fs.OpenFile(context.Background(), ino, os.O_RDONLY, sink)

	assert.NoError(t, gotErr)
}

func TestReadDir_DoesNotInflateLookupCount(t *testing.T) {
	fs, root := newTestFS(t, nil, true)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b"), []byte("x"), 0644))

	openSink := fusereply.New[fusereply.Open](&fakeOp{}, func(fusereply.Open) {})
	fs.OpenDir(context.Background(), rootInodeID, openSink)

	var handle uint64
	handleSink := fusereply.New[fusereply.Open](&fakeOp{}, func(o fusereply.Open) { handle = o.Handle })
	fs.OpenDir(context.Background(), rootInodeID, handleSink)

	var entries fusereply.DirEntries
	readSink := fusereply.New[fusereply.DirEntries](&fakeOp{}, func(d fusereply.DirEntries) { entries = d })
	fs.ReadDir(context.Background(), rootInodeID, handle, 0, 4096, readSink)
	require.NotEmpty(t, entries.Bytes)

	// A second readdir pass over the same directory must not mint the
	// children's inode a second time with a bumped lookup count: the
	// kernel never sends a Forget for entries it only saw via readdir.
	fs.ReadDir(context.Background(), rootInodeID, handle, 0, 4096, fusereply.New[fusereply.DirEntries](&fakeOp{}, func(fusereply.DirEntries) {}))

	inoA, ok := fs.inodes.inoForPath("a")
	require.True(t, ok)
	fs.inodes.mu.Lock()
	count := fs.inodes.byID[inoA].lookupCount
	fs.inodes.mu.Unlock()
	assert.Equal(t, uint64(0), count)
}

func TestFaultInjector_ShortCircuitsRelease(t *testing.T) {
	chain := injector.NewChain(injector.NewFault([]injector.FaultRule{
		injector.NewFaultRule([]injector.Method{injector.MethodRelease}, "*", int(unix.EIO), 100),
	}))
	fs, root := newTestFS(t, chain, true)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("x"), 0644))
	ino := fs.inodes.lookUpOrMint("f")

	var handle uint64
	fs.OpenFile(context.Background(), ino, os.O_RDONLY, fusereply.New[fusereply.Open](&fakeOp{}, func(o fusereply.Open) { handle = o.Handle }))

	var gotErr error
	fs.ReleaseFileHandle(context.Background(), handle, fusereply.New[fusereply.Empty](&fakeOp{respond: func(err error) { gotErr = err }}, func(fusereply.Empty) {}))

	require.Error(t, gotErr)
	_, stillOpen := fs.handles.get(handle)
	assert.False(t, stillOpen, "handle must still be closed and removed despite the injected fault")
}

// fakeOp stands in for a fuseops.Op in tests that only need the Respond
// single-shot primitive, not the real kernel wire protocol.
type fakeOp struct {
	respond func(error)
}

func (f *fakeOp) Respond(err error) {
	if f.respond != nil {
		f.respond(err)
	}
}
