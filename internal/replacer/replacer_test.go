package replacer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnderPath(t *testing.T) {
	cases := []struct {
		base, target string
		wantSuffix   string
		wantOK       bool
	}{
		{"/tmp/d", "/tmp/d", "", true},
		{"/tmp/d", "/tmp/d/hello", "hello", true},
		{"/tmp/d", "/tmp/d/sub/file", "sub/file", true},
		{"/tmp/d", "/tmp/other", "", false},
		{"/tmp/d", "/tmp/dd/file", "", false},
	}
	for _, c := range cases {
		suffix, ok := underPath(c.base, c.target)
		assert.Equal(t, c.wantOK, ok, "base=%s target=%s", c.base, c.target)
		if ok {
			assert.Equal(t, c.wantSuffix, suffix)
		}
	}
}

func TestReadFdInfo(t *testing.T) {
	// readFdInfo reads a real /proc/<pid>/fdinfo/<fd> file; exercise it
	// against this process's own stdin descriptor, which always exists.
	pid := os.Getpid()
	_, _, err := readFdInfo(pid, 0)
	require.NoError(t, err)
}

func TestScanDescriptors_FindsOwnOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello")
	require.NoError(t, os.WriteFile(path, []byte("hi\n"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	descs, err := scanDescriptors(os.Getpid(), dir)
	require.NoError(t, err)

	found := false
	for _, d := range descs {
		if d.FD == uint64(f.Fd()) {
			found = true
			assert.Equal(t, "hello", d.Suffix)
		}
	}
	assert.True(t, found, "expected to find fd %d open under %s", f.Fd(), dir)
}
