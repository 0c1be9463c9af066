package fusedev

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFuseMinor(t *testing.T) {
	procMisc := " 56 vhci\n229 fuse\n130 watchdog\n"
	minor, err := parseFuseMinor(strings.NewReader(procMisc))
	require.NoError(t, err)
	assert.Equal(t, uint32(229), minor)
}

func TestParseFuseMinor_Absent(t *testing.T) {
	_, err := parseFuseMinor(strings.NewReader("130 watchdog\n"))
	assert.Error(t, err)
}
