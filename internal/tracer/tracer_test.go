package tracer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttach_NonexistentPidFails(t *testing.T) {
	// A pid this large is exceedingly unlikely to exist; listTasks should
	// fail before any ptrace syscall is attempted.
	_, err := Attach(1 << 30)
	assert.Error(t, err)
}

func TestListTasks_CurrentProcessIncludesSelfTid(t *testing.T) {
	tids, err := listTasks(os.Getpid())
	assert.NoError(t, err)
	assert.NotEmpty(t, tids)
	assert.Contains(t, tids, os.Getpid())
}
