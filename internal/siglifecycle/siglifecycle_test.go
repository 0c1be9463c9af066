package siglifecycle

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWait_ReturnsOnSIGINT(t *testing.T) {
	done := make(chan os.Signal, 1)
	go func() { done <- Wait() }()

	proc, err := os.FindProcess(os.Getpid())
	assert.NoError(t, err)
	assert.NoError(t, proc.Signal(syscall.SIGINT))

	select {
	case sig := <-done:
		assert.Equal(t, syscall.SIGINT, sig)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after SIGINT")
	}
	Stop()
}
