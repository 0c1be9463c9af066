//go:build linux

package tracer

import "golang.org/x/sys/unix"

// PTRACE_SEIZE and PTRACE_INTERRUPT are not wrapped by every vendored copy
// of golang.org/x/sys/unix; their request numbers are stable ABI constants
// (include/uapi/linux/ptrace.h) so we issue them with the raw syscall
// rather than depend on a specific wrapper's presence.
const (
	ptraceSeizeRequest     = 0x4206
	ptraceInterruptRequest = 0x4207
)

func ptraceSeize(tid int) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, ptraceSeizeRequest, uintptr(tid), 0, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func ptraceInterrupt(tid int) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, ptraceInterruptRequest, uintptr(tid), 0, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
