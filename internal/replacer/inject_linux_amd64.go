//go:build linux && amd64

package replacer

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// scratchBelowStack is how far below the stack pointer a temporary string
// argument is written. It sits comfortably below the 128-byte x86-64 red
// zone and well within the guard-page-free region the kernel already
// committed for the thread's stack.
const scratchBelowStack = 4096

// replaceOne performs the open -> seek -> dup2 -> close sequence inside
// the stopped thread tid, redirecting descriptor d.FD to point at
// newTarget (spec.md §4.D step 2). Each syscall is injected individually
// so a mid-sequence failure leaves d.FD routed through whichever step
// last succeeded rather than through a half-applied rewrite: if open
// fails nothing has changed; if dup2 fails the stray descriptor opened by
// open is closed before returning.
func replaceOne(tid int, newTarget string, d Descriptor) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(tid, &regs); err != nil {
		return fmt.Errorf("getregs: %w", err)
	}

	pathAddr, err := writeCString(tid, uintptr(regs.Rsp)-scratchBelowStack, newTarget)
	if err != nil {
		return fmt.Errorf("write target path: %w", err)
	}

	newFD, err := injectSyscall(tid, unix.SYS_OPENAT, [6]uintptr{
		uintptr(unix.AT_FDCWD), pathAddr, uintptr(d.Flags), 0, 0, 0,
	})
	if err != nil {
		return fmt.Errorf("openat: %w", err)
	}

	if d.Offset != 0 {
		if _, err := injectSyscall(tid, unix.SYS_LSEEK, [6]uintptr{
			newFD, uintptr(d.Offset), uintptr(unix.SEEK_SET), 0, 0, 0,
		}); err != nil {
			closeRemote(tid, newFD)
			return fmt.Errorf("lseek: %w", err)
		}
	}

	if _, err := injectSyscall(tid, unix.SYS_DUP2, [6]uintptr{newFD, uintptr(d.FD), 0, 0, 0, 0}); err != nil {
		closeRemote(tid, newFD)
		return fmt.Errorf("dup2: %w", err)
	}

	// d.FD now points at newTarget; newFD is a redundant duplicate.
	// Failing to close it leaks one descriptor in the target but does not
	// leave d.FD unrewritten, so it is reported but not rolled back.
	if _, err := injectSyscall(tid, unix.SYS_CLOSE, [6]uintptr{newFD, 0, 0, 0, 0, 0}); err != nil {
		return fmt.Errorf("close temporary fd %d (descriptor %d was still rewritten): %w", newFD, d.FD, err)
	}
	return nil
}

func closeRemote(tid int, fd uintptr) {
	if _, err := injectSyscall(tid, unix.SYS_CLOSE, [6]uintptr{fd, 0, 0, 0, 0, 0}); err != nil {
		// Best effort: a leaked fd in the target is a lesser evil than
		// aborting the pass.
		_ = err
	}
}

// writeCString null-terminates s and pokes it into the tracee's address
// space at addr, returning addr for convenience.
func writeCString(tid int, addr uintptr, s string) (uintptr, error) {
	buf := append([]byte(s), 0)
	if _, err := unix.PtracePokeData(tid, addr, buf); err != nil {
		return 0, err
	}
	return addr, nil
}

// injectSyscall makes the stopped thread tid execute one syscall. It
// patches a bare `syscall` opcode (0x0f 0x05) over the two bytes at the
// thread's current instruction pointer, sets up the syscall ABI registers,
// single-steps exactly that one instruction, reads back the return value
// from rax, and restores both the original code bytes and the thread's
// original registers before returning — the thread resumes exactly where
// it left off as far as it can observe.
func injectSyscall(tid int, nr uintptr, args [6]uintptr) (uintptr, error) {
	var saved unix.PtraceRegs
	if err := unix.PtraceGetRegs(tid, &saved); err != nil {
		return 0, fmt.Errorf("getregs: %w", err)
	}

	origCode := make([]byte, 8)
	if _, err := unix.PtracePeekData(tid, uintptr(saved.Rip), origCode); err != nil {
		return 0, fmt.Errorf("peek text: %w", err)
	}
	patched := append([]byte(nil), origCode...)
	patched[0], patched[1] = 0x0f, 0x05
	if _, err := unix.PtracePokeData(tid, uintptr(saved.Rip), patched); err != nil {
		return 0, fmt.Errorf("poke text: %w", err)
	}
	defer func() {
		_, _ = unix.PtracePokeData(tid, uintptr(saved.Rip), origCode)
	}()

	regs := saved
	regs.Orig_rax = uint64(nr)
	regs.Rax = uint64(nr)
	regs.Rdi = uint64(args[0])
	regs.Rsi = uint64(args[1])
	regs.Rdx = uint64(args[2])
	regs.R10 = uint64(args[3])
	regs.R8 = uint64(args[4])
	regs.R9 = uint64(args[5])
	if err := unix.PtraceSetRegs(tid, &regs); err != nil {
		return 0, fmt.Errorf("setregs: %w", err)
	}

	if err := unix.PtraceSingleStep(tid); err != nil {
		_, _ = unix.PtracePokeData(tid, uintptr(saved.Rip), origCode)
		_ = unix.PtraceSetRegs(tid, &saved)
		return 0, fmt.Errorf("singlestep: %w", err)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(tid, &ws, 0, nil); err != nil {
		_ = unix.PtraceSetRegs(tid, &saved)
		return 0, fmt.Errorf("wait4: %w", err)
	}

	var after unix.PtraceRegs
	if err := unix.PtraceGetRegs(tid, &after); err != nil {
		_ = unix.PtraceSetRegs(tid, &saved)
		return 0, fmt.Errorf("getregs after syscall: %w", err)
	}
	ret := int64(after.Rax)

	if err := unix.PtraceSetRegs(tid, &saved); err != nil {
		return 0, fmt.Errorf("restore regs: %w", err)
	}

	if ret < 0 && ret > -4096 {
		return 0, syscall.Errno(-ret)
	}
	return uintptr(ret), nil
}
