package rendezvous

import (
	"testing"
	"time"
)

func TestWait_BlocksUntilRelease(t *testing.T) {
	w, g := New()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Release")
	case <-time.After(20 * time.Millisecond):
	}

	g.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Release")
	}
}

func TestWait_ReturnsImmediatelyIfAlreadyReleased(t *testing.T) {
	w, g := New()
	g.Release()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked despite prior Release")
	}
}

func TestRelease_Idempotent(t *testing.T) {
	_, g := New()
	g.Release()
	g.Release() // must not panic
}

func TestNewPair_IndependentLatches(t *testing.T) {
	p := NewPair()

	inDone := make(chan struct{})
	go func() {
		p.InWaiter.Wait()
		close(inDone)
	}()

	p.InGuard.Release()
	select {
	case <-inDone:
	case <-time.After(time.Second):
		t.Fatal("InWaiter did not unblock")
	}

	select {
	case <-p.OutWaiter.ch:
		t.Fatal("OutWaiter unblocked by releasing InGuard")
	case <-time.After(20 * time.Millisecond):
	}
}
