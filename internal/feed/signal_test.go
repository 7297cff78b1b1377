package feed

import (
	"sync"
	"testing"
	"time"
)

func TestSignalAbortIdempotent(t *testing.T) {
	sig := NewSignal()

	fired := 0
	sig.OnAbort(func() { fired++ })

	sig.Abort()
	sig.Abort()
	sig.Abort()

	if !sig.Aborted() {
		t.Error("Expected signal to be aborted")
	}
	if fired != 1 {
		t.Errorf("Expected listener to fire once, fired %d times", fired)
	}
}

func TestSignalDoneChannel(t *testing.T) {
	sig := NewSignal()

	select {
	case <-sig.Done():
		t.Fatal("Done channel closed before abort")
	default:
	}

	sig.Abort()

	select {
	case <-sig.Done():
	case <-time.After(time.Second):
		t.Fatal("Done channel not closed after abort")
	}
}

func TestSignalLateRegistrationFiresImmediately(t *testing.T) {
	sig := NewSignal()
	sig.Abort()

	fired := false
	cancel := sig.OnAbort(func() { fired = true })

	if !fired {
		t.Error("Expected listener registered after abort to fire immediately")
	}

	// Revoking an already-fired listener is a no-op.
	cancel()
}

func TestSignalListenerRevocation(t *testing.T) {
	sig := NewSignal()

	fired := false
	cancel := sig.OnAbort(func() { fired = true })
	cancel()

	sig.Abort()

	if fired {
		t.Error("Expected revoked listener not to fire")
	}
}

func TestSignalRevokeAfterFireIsNoop(t *testing.T) {
	sig := NewSignal()

	fired := 0
	cancel := sig.OnAbort(func() { fired++ })

	sig.Abort()
	cancel()
	cancel()

	if fired != 1 {
		t.Errorf("Expected exactly one invocation, got %d", fired)
	}
}

func TestSignalMultipleListeners(t *testing.T) {
	sig := NewSignal()

	var mu sync.Mutex
	fired := 0
	for i := 0; i < 5; i++ {
		sig.OnAbort(func() {
			mu.Lock()
			fired++
			mu.Unlock()
		})
	}

	sig.Abort()

	mu.Lock()
	defer mu.Unlock()
	if fired != 5 {
		t.Errorf("Expected 5 listener invocations, got %d", fired)
	}
}

func TestSignalConcurrentAbort(t *testing.T) {
	sig := NewSignal()

	fired := make(chan struct{}, 10)
	sig.OnAbort(func() { fired <- struct{}{} })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig.Abort()
		}()
	}
	wg.Wait()

	if got := len(fired); got != 1 {
		t.Errorf("Expected listener to fire exactly once under concurrent abort, fired %d times", got)
	}
}
