package feed

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeTransport is a controllable Transport double. With a gate set, Write
// blocks until the gate is released or the transport is closed.
type fakeTransport struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	flushes  int
	closes   int
	writeErr error

	gate    chan struct{}
	closeCh chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{closeCh: make(chan struct{})}
}

// newGatedTransport returns a transport whose writes block until release
// is called or the transport is closed.
func newGatedTransport() (tr *fakeTransport, release func()) {
	tr = newFakeTransport()
	tr.gate = make(chan struct{})
	var once sync.Once
	return tr, func() { once.Do(func() { close(tr.gate) }) }
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-f.closeCh:
			return 0, errors.New("transport closed")
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.buf.Write(p)
}

func (f *fakeTransport) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closes == 0 {
		close(f.closeCh)
	}
	f.closes++
	return nil
}

func (f *fakeTransport) contents() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.String()
}

func (f *fakeTransport) lines() []string {
	s := strings.TrimSuffix(f.contents(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func TestSinkWriteWithinCapacity(t *testing.T) {
	tr := newFakeTransport()
	sink := NewSink(tr, 1024)

	outcome, err := sink.Write([]byte("hello\n"))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if outcome != Accepted {
		t.Errorf("Expected Accepted, got %v", outcome)
	}
	if got := tr.contents(); got != "hello\n" {
		t.Errorf("Expected transport to hold %q, got %q", "hello\n", got)
	}
	if sink.Committed() != 6 {
		t.Errorf("Expected 6 committed bytes, got %d", sink.Committed())
	}
	if sink.Buffered() != 0 {
		t.Errorf("Expected empty buffer after drain, got %d bytes", sink.Buffered())
	}
}

func TestSinkSaturationQueuesBytes(t *testing.T) {
	tr := newFakeTransport()
	sink := NewSink(tr, 4)

	outcome, err := sink.Write([]byte("too large for buffer\n"))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if outcome != Saturated {
		t.Fatalf("Expected Saturated, got %v", outcome)
	}
	if sink.Committed() != 0 {
		t.Errorf("Expected no committed bytes before drain, got %d", sink.Committed())
	}
	if sink.Buffered() == 0 {
		t.Error("Expected saturated write to queue its bytes")
	}
}

func TestSinkAwaitCapacityResumed(t *testing.T) {
	tr := newFakeTransport()
	sink := NewSink(tr, 4)
	sig := NewSignal()

	if outcome, _ := sink.Write([]byte("queued line\n")); outcome != Saturated {
		t.Fatalf("Expected Saturated, got %v", outcome)
	}

	completion := sink.AwaitCapacity(sig)
	if completion != Resumed {
		t.Fatalf("Expected Resumed, got %v", completion)
	}
	if got := tr.contents(); got != "queued line\n" {
		t.Errorf("Expected drained bytes %q, got %q", "queued line\n", got)
	}
	if sink.Buffered() != 0 {
		t.Errorf("Expected empty buffer after resume, got %d bytes", sink.Buffered())
	}
}

func TestSinkAwaitCapacityAbandonedOnAbort(t *testing.T) {
	tr, release := newGatedTransport()
	defer release()

	sink := NewSink(tr, 4)
	sig := NewSignal()

	if outcome, _ := sink.Write([]byte("stuck line\n")); outcome != Saturated {
		t.Fatalf("Expected Saturated, got %v", outcome)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		sig.Abort()
	}()

	completion := sink.AwaitCapacity(sig)
	if completion != Abandoned {
		t.Fatalf("Expected Abandoned, got %v", completion)
	}

	// Terminate unblocks the in-flight drain so nothing leaks.
	sink.Terminate()
}

func TestSinkAbandonedWaitNeverFlushesQueuedBytes(t *testing.T) {
	tr := newFakeTransport()
	sink := NewSink(tr, 4)
	sig := NewSignal()

	if outcome, _ := sink.Write([]byte("cancelled line\n")); outcome != Saturated {
		t.Fatalf("Expected Saturated, got %v", outcome)
	}

	sig.Abort()
	if completion := sink.AwaitCapacity(sig); completion != Abandoned {
		t.Fatalf("Expected Abandoned, got %v", completion)
	}
	sink.Terminate()

	// Give a stray drain a chance to misbehave before checking.
	time.Sleep(20 * time.Millisecond)

	if got := sink.Committed(); got != 0 {
		t.Errorf("Expected 0 committed bytes after cancellation, got %d", got)
	}
	if got := tr.contents(); got != "" {
		t.Errorf("Cancelled bytes reached the transport: %q", got)
	}
}

func TestSinkWriteAfterTerminate(t *testing.T) {
	tr := newFakeTransport()
	sink := NewSink(tr, 1024)

	sink.Terminate()

	if _, err := sink.Write([]byte("late line\n")); err == nil {
		t.Fatal("Expected error writing after terminate")
	}
	if got := tr.contents(); got != "" {
		t.Errorf("Bytes reached the transport after terminate: %q", got)
	}
}

func TestSinkAwaitCapacityAbandonedOnWriteError(t *testing.T) {
	tr := newFakeTransport()
	tr.writeErr = errors.New("broken pipe")
	sink := NewSink(tr, 4)
	sig := NewSignal()

	if outcome, _ := sink.Write([]byte("doomed line\n")); outcome != Saturated {
		t.Fatalf("Expected Saturated, got %v", outcome)
	}

	if completion := sink.AwaitCapacity(sig); completion != Abandoned {
		t.Fatalf("Expected Abandoned on drain failure, got %v", completion)
	}
	if sink.Err() == nil {
		t.Error("Expected sticky transport error after failed drain")
	}
}

func TestSinkWriteAfterTransportError(t *testing.T) {
	tr := newFakeTransport()
	tr.writeErr = errors.New("connection reset")
	sink := NewSink(tr, 1024)

	if _, err := sink.Write([]byte("first\n")); err == nil {
		t.Fatal("Expected write error")
	}
	if _, err := sink.Write([]byte("second\n")); err == nil {
		t.Fatal("Expected sticky error on subsequent write")
	}
}

func TestSinkTerminateIdempotent(t *testing.T) {
	tr := newFakeTransport()
	sink := NewSink(tr, 1024)

	sink.Terminate()
	sink.Terminate()
	sink.Terminate()

	if got := tr.closeCount(); got != 1 {
		t.Errorf("Expected exactly one transport close, got %d", got)
	}
}
