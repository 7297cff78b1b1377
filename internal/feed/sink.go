package feed

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// errSinkTerminated is the sticky error after Terminate; no bytes may
// reach the transport once the write side is closed.
var errSinkTerminated = errors.New("feed: sink terminated")

// WriteOutcome is the result of a sink write.
type WriteOutcome int

const (
	// Accepted means the bytes were committed to the transport.
	Accepted WriteOutcome = iota
	// Saturated means the bytes were queued but the buffer is over
	// capacity; the caller must not write again until AwaitCapacity
	// resolves as Resumed.
	Saturated
)

// Completion is the result of a backpressure wait.
type Completion int

const (
	// Resumed means buffer capacity was restored; writing may continue.
	Resumed Completion = iota
	// Abandoned means the connection closed or the drain failed; further
	// writing is pointless.
	Abandoned
)

// Transport is the write side of one client connection.
type Transport interface {
	io.Writer

	// Flush commits previously written bytes to the client.
	Flush() error

	// Close closes the write side.
	Close() error
}

// Sink writes serialized records to a Transport through a capacity-bounded
// buffer. A write that pushes the buffer over capacity is queued and
// reported Saturated; AwaitCapacity then performs the blocking drain,
// racing it against the session's abort signal.
type Sink struct {
	mu         sync.Mutex
	tr         Transport
	capacity   int
	pending    bytes.Buffer
	err        error // sticky transport error
	committed  atomic.Int64
	terminated atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

// NewSink creates a sink over tr with the given buffer capacity in bytes.
func NewSink(tr Transport, capacity int) *Sink {
	return &Sink{tr: tr, capacity: capacity}
}

// Write queues p and, if the buffer is within capacity, drains it to the
// transport. Saturated writes are queued, never dropped: the bytes reach
// the transport on the next successful AwaitCapacity.
func (k *Sink) Write(p []byte) (WriteOutcome, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.err != nil {
		return Accepted, k.err
	}

	k.pending.Write(p)
	if k.pending.Len() > k.capacity {
		return Saturated, nil
	}

	return Accepted, k.drainLocked()
}

// AwaitCapacity blocks until the queued bytes are committed (Resumed) or
// the signal aborts or the drain fails (Abandoned). Whichever observer
// fires first wins; the drain result channel is buffered so the losing
// side never leaks.
func (k *Sink) AwaitCapacity(signal *Signal) Completion {
	res := make(chan error, 1)
	go func() {
		k.mu.Lock()
		// Cancellation wins over pending data: an aborted session never
		// flushes its queued bytes.
		var err error
		if signal.Aborted() {
			err = ErrCancelled
		} else {
			err = k.drainLocked()
		}
		k.mu.Unlock()
		res <- err
	}()

	select {
	case err := <-res:
		if err != nil {
			return Abandoned
		}
		return Resumed
	case <-signal.Done():
		return Abandoned
	}
}

// Terminate closes the transport's write side exactly once. Safe after
// partial writes, errors or normal completion. It takes no lock: closing
// the transport is what unblocks a drain stuck in Transport.Write.
func (k *Sink) Terminate() error {
	k.closeOnce.Do(func() {
		k.terminated.Store(true)
		k.closeErr = k.tr.Close()
	})
	return k.closeErr
}

// Committed returns how many bytes have reached the transport.
func (k *Sink) Committed() int64 {
	return k.committed.Load()
}

// Err returns the sticky transport error, if any.
func (k *Sink) Err() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.err
}

// Buffered returns the number of queued, uncommitted bytes.
func (k *Sink) Buffered() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pending.Len()
}

// drainLocked writes all queued bytes to the transport and flushes.
// Callers must hold k.mu.
func (k *Sink) drainLocked() error {
	if k.err != nil {
		return k.err
	}
	if k.terminated.Load() {
		k.err = errSinkTerminated
		return k.err
	}
	if k.pending.Len() == 0 {
		return nil
	}

	n, err := k.tr.Write(k.pending.Bytes())
	k.committed.Add(int64(n))
	k.pending.Reset()
	if err != nil {
		k.err = err
		return err
	}

	if err := k.tr.Flush(); err != nil {
		k.err = err
		return err
	}

	return nil
}
