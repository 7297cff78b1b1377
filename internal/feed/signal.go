package feed

import "sync"

// Signal is a one-shot cancellation flag shared by all components of a
// session. It transitions from active to aborted exactly once; Abort is
// idempotent. Listeners registered after the transition fire immediately,
// so a late registration can never miss the abort.
type Signal struct {
	mu        sync.Mutex
	aborted   bool
	done      chan struct{}
	nextID    int
	listeners map[int]func()
}

// NewSignal creates a signal in the active state.
func NewSignal() *Signal {
	return &Signal{
		done:      make(chan struct{}),
		listeners: make(map[int]func()),
	}
}

// Abort transitions the signal to aborted and fires all registered
// listeners once. Subsequent calls are no-ops.
func (s *Signal) Abort() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	close(s.done)

	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listeners = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Aborted reports whether the signal has transitioned.
func (s *Signal) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Done returns a channel that is closed when the signal aborts.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// OnAbort registers fn to run once when the signal aborts. If the signal
// is already aborted, fn runs synchronously before OnAbort returns. The
// returned cancel revokes the registration; calling it after fn has fired
// is a no-op.
func (s *Signal) OnAbort(fn func()) (cancel func()) {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		fn()
		return func() {}
	}

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
