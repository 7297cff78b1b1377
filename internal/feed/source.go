package feed

import (
	"errors"
	"fmt"
	"time"

	uuid "github.com/satori/go.uuid"
)

// ErrCancelled is reported by a Source whose signal aborted. It marks
// cooperative cancellation, not a fault; callers must not escalate it.
var ErrCancelled = errors.New("feed: cancelled")

// Source produces up to maxItems records, waiting interval between
// successive records. The wait is abortable: an abort observed before,
// during or immediately after the wait ends production without emitting
// a partial record. A Source is single-use; a new Source numbers its
// records from 1 again.
type Source struct {
	maxItems int
	interval time.Duration
	signal   *Signal
	seq      int
}

// NewSource creates a source for one session.
func NewSource(maxItems int, interval time.Duration, signal *Signal) *Source {
	return &Source{
		maxItems: maxItems,
		interval: interval,
		signal:   signal,
	}
}

// Next returns the next record. It reports (rec, true, nil) on emission,
// (zero, false, nil) on exhaustion and (zero, false, ErrCancelled) when
// the signal aborted at any suspension boundary.
func (s *Source) Next() (Record, bool, error) {
	if s.seq >= s.maxItems {
		return Record{}, false, nil
	}

	if s.signal.Aborted() {
		return Record{}, false, ErrCancelled
	}

	if s.interval > 0 {
		timer := time.NewTimer(s.interval)
		select {
		case <-timer.C:
		case <-s.signal.Done():
			timer.Stop()
			return Record{}, false, ErrCancelled
		}
	}

	// Re-check after the wait: the abort may have raced the timer.
	if s.signal.Aborted() {
		return Record{}, false, ErrCancelled
	}

	s.seq++
	return Record{
		Sequence:   s.seq,
		Identifier: uuid.NewV4().String(),
		ProducedAt: time.Now().UTC(),
		Payload:    fmt.Sprintf("record %d", s.seq),
	}, true, nil
}

// Produced returns how many records have been emitted so far.
func (s *Source) Produced() int {
	return s.seq
}
