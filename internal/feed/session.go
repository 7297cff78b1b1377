package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/skorolev/record-feed-service/internal/metrics"
)

// State is the session loop state.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateCompleted
	StateCancelled
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EncodeFunc serializes one record into a wire line, newline included.
type EncodeFunc func(Record) ([]byte, error)

// EncodeJSONLine is the default encoder: one JSON object per line.
func EncodeJSONLine(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// SessionConfig configures one stream session.
type SessionConfig struct {
	MaxItems    int
	Interval    time.Duration
	BufferBytes int
	RemoteAddr  string
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Encode      EncodeFunc // defaults to EncodeJSONLine
}

// Result describes how a session ended.
type Result struct {
	State          State
	RecordsWritten int
	Err            error
}

// Session drives one record feed over one client connection: it pulls
// records from its source, writes them through the sink and reacts to the
// cancellation signal. A session owns its signal and its sink binding;
// neither outlives the connection.
type Session struct {
	id         string
	remoteAddr string
	startedAt  time.Time

	signal *Signal
	source *Source
	sink   *Sink
	logger *slog.Logger
	m      *metrics.Metrics
	encode EncodeFunc

	state   atomic.Int32
	written atomic.Int64
}

// SessionInfo is a point-in-time snapshot of a session for monitoring.
type SessionInfo struct {
	ID             string    `json:"id"`
	RemoteAddr     string    `json:"remote_addr"`
	StartedAt      time.Time `json:"started_at"`
	State          string    `json:"state"`
	RecordsWritten int64     `json:"records_written"`
	DurationSec    float64   `json:"duration_seconds"`
}

// NewSession creates a session streaming to tr. The session creates and
// owns its cancellation signal; bind it to disconnect detection via
// Signal().
func NewSession(tr Transport, cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	encode := cfg.Encode
	if encode == nil {
		encode = EncodeJSONLine
	}

	signal := NewSignal()
	s := &Session{
		id:         uuid.NewV4().String(),
		remoteAddr: cfg.RemoteAddr,
		startedAt:  time.Now(),
		signal:     signal,
		source:     NewSource(cfg.MaxItems, cfg.Interval, signal),
		sink:       NewSink(tr, cfg.BufferBytes),
		m:          cfg.Metrics,
		encode:     encode,
	}
	s.logger = logger.With(slog.String("session_id", s.id))
	s.state.Store(int32(StateRunning))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Signal returns the session's cancellation signal.
func (s *Session) Signal() *Signal {
	return s.signal
}

// Committed returns how many bytes the session has sent to the client.
func (s *Session) Committed() int64 {
	return s.sink.Committed()
}

// State returns the current loop state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Info returns a monitoring snapshot.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:             s.id,
		RemoteAddr:     s.remoteAddr,
		StartedAt:      s.startedAt,
		State:          s.State().String(),
		RecordsWritten: s.written.Load(),
		DurationSec:    time.Since(s.startedAt).Seconds(),
	}
}

// Run drives the session to a terminal state. It always terminates the
// sink exactly once before returning. Cancellation is the expected outcome
// of normal client behavior and is never reported as an error.
func (s *Session) Run() Result {
	defer s.sink.Terminate()

	for {
		rec, ok, err := s.source.Next()
		if err != nil {
			// Only ErrCancelled crosses this boundary.
			return s.finish(StateCancelled, nil)
		}
		if !ok {
			return s.finish(StateCompleted, nil)
		}

		line, err := s.encode(rec)
		if err != nil {
			return s.finish(StateFailed, fmt.Errorf("encode record %d: %w", rec.Sequence, err))
		}

		writeStart := time.Now()
		outcome, werr := s.sink.Write(line)
		if werr != nil {
			if s.signal.Aborted() {
				return s.finish(StateCancelled, nil)
			}
			return s.finish(StateFailed, fmt.Errorf("write record %d: %w", rec.Sequence, werr))
		}

		if outcome == Saturated {
			s.state.Store(int32(StateDraining))
			if s.m != nil {
				s.m.BackpressureWaits.Inc()
			}
			waitStart := time.Now()

			completion := s.sink.AwaitCapacity(s.signal)

			if s.m != nil {
				s.m.BackpressureWaitDuration.Observe(time.Since(waitStart).Seconds())
			}
			if completion == Abandoned {
				if s.signal.Aborted() {
					return s.finish(StateCancelled, nil)
				}
				return s.finish(StateFailed, fmt.Errorf("drain record %d: %w", rec.Sequence, s.sink.Err()))
			}
			s.state.Store(int32(StateRunning))
		}

		s.written.Add(1)
		if s.m != nil {
			s.m.RecordsWritten.Inc()
			s.m.RecordWriteDuration.Observe(time.Since(writeStart).Seconds())
		}
	}
}

// finish records the terminal state, metrics and logs, and builds the
// session result.
func (s *Session) finish(state State, err error) Result {
	s.state.Store(int32(state))
	written := int(s.written.Load())
	duration := time.Since(s.startedAt)

	if s.m != nil {
		s.m.SessionDuration.Observe(duration.Seconds())
		switch state {
		case StateCompleted:
			s.m.SessionsCompleted.Inc()
		case StateCancelled:
			s.m.SessionsCancelled.Inc()
			s.m.ClientDisconnects.Inc()
		case StateFailed:
			s.m.SessionsFailed.Inc()
		}
	}

	switch state {
	case StateFailed:
		s.logger.Error("Stream session failed",
			slog.Int("records_written", written),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
	case StateCancelled:
		s.logger.Info("Stream session cancelled by client",
			slog.Int("records_written", written),
			slog.Duration("duration", duration),
		)
	default:
		s.logger.Info("Stream session completed",
			slog.Int("records_written", written),
			slog.Duration("duration", duration),
		)
	}

	return Result{State: state, RecordsWritten: written, Err: err}
}
