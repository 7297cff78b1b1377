package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/skorolev/record-feed-service/internal/feed"
	"github.com/skorolev/record-feed-service/internal/problem"
)

var errTransportClosed = errors.New("stream transport closed")

// streamTransport adapts an HTTP response to the feed.Transport interface.
// Close marks the write side down; the connection itself is torn down when
// the handler returns.
type streamTransport struct {
	w      http.ResponseWriter
	f      http.Flusher
	closed atomic.Bool
}

func newStreamTransport(w http.ResponseWriter, f http.Flusher) *streamTransport {
	return &streamTransport{w: w, f: f}
}

func (t *streamTransport) Write(p []byte) (int, error) {
	if t.closed.Load() {
		return 0, errTransportClosed
	}
	return t.w.Write(p)
}

func (t *streamTransport) Flush() error {
	if t.closed.Load() {
		return errTransportClosed
	}
	t.f.Flush()
	return nil
}

func (t *streamTransport) Close() error {
	t.closed.Store(true)
	return nil
}

// handleStream implements GET /stream: an unbounded newline-delimited JSON
// record feed, one session per connection. Client disconnect aborts the
// session's signal; a fault before the first byte is answered with a
// problem document, a later fault truncates the stream (the content type
// cannot change once bytes have flowed).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		problem.Render(w, r, problem.New(http.StatusInternalServerError,
			"Streaming unsupported", "the server transport does not support flushing"))
		return
	}

	logger := s.logger.With(
		slog.String("request_id", RequestIDFrom(r.Context())),
		slog.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Accel-Buffering", "no")

	sess := feed.NewSession(newStreamTransport(w, flusher), feed.SessionConfig{
		MaxItems:    s.config.Stream.MaxItems,
		Interval:    s.config.Stream.GetInterval(),
		BufferBytes: s.config.Stream.WriteBufferBytes,
		RemoteAddr:  r.RemoteAddr,
		Logger:      logger,
		Metrics:     s.metrics,
		Encode:      s.streamEncode,
	})

	// Transport disconnect is the signal's only external trigger; the
	// registration is dropped when the session ends normally.
	stop := context.AfterFunc(r.Context(), sess.Signal().Abort)
	defer stop()

	s.streamMgr.Register(sess)
	defer s.streamMgr.Unregister(sess)

	logger.Info("Stream session started",
		slog.String("session_id", sess.ID()),
		slog.Int("max_items", s.config.Stream.MaxItems),
		slog.Duration("interval", s.config.Stream.GetInterval()),
	)

	res := sess.Run()

	// A fault with no bytes committed can still be reported on the wire;
	// afterwards the truncated stream is the only possible answer.
	if res.State == feed.StateFailed && sess.Committed() == 0 {
		problem.Render(w, r, problem.New(http.StatusInternalServerError,
			"Stream failed", "the stream terminated before any record could be written"))
	}
}
