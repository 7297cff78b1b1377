package feed

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/skorolev/record-feed-service/internal/metrics"
)

// Manager tracks live stream sessions for the monitoring endpoints.
// Sessions register when their connection is accepted and unregister when
// the loop exits; the manager never outlives or reuses a session.
type Manager struct {
	logger *slog.Logger
	m      *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager(logger *slog.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger,
		m:        m,
		sessions: make(map[string]*Session),
	}
}

// Register adds a session to the registry.
func (mgr *Manager) Register(s *Session) {
	mgr.mu.Lock()
	mgr.sessions[s.ID()] = s
	active := len(mgr.sessions)
	mgr.mu.Unlock()

	if mgr.m != nil {
		mgr.m.SessionsStarted.Inc()
		mgr.m.ActiveSessions.Set(float64(active))
	}

	mgr.logger.Debug("Session registered",
		slog.String("session_id", s.ID()),
		slog.Int("active_sessions", active),
	)
}

// Unregister removes a session from the registry.
func (mgr *Manager) Unregister(s *Session) {
	mgr.mu.Lock()
	delete(mgr.sessions, s.ID())
	active := len(mgr.sessions)
	mgr.mu.Unlock()

	if mgr.m != nil {
		mgr.m.ActiveSessions.Set(float64(active))
	}

	mgr.logger.Debug("Session unregistered",
		slog.String("session_id", s.ID()),
		slog.Int("active_sessions", active),
	)
}

// AbortAll aborts the cancellation signal of every live session. Used at
// shutdown: the server's Shutdown does not cancel in-flight request
// contexts, so open-ended stream responses must be cut loose explicitly.
func (mgr *Manager) AbortAll() {
	mgr.mu.RLock()
	sessions := make([]*Session, 0, len(mgr.sessions))
	for _, s := range mgr.sessions {
		sessions = append(sessions, s)
	}
	mgr.mu.RUnlock()

	for _, s := range sessions {
		s.Signal().Abort()
	}

	if len(sessions) > 0 {
		mgr.logger.Info("Aborted live sessions for shutdown",
			slog.Int("session_count", len(sessions)),
		)
	}
}

// ActiveCount returns the number of live sessions.
func (mgr *Manager) ActiveCount() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return len(mgr.sessions)
}

// Sessions returns monitoring snapshots of all live sessions, ordered by
// start time.
func (mgr *Manager) Sessions() []SessionInfo {
	mgr.mu.RLock()
	infos := make([]SessionInfo, 0, len(mgr.sessions))
	for _, s := range mgr.sessions {
		infos = append(infos, s.Info())
	}
	mgr.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}
