package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/storyforge/internal/logging"
	"github.com/soyeahso/storyforge/internal/metrics"
)

// Sessions maps session ids to engines and expires idle ones.
type Sessions struct {
	dispatcher Dispatcher
	opts       Options
	idle       time.Duration
	log        *logging.Logger

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewSessions creates a registry. idle <= 0 disables expiry.
func NewSessions(dispatcher Dispatcher, opts Options, idle time.Duration, log *logging.Logger) *Sessions {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sessions{
		dispatcher: dispatcher,
		opts:       opts,
		idle:       idle,
		log:        log,
		engines:    make(map[string]*Engine),
	}
}

// Create starts a new session with a fresh id.
func (s *Sessions) Create() *Engine {
	return s.GetOrCreate(uuid.New().String())
}

// Get returns the session with the given id.
func (s *Sessions) Get(id string) (*Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[id]
	return e, ok
}

// GetOrCreate returns the session with the given id, creating it on demand.
func (s *Sessions) GetOrCreate(id string) *Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.engines[id]; ok {
		return e
	}
	e := NewEngine(id, s.dispatcher, s.opts, s.log)
	s.engines[id] = e
	metrics.SessionOpened()
	s.log.Sub("workflow").Debug().Str("session", id).Msg("session opened")
	return e
}

// Delete drops a session. An in-flight step is orphaned.
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	e, ok := s.engines[id]
	if ok {
		delete(s.engines, id)
		metrics.SessionClosed()
	}
	s.mu.Unlock()

	if ok {
		e.Clear()
	}
	return ok
}

// IDs returns the live session ids, sorted.
func (s *Sessions) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.engines))
	for id := range s.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engines)
}

// Sweep removes sessions idle for longer than the idle timeout. Sessions
// with a running step or live subscribers are kept. Returns the number removed.
func (s *Sessions) Sweep() int {
	if s.idle <= 0 {
		return 0
	}
	cutoff := s.opts.Now().Add(-s.idle)

	s.mu.Lock()
	var expired []string
	for id, e := range s.engines {
		if e.Running() || len(e.Hooks().Events()) > 0 {
			continue
		}
		if e.LastActive().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.engines, id)
		metrics.SessionClosed()
	}
	s.mu.Unlock()

	if len(expired) > 0 {
		s.log.Sub("workflow").Info().Int("count", len(expired)).Msg("expired idle sessions")
	}
	return len(expired)
}

// RunJanitor sweeps every interval until ctx is done.
func (s *Sessions) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 || s.idle <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}
