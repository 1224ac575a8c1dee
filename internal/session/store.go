// internal/session/store.go
package session

import (
	"sync"
	"time"

	"github.com/user/campaignd/internal/types"
)

// Store caches the latest known result per agent for one session. All
// workflow derivations read from its snapshot rather than from the wire.
type Store struct {
	mu      sync.RWMutex
	session *types.Session
}

// NewStore creates a Store around a fresh Session for the given id and
// campaign config.
func NewStore(id types.SessionID, config types.CampaignConfig) *Store {
	return &Store{session: types.NewSession(id, config)}
}

// Restore creates a Store around a previously persisted Session.
func Restore(sess *types.Session) *Store {
	if sess.Results == nil {
		sess.Results = make(map[string]types.AgentResult)
	}
	return &Store{session: sess}
}

// SessionID returns the id of the session this store belongs to.
func (s *Store) SessionID() types.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.ID
}

// Apply records an agent result and reports whether it genuinely changed
// the cached set. A result with the same timestamp as the cached entry is
// a duplicate; one with an older timestamp is a stale read. Neither
// mutates the cache.
func (s *Store) Apply(result types.AgentResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.session.Results[result.Agent]
	if ok && !result.Timestamp.After(prev.Timestamp) {
		return false
	}

	s.session.Results[result.Agent] = result
	s.session.LastUpdated = time.Now()
	return true
}

// Get returns the cached result for the named agent.
func (s *Store) Get(agent string) (types.AgentResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.session.Results[agent]
	return r, ok
}

// Snapshot returns a copy of the session safe to read without holding
// the store's lock.
func (s *Store) Snapshot() types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := *s.session
	copied.Results = make(map[string]types.AgentResult, len(s.session.Results))
	for k, v := range s.session.Results {
		copied.Results[k] = v
	}
	return copied
}
