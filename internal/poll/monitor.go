// Package poll periodically fetches agent results for the current
// session, deduplicates them against the cached set, and publishes a
// typed notification for each genuinely changed entry. Scheduling is
// decoupled from reaction: subscribers never run inside the fetch path's
// error handling.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"

	"github.com/user/campaignd/internal/payload"
	"github.com/user/campaignd/internal/session"
	"github.com/user/campaignd/internal/types"
)

// Notification reports one genuinely changed agent result.
type Notification struct {
	SessionID types.SessionID
	Result    types.AgentResult
}

// Subscriber receives change notifications. Called sequentially from the
// polling tick.
type Subscriber func(Notification)

// DegradedFunc is invoked when connectivity degrades or recovers.
type DegradedFunc func(degraded bool)

// cronParser accepts @every descriptors alongside standard expressions.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Monitor polls the AgentResultProvider on a fixed interval. At most one
// fetch is in flight per session; overlap is skipped, not queued. A
// stopped monitor issues no further notifications, and responses from a
// superseded session are discarded by a generation check.
type Monitor struct {
	provider types.AgentResultProvider
	interval time.Duration
	timeout  time.Duration

	cron       *cron.Cron
	inflight   *semaphore.Weighted
	generation atomic.Int64

	mu          sync.Mutex
	store       *session.Store
	subscribers []Subscriber
	onDegraded  DegradedFunc
	health      *Health
}

// NewMonitor creates a Monitor fetching through provider every interval,
// with a bounded per-fetch timeout.
func NewMonitor(provider types.AgentResultProvider, interval, timeout time.Duration) *Monitor {
	return &Monitor{
		provider: provider,
		interval: interval,
		timeout:  timeout,
		inflight: semaphore.NewWeighted(1),
		health:   NewHealth(defaultDegradedAfter),
	}
}

// SetDegradedAfter overrides the consecutive-failure threshold for the
// degraded signal. Must be called before Start.
func (m *Monitor) SetDegradedAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health = NewHealth(n)
}

// Subscribe registers a change subscriber. Must be called before Start.
func (m *Monitor) Subscribe(fn Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// OnDegraded registers the connectivity-change callback.
func (m *Monitor) OnDegraded(fn DegradedFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDegraded = fn
}

// Start begins polling for the session held by store. A prior schedule is
// cancelled first; its late responses are discarded by the generation
// bump.
func (m *Monitor) Start(store *session.Store) error {
	m.Stop()

	m.mu.Lock()
	m.store = store
	m.health.Reset()
	m.mu.Unlock()

	gen := m.generation.Load()

	c := cron.New(cron.WithParser(cronParser))
	if _, err := c.AddFunc("@every "+m.interval.String(), func() {
		m.tick(gen)
	}); err != nil {
		return err
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	slog.Info("polling started", "session_id", string(store.SessionID()), "interval", m.interval.String())
	return nil
}

// Stop cancels the pending schedule. An in-flight fetch is not
// interrupted; its response is discarded when it lands.
func (m *Monitor) Stop() {
	m.generation.Add(1)

	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.store = nil
	m.mu.Unlock()

	if c != nil {
		c.Stop()
	}
}

// tick runs one poll cycle. The busy flag skips overlapping ticks rather
// than blocking the scheduler.
func (m *Monitor) tick(gen int64) {
	if !m.inflight.TryAcquire(1) {
		return
	}
	defer m.inflight.Release(1)

	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store == nil || m.generation.Load() != gen {
		return
	}

	sessionID := store.SessionID()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	failed := false
	for _, agent := range payload.Agents {
		result, err := m.provider.Get(ctx, sessionID, agent)
		if err != nil {
			if errors.Is(err, types.ErrResultNotFound) {
				continue
			}
			failed = true
			fetchErr := &types.TransientFetchError{Agent: agent, Err: err}
			slog.Warn("poll fetch failed", "session_id", string(sessionID), "agent", agent, "error", fetchErr)
			continue
		}

		// The schedule may have been superseded while the request was in
		// flight; a late response for an old session is dropped here.
		if m.generation.Load() != gen {
			slog.Debug("discarding stale poll response", "session_id", string(sessionID), "agent", agent)
			return
		}

		// A completed result must decode against its agent's schema;
		// malformed payloads never reach the store or count as milestones.
		if result.Status == types.ResultCompleted {
			if _, err := payload.Parse(agent, result.Payload); err != nil {
				slog.Error("malformed agent payload", "session_id", string(sessionID), "agent", agent, "error", err)
				continue
			}
		}

		if store.Apply(*result) {
			m.publish(Notification{SessionID: sessionID, Result: *result})
		}
	}

	m.trackHealth(sessionID, failed)
}

func (m *Monitor) publish(n Notification) {
	m.mu.Lock()
	subs := m.subscribers
	m.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
}

func (m *Monitor) trackHealth(sessionID types.SessionID, failed bool) {
	m.mu.Lock()
	fn := m.onDegraded
	var changed, degraded bool
	var failures int
	if failed {
		changed = m.health.Failure()
		degraded = true
	} else {
		changed = m.health.Success()
		degraded = false
	}
	failures = m.health.Failures()
	m.mu.Unlock()

	if !changed {
		return
	}
	if degraded {
		slog.Warn("connectivity degraded", "session_id", string(sessionID), "consecutive_failures", failures)
	} else {
		slog.Info("connectivity recovered", "session_id", string(sessionID))
	}
	if fn != nil {
		fn(degraded)
	}
}
