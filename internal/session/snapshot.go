// internal/session/snapshot.go
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/user/campaignd/internal/types"
)

// Snapshot is the on-disk form of one campaign run: the session
// aggregate, its approval state, and the stage last derived for it.
// The stage is recorded because it can run ahead of the cached results:
// a confirmed proceed advances to analyzing before the analytics result
// arrives, and a resume must not regress through that window.
type Snapshot struct {
	Session   types.Session                         `json:"session"`
	Stage     string                                `json:"stage,omitempty"`
	Progress  int                                   `json:"progress,omitempty"`
	Approvals map[types.ItemID]types.ApprovalStatus `json:"approvals,omitempty"`
	Items     []types.ContentItem                   `json:"items,omitempty"`
}

// SnapshotStore is a JSON-file-backed store for session snapshots.
// Each session is stored at sessions/<sessionID>.json.
type SnapshotStore struct {
	root string
	mu   sync.RWMutex
}

// NewSnapshotStore creates a file-backed SnapshotStore rooted at the
// given directory.
func NewSnapshotStore(root string) *SnapshotStore {
	return &SnapshotStore{root: root}
}

func (s *SnapshotStore) sessionsDir() string {
	return filepath.Join(s.root, "sessions")
}

func (s *SnapshotStore) path(id types.SessionID) string {
	return filepath.Join(s.sessionsDir(), string(id)+".json")
}

// Save persists the snapshot, writing atomically via temp file + rename.
func (s *SnapshotStore) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(s.sessionsDir(), 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	path := s.path(snap.Session.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot for the given session id.
func (s *SnapshotStore) Load(id types.SessionID) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrSessionNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// List returns the ids of all persisted sessions, newest first by
// creation time.
func (s *SnapshotStore) List() ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var snaps []*Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.sessionsDir(), name))
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", name, err)
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot %s: %w", name, err)
		}
		snaps = append(snaps, &snap)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Session.CreatedAt.After(snaps[j].Session.CreatedAt)
	})
	return snaps, nil
}

// Delete removes the snapshot for the given session id.
func (s *SnapshotStore) Delete(id types.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return types.ErrSessionNotFound
		}
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
