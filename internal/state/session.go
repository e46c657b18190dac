// internal/state/session.go
package state

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/gophersearch/internal/types"
)

// FileStore is a JSON-file-backed conversation store.
// Session headers live in sessions/sessions.json; each session's turns are
// appended to sessions/<escaped id>/turns.jsonl.
type FileStore struct {
	root string
	mu   sync.RWMutex // guards the index file

	lockMu sync.Mutex
	locks  map[types.SessionID]*sync.Mutex
}

// NewFileStore creates a file-backed store rooted at the given directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{
		root:  root,
		locks: make(map[types.SessionID]*sync.Mutex),
	}
}

func (s *FileStore) indexPath() string {
	return filepath.Join(s.root, "sessions", "sessions.json")
}

// sessionDir escapes the id so client-supplied ids cannot leave the root.
func (s *FileStore) sessionDir(id types.SessionID) string {
	return filepath.Join(s.root, "sessions", url.PathEscape(string(id)))
}

func (s *FileStore) loadIndex() (map[types.SessionID]*types.Session, error) {
	var sessions []*types.Session
	if _, err := readJSON(s.indexPath(), &sessions); err != nil {
		return nil, fmt.Errorf("session index: %w", err)
	}
	index := make(map[types.SessionID]*types.Session, len(sessions))
	for _, sess := range sessions {
		index[sess.ID] = sess
	}
	return index, nil
}

func (s *FileStore) saveIndex(index map[types.SessionID]*types.Session) error {
	return writeJSON(s.indexPath(), sortedSessions(index))
}

func sortedSessions(index map[types.SessionID]*types.Session) []*types.Session {
	sessions := make([]*types.Session, 0, len(index))
	for _, sess := range index {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions
}

// CreateSession returns the session stored under id, creating it first if
// needed. An empty id gets a fresh UUID.
func (s *FileStore) CreateSession(_ context.Context, id types.SessionID, title string) (*types.Session, bool, error) {
	if id == "" {
		id = types.NewSessionID()
	}
	if title == "" {
		title = types.DefaultSessionTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, false, err
	}
	if existing, ok := index[id]; ok {
		return existing, false, nil
	}

	now := time.Now()
	sess := &types.Session{
		ID:        id,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	index[id] = sess
	if err := s.saveIndex(index); err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(s.sessionDir(id), 0o755); err != nil {
		return nil, false, fmt.Errorf("create session dir: %w", err)
	}
	return sess, true, nil
}

// GetSession returns the session with the given ID.
func (s *FileStore) GetSession(_ context.Context, id types.SessionID) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	sess, ok := index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}
	return sess, nil
}

// ListSessions returns all sessions, most recently updated first.
func (s *FileStore) ListSessions(_ context.Context) ([]*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	return sortedSessions(index), nil
}

// DeleteSession removes the session header and its turn log.
func (s *FileStore) DeleteSession(_ context.Context, id types.SessionID) error {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}
	if _, ok := index[id]; !ok {
		return fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}
	delete(index, id)
	if err := s.saveIndex(index); err != nil {
		return err
	}
	if err := os.RemoveAll(s.sessionDir(id)); err != nil {
		return fmt.Errorf("remove session dir: %w", err)
	}
	return nil
}

// touch bumps UpdatedAt and the turn count after an append.
func (s *FileStore) touch(id types.SessionID, seq int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}
	sess, ok := index[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}
	sess.UpdatedAt = at
	sess.TurnCount = seq
	return s.saveIndex(index)
}
