package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/gophersearch/internal/types"
)

// maxTurnLine bounds a single JSONL record; synthesized answers can be long.
const maxTurnLine = 16 << 20

// sessionLock returns the per-session mutex, creating one if it doesn't exist.
func (s *FileStore) sessionLock(id types.SessionID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	if lock, ok := s.locks[id]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[id] = lock
	return lock
}

func (s *FileStore) turnsPath(id types.SessionID) string {
	return filepath.Join(s.sessionDir(id), "turns.jsonl")
}

// readTurns loads the whole log. Caller must hold the session lock.
func (s *FileStore) readTurns(id types.SessionID) ([]*types.Turn, error) {
	f, err := os.Open(s.turnsPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	var turns []*types.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTurnLine)
	for scanner.Scan() {
		var turn types.Turn
		if err := json.Unmarshal(scanner.Bytes(), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, &turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan turns file: %w", err)
	}
	return turns, nil
}

// AppendTurn adds a turn to the session's log with the next sequence number.
func (s *FileStore) AppendTurn(ctx context.Context, turn *types.Turn) error {
	if _, err := s.GetSession(ctx, turn.SessionID); err != nil {
		return err
	}

	lock := s.sessionLock(turn.SessionID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.readTurns(turn.SessionID)
	if err != nil {
		return err
	}
	turn.Seq = int64(len(existing)) + 1
	if turn.At.IsZero() {
		turn.At = time.Now()
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	if err := os.MkdirAll(s.sessionDir(turn.SessionID), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	f, err := os.OpenFile(s.turnsPath(turn.SessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open turns file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write turn: %w", err)
	}
	return s.touch(turn.SessionID, turn.Seq, turn.At)
}

// ListTurns returns every turn of the session in append order.
func (s *FileStore) ListTurns(ctx context.Context, id types.SessionID) ([]*types.Turn, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	return s.readTurns(id)
}
