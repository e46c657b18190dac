// internal/state/task.go
package state

import (
	"fmt"
	"sync"
	"time"
)

// Task is a named research prompt that runs through the full pipeline on a
// cron schedule or when its webhook is called.
type Task struct {
	Name       string    `json:"name"`
	Prompt     string    `json:"prompt"`
	Schedule   string    `json:"schedule,omitempty"`
	SessionKey string    `json:"session_key"`
	Enabled    bool      `json:"enabled"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

// TaskStore is a JSON-file-backed store for tasks.
type TaskStore struct {
	path string
	mu   sync.RWMutex
}

// NewTaskStore creates a new file-backed TaskStore at the given file path.
func NewTaskStore(path string) *TaskStore {
	return &TaskStore{path: path}
}

// Path returns the file path used by this store.
func (s *TaskStore) Path() string {
	return s.path
}

// List returns all tasks. Returns an empty slice if the file doesn't exist.
func (s *TaskStore) List() ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks, err := s.load()
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		return []*Task{}, nil
	}
	return tasks, nil
}

// Get finds a task by name.
func (s *TaskStore) Get(name string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks, err := s.load()
	if err != nil {
		return nil, err
	}
	if i := indexOf(tasks, name); i >= 0 {
		return tasks[i], nil
	}
	return nil, fmt.Errorf("task not found: %s", name)
}

// Add appends a task. Names are unique.
func (s *TaskStore) Add(task *Task) error {
	if task.Name == "" || task.Prompt == "" {
		return fmt.Errorf("task needs a name and a prompt")
	}
	return s.mutate(func(tasks []*Task) ([]*Task, error) {
		if indexOf(tasks, task.Name) >= 0 {
			return nil, fmt.Errorf("task already exists: %s", task.Name)
		}
		return append(tasks, task), nil
	})
}

// Remove deletes a task by name.
func (s *TaskStore) Remove(name string) error {
	return s.mutate(func(tasks []*Task) ([]*Task, error) {
		i := indexOf(tasks, name)
		if i < 0 {
			return nil, fmt.Errorf("task not found: %s", name)
		}
		return append(tasks[:i], tasks[i+1:]...), nil
	})
}

// SetEnabled toggles the enabled flag for a task.
func (s *TaskStore) SetEnabled(name string, enabled bool) error {
	return s.update(name, func(t *Task) { t.Enabled = enabled })
}

// RecordRun stores the outcome of the latest run.
func (s *TaskStore) RecordRun(name string, at time.Time, runErr error) error {
	return s.update(name, func(t *Task) {
		t.LastRunAt = at
		t.LastError = ""
		if runErr != nil {
			t.LastError = runErr.Error()
		}
	})
}

func (s *TaskStore) update(name string, fn func(*Task)) error {
	return s.mutate(func(tasks []*Task) ([]*Task, error) {
		i := indexOf(tasks, name)
		if i < 0 {
			return nil, fmt.Errorf("task not found: %s", name)
		}
		fn(tasks[i])
		return tasks, nil
	})
}

// mutate runs fn over the current list under the write lock and persists
// the result.
func (s *TaskStore) mutate(fn func([]*Task) ([]*Task, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load()
	if err != nil {
		return err
	}
	tasks, err = fn(tasks)
	if err != nil {
		return err
	}
	return writeJSON(s.path, tasks)
}

func (s *TaskStore) load() ([]*Task, error) {
	var tasks []*Task
	if _, err := readJSON(s.path, &tasks); err != nil {
		return nil, fmt.Errorf("tasks: %w", err)
	}
	return tasks, nil
}

func indexOf(tasks []*Task, name string) int {
	for i, t := range tasks {
		if t.Name == name {
			return i
		}
	}
	return -1
}
