package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidThreadID is returned when a thread id contains unsafe path
// characters.
var ErrInvalidThreadID = errors.New("invalid thread id: contains path separator or traversal sequence")

// validateThreadID checks that a thread id is safe to use as a file name.
func validateThreadID(id string) error {
	if id == "" {
		return errors.New("thread id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return ErrInvalidThreadID
	}
	return nil
}

// FileStore implements Store using one JSON file per thread.
// Storage layout:
//
//	~/.agentserve/threads/
//	  └── <thread-id>.json
//
// Saves go through a temp file and rename, so a crash or failed write
// leaves the previous checkpoint intact. A per-thread lock serializes
// writers for the same thread without blocking other threads.
type FileStore struct {
	baseDir string

	mu     sync.Mutex // guards locks map and closed flag
	locks  map[string]*sync.Mutex
	closed bool
}

// NewFileStore creates a new file-based store.
// If baseDir is empty, uses ~/.agentserve/threads.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".agentserve", "threads")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileStore{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// threadLock returns the mutex serializing saves for one thread.
func (s *FileStore) threadLock(threadID string) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	lock, ok := s.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[threadID] = lock
	}
	return lock, nil
}

func (s *FileStore) threadPath(threadID string) string {
	return filepath.Join(s.baseDir, threadID+".json")
}

// Load retrieves a thread's checkpoint.
func (s *FileStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	if err := validateThreadID(threadID); err != nil {
		return nil, err
	}

	lock, err := s.threadLock(threadID)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(s.threadPath(threadID)) // #nosec G304 - thread id validated to prevent traversal
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		// An unreadable file for an existing thread is corruption, not
		// a miss; the caller must not fall back to a fresh thread.
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &cp, nil
}

// Save writes a thread's checkpoint atomically.
func (s *FileStore) Save(ctx context.Context, cp *Checkpoint) error {
	if err := validateThreadID(cp.ThreadID); err != nil {
		return err
	}

	lock, err := s.threadLock(cp.ThreadID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// Write to a temp file in the same directory, then rename over the
	// old checkpoint. Rename is atomic on POSIX, so a failure at any
	// point leaves the prior checkpoint readable.
	tmp, err := os.CreateTemp(s.baseDir, cp.ThreadID+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod checkpoint: %w", err)
	}

	if err := os.Rename(tmpPath, s.threadPath(cp.ThreadID)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Close releases the store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
