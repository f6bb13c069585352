package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"EconDash/internal/model"

	"github.com/gofrs/flock"
)

// CorruptionError reports a snapshot file that exists but could not be
// used. Load returns it together with a usable default snapshot.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("snapshot %s unreadable, starting from empty: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

var errEmptyFile = errors.New("file is empty")

// Store persists the whole snapshot of accumulated series as one JSON file.
type Store struct {
	sem   chan struct{} // in-process writer slot
	path  string
	names []string
	lock  *flock.Flock
}

// New creates a Store backed by path. names are the logical series that
// must always be present in a loaded snapshot.
func New(path string, names []string) *Store {
	return &Store{
		path:  path,
		sem:   make(chan struct{}, 1),
		names: append([]string(nil), names...),
		lock:  flock.New(path + ".lock"),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Default returns a snapshot with every known name mapped to an empty table.
func (s *Store) Default() model.Snapshot {
	snap := make(model.Snapshot, len(s.names))
	for _, n := range s.names {
		snap[n] = model.Table{}
	}
	return snap
}

// Load reads the snapshot. A missing file yields the default snapshot and a
// nil error. An empty or invalid file yields the default snapshot and a
// *CorruptionError. The returned snapshot is always usable.
func (s *Store) Load() (model.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.Default(), nil
		}
		return s.Default(), &CorruptionError{Path: s.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return s.Default(), &CorruptionError{Path: s.path, Err: errEmptyFile}
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return s.Default(), &CorruptionError{Path: s.path, Err: err}
	}
	if snap == nil {
		return s.Default(), &CorruptionError{Path: s.path, Err: errors.New("top-level value is null")}
	}
	for _, n := range s.names {
		if snap[n] == nil {
			snap[n] = model.Table{}
		}
	}
	return snap, nil
}

// Save overwrites the backing file with the full snapshot. The file is
// written next to the target and renamed over it.
func (s *Store) Save(snap model.Snapshot) error {
	out := make(model.Snapshot, len(snap))
	for n, t := range snap {
		if t == nil {
			t = model.Table{}
		}
		out[n] = t
	}
	for _, n := range s.names {
		if _, ok := out[n]; !ok {
			out[n] = model.Table{}
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Lock acquires the single-writer lock: an in-process slot plus an advisory
// lock on "<path>.lock" shared with other processes. The returned func
// releases both. Waiting for either ends when ctx is done.
func (s *Store) Lock(ctx context.Context) (unlock func(), err error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("lock %s: %w", s.path, ctx.Err())
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		<-s.sem
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	ok, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !ok {
		<-s.sem
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	return func() {
		s.lock.Unlock()
		<-s.sem
	}, nil
}
