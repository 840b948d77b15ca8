// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset persists the units and edges collections as whole JSON
// documents in a data directory, guarded by an advisory file lock so two
// runs never interleave their rewrites.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

const (
	unitsFile = "units.json"
	edgesFile = "edges.json"
	lockFile  = ".abm-scraper.lock"
)

// ErrLocked means another process holds the data directory lock.
var ErrLocked = errors.New("data directory is locked by another run")

// Store is an opened data directory.
type Store struct {
	dir  string
	lock *flock.Flock
}

// Open creates dir if needed and takes its lock. It fails with ErrLocked
// instead of waiting when another run holds the lock.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return &Store{dir: dir, lock: lock}, nil
}

// Close releases the lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// LoadUnits reads units.json.
func (s *Store) LoadUnits() (*Collection[types.Unit], error) {
	return LoadCollection[types.Unit](filepath.Join(s.dir, unitsFile))
}

// LoadEdges reads edges.json.
func (s *Store) LoadEdges() (*Collection[types.Edge], error) {
	return LoadCollection[types.Edge](filepath.Join(s.dir, edgesFile))
}

// ReadOnly loads both collections without taking the lock, for consumers
// such as export that never write.
func ReadOnly(dir string) (*Collection[types.Unit], *Collection[types.Edge], error) {
	units, err := LoadCollection[types.Unit](filepath.Join(dir, unitsFile))
	if err != nil {
		return nil, nil, err
	}
	edges, err := LoadCollection[types.Edge](filepath.Join(dir, edgesFile))
	if err != nil {
		return nil, nil, err
	}
	return units, edges, nil
}
