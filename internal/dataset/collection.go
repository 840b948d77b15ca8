// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Collection is an ordered list of records stored as one JSON array.
// Loaded records are written back exactly as read (re-indented only), so
// fields this program does not model survive a rewrite. New records are
// appended after them.
type Collection[T any] struct {
	path  string
	raw   []json.RawMessage
	items []T
	added []T
}

// LoadCollection reads the JSON array at path. A missing file yields an
// empty collection that Save will create.
func LoadCollection[T any](path string) (*Collection[T], error) {
	c := &Collection[T]{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}

	if err := json.Unmarshal(data, &c.raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	c.items = make([]T, 0, len(c.raw))
	for i, r := range c.raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, fmt.Errorf("parsing %s record %d: %w", path, i, err)
		}
		c.items = append(c.items, item)
	}
	return c, nil
}

// Path returns the file backing the collection.
func (c *Collection[T]) Path() string { return c.path }

// Loaded returns the records read from disk.
func (c *Collection[T]) Loaded() []T {
	return append([]T(nil), c.items...)
}

// Added returns the records appended since load.
func (c *Collection[T]) Added() []T {
	return append([]T(nil), c.added...)
}

// All returns loaded records followed by appended ones.
func (c *Collection[T]) All() []T {
	out := make([]T, 0, len(c.items)+len(c.added))
	out = append(out, c.items...)
	return append(out, c.added...)
}

// Len returns the total number of records.
func (c *Collection[T]) Len() int { return len(c.items) + len(c.added) }

// Append queues records to be written after the loaded ones.
func (c *Collection[T]) Append(items ...T) {
	c.added = append(c.added, items...)
}

// Save rewrites the whole file through a temporary file and rename, so a
// reader never sees a partial document.
func (c *Collection[T]) Save() error {
	var buf bytes.Buffer
	if err := c.encode(&buf); err != nil {
		return err
	}
	return writeAtomic(c.path, buf.Bytes())
}

func (c *Collection[T]) encode(buf *bytes.Buffer) error {
	records := make([]json.RawMessage, 0, c.Len())
	records = append(records, c.raw...)
	for _, item := range c.added {
		var b bytes.Buffer
		enc := json.NewEncoder(&b)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("encoding record for %s: %w", c.path, err)
		}
		records = append(records, bytes.TrimSpace(b.Bytes()))
	}

	if len(records) == 0 {
		buf.WriteString("[]\n")
		return nil
	}

	buf.WriteString("[\n")
	for i, r := range records {
		var compact bytes.Buffer
		if err := json.Compact(&compact, r); err != nil {
			return fmt.Errorf("compacting record %d for %s: %w", i, c.path, err)
		}
		buf.WriteString("  ")
		if err := json.Indent(buf, compact.Bytes(), "  ", "  "); err != nil {
			return fmt.Errorf("indenting record %d for %s: %w", i, c.path, err)
		}
		if i < len(records)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming %s to %s: %w", tmpName, path, err)
	}
	return nil
}
