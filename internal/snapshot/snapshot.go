// Package snapshot persists and restores the store's record set across
// restarts. Grounded on the pluggable-backend-behind-an-interface shape
// of internal/storage.Store (in-memory default, swappable implementation),
// re-cast here around whole-table dump/restore rather than per-key CRUD.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dreamware/dindex/internal/direrr"
	"github.com/dreamware/dindex/internal/record"
)

// Snapshotter loads and saves the full record table. Implementations
// must tolerate Load being called against a datastore that has never
// been saved (first run): return an empty slice, not an error.
type Snapshotter interface {
	Load(ctx context.Context) ([]record.Record, error)
	Save(ctx context.Context, records []record.Record) error
}

// New resolves a datastore URI into a Snapshotter. "memory://" (and the
// empty string) yield a NopSnapshotter; "file://<path>" yields a
// JSONFile rooted at <path>.
func New(uri string) (Snapshotter, error) {
	if uri == "" || uri == "memory://" {
		return NopSnapshotter{}, nil
	}
	path, ok := strings.CutPrefix(uri, "file://")
	if !ok {
		return nil, direrr.Withf(direrr.Configuration, "resolve datastore URI", nil, "unsupported scheme in %q", uri)
	}
	return &JSONFile{Path: path}, nil
}

// NopSnapshotter is the memory:// backend: Load always returns no
// records, Save is a no-op. Used when persistence is not wanted.
type NopSnapshotter struct{}

func (NopSnapshotter) Load(context.Context) ([]record.Record, error) { return nil, nil }
func (NopSnapshotter) Save(context.Context, []record.Record) error   { return nil }

// JSONFile persists the record table as a single JSON array at Path,
// written atomically via a temp file plus rename so a crash mid-write
// never leaves a truncated datastore behind.
type JSONFile struct {
	Path string
}

// Load reads Path. A missing file is treated as an empty, freshly
// initialized datastore rather than an error.
func (j *JSONFile) Load(ctx context.Context) ([]record.Record, error) {
	b, err := os.ReadFile(j.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, direrr.Withf(direrr.Transport, "read snapshot", err, "path %s", j.Path)
	}
	var records []record.Record
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, direrr.Withf(direrr.Decode, "decode snapshot", err, "path %s", j.Path)
	}
	return records, nil
}

// Save writes records to Path via a temp file in the same directory
// followed by an atomic rename, so readers never observe a partial file.
func (j *JSONFile) Save(ctx context.Context, records []record.Record) error {
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}

	dir := filepath.Dir(j.Path)
	tmp, err := os.CreateTemp(dir, ".dindex-snapshot-*")
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, j.Path); err != nil {
		return fmt.Errorf("snapshot: rename into place: %w", err)
	}
	return nil
}
