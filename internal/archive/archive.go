// Package archive provides the cold-tier export boundary the Pruner
// offers evicted events to before they are dropped for good. An
// Archiver is entirely optional: a nil Archiver is a valid Coordinator
// configuration, preserving the no-I/O-on-the-hot-path guarantee when
// archiving is not configured.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/golang/snappy"

	"github.com/arkilian/tracestore/pkg/types"
)

// Archiver receives events the Pruner is about to delete. Archive is
// always called before the delete, synchronously, and that includes
// capacity evictions run inside Coordinator.Store/StoreBatch. It is
// invoked best-effort: an error from the Archiver is logged and does
// not fail the prune (see pruner.Pruner).
type Archiver interface {
	Archive(ctx context.Context, evicted []*types.Event) error
}

// LocalArchiver appends snappy-compressed, newline-delimited JSON
// records to a single local file, grounded on the teacher's
// storage.LocalStorage shape trimmed to the one write operation this
// store needs (no multipart, no listing, no conditional put).
type LocalArchiver struct {
	path string
}

// NewLocalArchiver creates a LocalArchiver writing to path.
func NewLocalArchiver(path string) *LocalArchiver {
	return &LocalArchiver{path: path}
}

// Archive appends each event as a snappy-framed JSON line.
func (a *LocalArchiver) Archive(_ context.Context, evicted []*types.Event) error {
	if len(evicted) == 0 {
		return nil
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("archive: failed to open %s: %w", a.path, err)
	}
	defer f.Close()

	sw := snappy.NewBufferedWriter(f)
	defer sw.Close()

	enc := json.NewEncoder(sw)
	for _, e := range evicted {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("archive: failed to encode event %s: %w", e.EventID, err)
		}
	}
	return nil
}
