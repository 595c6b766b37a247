package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-pcg/storage"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

const fileIndexVersion = 1

type fileIndexDoc struct {
	Version int           `yaml:"version"`
	Cases   []PatientCase `yaml:"cases"`
}

// FileIndex keeps the whole index in one YAML document. Every Append
// rewrites the document through a temp file, fsync and rename, so a crash
// leaves either the old or the new version on disk.
//
// Appends hold an exclusive lock on a sidecar "<path>.lock" file and re-read
// the document under it, so several processes can share one index without
// losing each other's records.
type FileIndex struct {
	path  string
	lock  *flock.Flock
	mu    sync.Mutex
	cases []PatientCase
}

// lockRetry is how often a blocked lock attempt is retried.
const lockRetry = 10 * time.Millisecond

// OpenFileIndex reads the document at path. A missing file is an empty index.
func OpenFileIndex(path string) (*FileIndex, error) {
	if path == "" {
		return nil, errors.New("file index: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	idx := &FileIndex{path: path, lock: flock.New(path + ".lock")}

	cases, err := idx.readShared(context.Background())
	if err != nil {
		return nil, err
	}
	idx.cases = cases
	return idx, nil
}

// Load re-reads the document and returns the cases in append order.
func (f *FileIndex) Load(ctx context.Context) ([]PatientCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cases, err := f.readShared(ctx)
	if err != nil {
		return nil, err
	}
	f.cases = cases
	out := make([]PatientCase, len(cases))
	copy(out, cases)
	return out, nil
}

// Append adds c to the latest version of the document on disk. The
// in-memory copy only changes once the new document is durable.
func (f *FileIndex) Append(ctx context.Context, c PatientCase) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.lock.TryLockContext(ctx, lockRetry); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	current, err := readFileIndex(f.path)
	if err != nil {
		return err
	}
	for _, existing := range current {
		if existing.ID == c.ID {
			return fmt.Errorf("case %s already in index", c.ID)
		}
	}

	next := append(current, c)
	data, err := yaml.Marshal(fileIndexDoc{Version: fileIndexVersion, Cases: next})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := storage.WriteFileAtomic(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	f.cases = next
	return nil
}

func (f *FileIndex) readShared(ctx context.Context) ([]PatientCase, error) {
	if _, err := f.lock.TryRLockContext(ctx, lockRetry); err != nil {
		return nil, fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()
	return readFileIndex(f.path)
}

func readFileIndex(path string) ([]PatientCase, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	var doc fileIndexDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse index %s: %w", path, err)
	}
	if doc.Version > fileIndexVersion {
		return nil, fmt.Errorf("index %s has version %d, newest supported is %d", path, doc.Version, fileIndexVersion)
	}
	for i := range doc.Cases {
		doc.Cases[i].CreatedAt = doc.Cases[i].CreatedAt.UTC()
	}
	return doc.Cases, nil
}

// Close releases the lock file handle.
func (f *FileIndex) Close() error {
	return f.lock.Close()
}

var _ Index = (*FileIndex)(nil)
