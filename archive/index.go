package archive

import (
	"context"
	"fmt"
	"strings"
)

// Index is the durable, ordered metadata store of an archive. Load returns
// records in append order. Append must be durable before it returns nil.
type Index interface {
	Load(ctx context.Context) ([]PatientCase, error)
	Append(ctx context.Context, c PatientCase) error
	Close() error
}

// IndexKind names an Index backend.
type IndexKind string

const (
	IndexSQLite IndexKind = "sqlite"
	IndexBadger IndexKind = "badger"
	IndexFile   IndexKind = "file"
)

// OpenIndex opens the backend named by kind at path. For sqlite and file the
// path is a file; for badger it is a directory.
func OpenIndex(ctx context.Context, kind IndexKind, path string) (Index, error) {
	switch IndexKind(strings.ToLower(string(kind))) {
	case IndexSQLite:
		return OpenSQLiteIndex(ctx, path)
	case IndexBadger:
		return OpenBadgerIndex(BadgerIndexOptions{Dir: path})
	case IndexFile, "yaml":
		return OpenFileIndex(path)
	default:
		return nil, fmt.Errorf("unknown index backend %q", kind)
	}
}
