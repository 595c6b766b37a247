package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-pcg/logging"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const badgerPrefix = "case/"

// BadgerIndex stores msgpack-encoded case records in BadgerDB under keys
// ordered by append sequence.
type BadgerIndex struct {
	db   *badger.DB
	next uint64
}

// BadgerIndexOptions configures a BadgerIndex.
type BadgerIndexOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool
}

// OpenBadgerIndex opens the store with synchronous writes so every Append is
// on disk before it returns.
func OpenBadgerIndex(opts BadgerIndexOptions) (*BadgerIndex, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger index: Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).
		WithSyncWrites(true).
		WithLogger(badgerLogger{logging.WithFields(logging.Fields{"component": "badger"})})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	idx := &BadgerIndex{db: db}
	err = db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			idx.next++
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("scan badger index: %w", err)
	}
	return idx, nil
}

func badgerKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", badgerPrefix, seq))
}

// Load returns every case in key order, which is append order.
func (b *BadgerIndex) Load(_ context.Context) ([]PatientCase, error) {
	var out []PatientCase
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var c PatientCase
			if err := msgpack.Unmarshal(val, &c); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			c.CreatedAt = c.CreatedAt.UTC()
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Append writes one record. The caller serialises appends.
func (b *BadgerIndex) Append(_ context.Context, c PatientCase) error {
	val, err := msgpack.Marshal(&c)
	if err != nil {
		return fmt.Errorf("encode case %s: %w", c.ID, err)
	}
	key := badgerKey(b.next)
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("write case %s: %w", c.ID, err)
	}
	b.next++
	return nil
}

func (b *BadgerIndex) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger output through the logging package, dropping
// info and debug chatter.
type badgerLogger struct {
	logger logging.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error(nil, strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}

var _ Index = (*BadgerIndex)(nil)
