// Package archive keeps patient cases: validated metadata in a durable
// ordered index and the recording as a WAV blob addressed by case id.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/RyanBlaney/sonido-pcg/pcm"
	"github.com/RyanBlaney/sonido-pcg/storage"
	"github.com/RyanBlaney/sonido-pcg/transcode"
	"github.com/google/uuid"
)

// Archive is the ordered, append-only collection of cases. Construct it once
// with Open and share the handle. Appends are serialised; List, Get and Load
// run concurrently and only ever see committed cases.
type Archive struct {
	index   Index
	blobs   storage.FileStore
	decoder *transcode.Decoder
	encoder *transcode.Encoder
	now     func() time.Time
	newID   func() string
	logger  logging.Logger

	appendMu sync.Mutex

	mu    sync.RWMutex
	cases []PatientCase
	byID  map[string]int
}

// Option customises an Archive.
type Option func(*Archive)

// WithDecoder sets the loader used by Load.
func WithDecoder(d *transcode.Decoder) Option {
	return func(a *Archive) { a.decoder = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) { a.now = now }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(a *Archive) { a.newID = fn }
}

// WithLogger sets the archive logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Archive) { a.logger = l }
}

// Open loads the existing collection from index. The archive takes
// ownership of index and closes it on Close.
func Open(ctx context.Context, index Index, blobs storage.FileStore, opts ...Option) (*Archive, error) {
	if index == nil || blobs == nil {
		return nil, pcm.InvalidParameter("archive.Open", "index/blobs", "non-nil", nil)
	}
	enc, err := transcode.NewEncoder(transcode.ArchiveBitDepth)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		index:   index,
		blobs:   blobs,
		decoder: transcode.NewDecoder(nil),
		encoder: enc,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
		logger:  logging.WithFields(logging.Fields{"component": "archive"}),
		byID:    map[string]int{},
	}
	for _, opt := range opts {
		opt(a)
	}

	cases, err := index.Load(ctx)
	if err != nil {
		return nil, pcm.Persistence("archive.Open", "load index", err)
	}
	for i, c := range cases {
		if _, dup := a.byID[c.ID]; dup {
			return nil, pcm.Persistence("archive.Open", fmt.Sprintf("duplicate case id %s in index", c.ID), nil)
		}
		a.byID[c.ID] = i
	}
	a.cases = cases

	a.logger.Info("Archive opened", logging.Fields{"cases": len(cases)})
	return a, nil
}

// Append stores a new case without derived results.
func (a *Archive) Append(ctx context.Context, meta Metadata, buf *pcm.Buffer) (PatientCase, error) {
	return a.AppendDerived(ctx, meta, buf, Derived{})
}

// AppendDerived stores a new case together with its analysis results.
//
// buf is the primary payload returned by Load. The blobs are written first,
// then the index record. The case becomes visible only after both are
// durable. On failure the collection is unchanged and the error is
// PERSISTENCE_FAILED, except for invalid input.
func (a *Archive) AppendDerived(ctx context.Context, meta Metadata, buf *pcm.Buffer, derived Derived) (PatientCase, error) {
	const op = "archive.Append"
	if err := meta.Validate(); err != nil {
		return PatientCase{}, err
	}
	if buf == nil {
		return PatientCase{}, pcm.NewError(pcm.ErrCodeEmptyBuffer, op, "nil buffer", nil)
	}

	a.appendMu.Lock()
	defer a.appendMu.Unlock()

	id := a.newID()
	a.mu.RLock()
	_, taken := a.byID[id]
	a.mu.RUnlock()
	if taken {
		return PatientCase{}, pcm.Persistence(op, fmt.Sprintf("case id %s already in use", id), nil)
	}

	c := PatientCase{
		ID:         id,
		Metadata:   meta,
		CreatedAt:  a.now().UTC().Truncate(time.Millisecond),
		BlobKey:    blobKey(id),
		SampleRate: buf.SampleRate(),
		NumSamples: buf.Len(),
		Label:      derived.Label,
		Features:   derived.Features,
	}
	logger := a.logger.WithFields(logging.Fields{"case_id": id})

	blobs := []blobPayload{{c.BlobKey, buf}}
	if derived.Source != nil && !derived.Source.IsEmpty() {
		c.SourceKey = sourceKey(id)
		blobs = append(blobs, blobPayload{c.SourceKey, derived.Source})
	}

	var written []string
	for _, b := range blobs {
		data, err := a.encoder.Encode(b.buf)
		if err != nil {
			a.removeBlobs(ctx, logger, written)
			return PatientCase{}, pcm.Persistence(op, "encode audio blob", err)
		}
		if err := storage.WriteAll(ctx, a.blobs, b.key, data); err != nil {
			logger.Error(err, "Failed to write audio blob", logging.Fields{"blob_key": b.key})
			a.removeBlobs(ctx, logger, written)
			return PatientCase{}, pcm.Persistence(op, "write audio blob", err)
		}
		written = append(written, b.key)
	}
	if err := a.index.Append(ctx, c); err != nil {
		logger.Error(err, "Failed to append index record")
		// The blobs are unreachable without their record.
		a.removeBlobs(ctx, logger, written)
		return PatientCase{}, pcm.Persistence(op, "append index record", err)
	}

	a.mu.Lock()
	a.byID[id] = len(a.cases)
	a.cases = append(a.cases, c)
	a.mu.Unlock()

	logger.Info("Case archived", logging.Fields{
		"samples":     c.NumSamples,
		"sample_rate": c.SampleRate,
		"label":       string(c.Label),
	})
	return c, nil
}

// List returns case summaries, most recently appended first.
func (a *Archive) List() []Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Summary, 0, len(a.cases))
	for i := len(a.cases) - 1; i >= 0; i-- {
		out = append(out, a.cases[i].Summary())
	}
	return out
}

// Cases returns full records in append order.
func (a *Archive) Cases() []PatientCase {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.cases)
}

// Len returns the number of committed cases.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cases)
}

// Get returns the record for id without touching the blob.
func (a *Archive) Get(id string) (PatientCase, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.byID[id]
	if !ok {
		return PatientCase{}, notFound(id)
	}
	return a.cases[i], nil
}

// Load returns the record for id and its recording decoded through the
// signal loader, ready to re-enter the pipeline.
func (a *Archive) Load(ctx context.Context, id string) (PatientCase, *pcm.Buffer, error) {
	const op = "archive.Load"
	c, err := a.Get(id)
	if err != nil {
		return PatientCase{}, nil, err
	}
	if c.NumSamples == 0 {
		buf, err := pcm.NewBuffer(nil, c.SampleRate)
		if err != nil {
			return PatientCase{}, nil, pcm.Persistence(op, "invalid stored sample rate", err)
		}
		return c, buf, nil
	}

	data, err := storage.ReadAll(ctx, a.blobs, c.BlobKey)
	if err != nil {
		msg := "read audio blob"
		if errors.Is(err, fs.ErrNotExist) {
			msg = "audio blob missing"
		}
		return PatientCase{}, nil, pcm.Persistence(op, msg, err)
	}
	buf, err := a.decoder.Decode(data)
	if err != nil {
		return PatientCase{}, nil, err
	}
	return c, buf, nil
}

// LoadSource returns the recording as it was before conditioning. Cases
// stored without one fail with NOT_FOUND.
func (a *Archive) LoadSource(ctx context.Context, id string) (*pcm.Buffer, error) {
	const op = "archive.LoadSource"
	c, err := a.Get(id)
	if err != nil {
		return nil, err
	}
	if c.SourceKey == "" {
		return nil, pcm.NewError(pcm.ErrCodeNotFound, op, fmt.Sprintf("case %q has no source recording", id), nil)
	}
	data, err := storage.ReadAll(ctx, a.blobs, c.SourceKey)
	if err != nil {
		msg := "read source blob"
		if errors.Is(err, fs.ErrNotExist) {
			msg = "source blob missing"
		}
		return nil, pcm.Persistence(op, msg, err)
	}
	return a.decoder.Decode(data)
}

type blobPayload struct {
	key string
	buf *pcm.Buffer
}

func (a *Archive) removeBlobs(ctx context.Context, logger logging.Logger, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := a.blobs.Delete(ctx, key); err != nil {
			logger.Warn("Orphaned audio blob left behind", logging.Fields{"blob_key": key, "error": err.Error()})
		}
	}
}

// Close releases the index.
func (a *Archive) Close() error {
	a.appendMu.Lock()
	defer a.appendMu.Unlock()
	return a.index.Close()
}

func notFound(id string) *pcm.Error {
	return pcm.NewError(pcm.ErrCodeNotFound, "archive", fmt.Sprintf("case %q not found", id), nil)
}
