package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestLocalWriteAndRead(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, WriteAll(ctx, s, "cases/a.wav", []byte("riff")))

	got, err := ReadAll(ctx, s, "cases/a.wav")
	require.NoError(t, err)
	assert.Equal(t, "riff", string(got))
}

func TestDirSyncFailureAfterRename(t *testing.T) {
	orig := dirSync
	dirSync = func(string) error { return errors.New("sync directory: input/output error") }
	t.Cleanup(func() { dirSync = orig })

	s := newTestLocal(t)
	ctx := context.Background()
	require.NoError(t, WriteAll(ctx, s, "cases/b.wav", []byte("riff")))
	got, err := ReadAll(ctx, s, "cases/b.wav")
	require.NoError(t, err)
	assert.Equal(t, "riff", string(got))

	path := filepath.Join(t.TempDir(), "index.yaml")
	require.NoError(t, WriteFileAtomic(path, []byte("cases: []\n"), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cases: []\n", string(data))
}

func TestSyncUnsupported(t *testing.T) {
	assert.True(t, syncUnsupported(&os.PathError{Op: "sync", Path: "/d", Err: syscall.EINVAL}))
	assert.True(t, syncUnsupported(&os.PathError{Op: "sync", Path: "/d", Err: syscall.ENOTSUP}))
	assert.False(t, syncUnsupported(&os.PathError{Op: "sync", Path: "/d", Err: syscall.EIO}))
}

func TestLocalReadNotExist(t *testing.T) {
	s := newTestLocal(t)
	_, err := s.Read(context.Background(), "missing.wav")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLocalWriteInvisibleUntilClose(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	w, err := s.Write(ctx, "x.wav")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "x.wav")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, w.Close())
	ok, err = s.Exists(ctx, "x.wav")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalAbortLeavesNothing(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	w, err := s.Write(ctx, "y.wav")
	require.NoError(t, err)
	_, _ = w.Write([]byte("data"))
	require.NoError(t, w.(interface{ Abort() error }).Abort())

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalOverwrite(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, WriteAll(ctx, s, "f", []byte("one")))
	require.NoError(t, WriteAll(ctx, s, "f", []byte("two")))

	got, err := ReadAll(ctx, s, "f")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func TestLocalDeleteIdempotent(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, WriteAll(ctx, s, "f", []byte("x")))
	require.NoError(t, s.Delete(ctx, "f"))
	require.NoError(t, s.Delete(ctx, "f"))

	ok, err := s.Exists(ctx, "f")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalRejectsEscape(t *testing.T) {
	s := newTestLocal(t)
	_, err := s.Write(context.Background(), "../outside")
	assert.Error(t, err)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "index.yaml")
	require.NoError(t, WriteFileAtomic(path, []byte("a: 1\n"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
	errNotFound  = &apiError{code: "NotFound", msg: "not found"}
)

// mockS3 is an in-memory S3Client.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int

	getErr error
	putErr error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte)}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	m.puts++
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, errNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3WriteAndRead(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "bucket", "pcg")
	ctx := context.Background()

	require.NoError(t, WriteAll(ctx, store, "cases/1.wav", []byte("riff")))
	assert.Contains(t, mock.objects, "pcg/cases/1.wav")

	got, err := ReadAll(ctx, store, "cases/1.wav")
	require.NoError(t, err)
	assert.Equal(t, "riff", string(got))
}

func TestS3ReadNotExist(t *testing.T) {
	store := NewS3(newMockS3(), "bucket", "")
	_, err := store.Read(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestS3ReadOtherError(t *testing.T) {
	mock := newMockS3()
	mock.getErr = errors.New("network timeout")
	store := NewS3(mock, "bucket", "")

	_, err := store.Read(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrNotExist))
}

func TestS3ExistsAndDelete(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "bucket", "")
	ctx := context.Background()

	ok, err := store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, WriteAll(ctx, store, "a", []byte("1")))
	ok, err = store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))
	ok, err = store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3UploadsOnlyOnClose(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "bucket", "")
	ctx := context.Background()

	w, err := store.Write(ctx, "k")
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 0, mock.puts)

	require.NoError(t, w.Close())
	assert.Equal(t, 1, mock.puts)
}

func TestS3PutErrorSurfacesOnClose(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("access denied")
	store := NewS3(mock, "bucket", "")

	err := WriteAll(context.Background(), store, "k", []byte("abc"))
	require.Error(t, err)
	assert.Empty(t, mock.objects)
}

func TestNewS3Client(t *testing.T) {
	c := NewS3Client(S3Options{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		UsePathStyle:    true,
	})
	require.NotNil(t, c)
	assert.Equal(t, "us-east-1", c.Options().Region)
	assert.True(t, c.Options().UsePathStyle)
}
