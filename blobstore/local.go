package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"
)

// LocalStore implements BlobStore on the local filesystem. Writes go to a
// temp file and are renamed into place on Close, so readers never observe
// partial checkpoints.
type LocalStore struct {
	root    string
	limiter *rate.Limiter // nil if unthrottled
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithWriteLimit throttles checkpoint writes to bytesPerSec. Useful when
// checkpointing shares a disk with latency-sensitive work.
func WithWriteLimit(bytesPerSec int64) LocalOption {
	return func(s *LocalStore) {
		if bytesPerSec > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))
		}
	}
}

// NewLocalStore creates a LocalStore rooted at the given directory,
// creating it if needed.
func NewLocalStore(root string, optFns ...LocalOption) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	s := &LocalStore{root: root}
	for _, fn := range optFns {
		fn(s)
	}
	return s, nil
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &localBlob{f: f, size: info.Size()}, nil
}

// Create creates a new blob for streaming writes.
func (s *LocalStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	final := s.path(name)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(filepath.Dir(final), ".tmp-*")
	if err != nil {
		return nil, err
	}

	return &localWritableBlob{
		ctx:     ctx,
		f:       f,
		final:   final,
		limiter: s.limiter,
	}, nil
}

// Put writes a blob atomically.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// List returns all blobs under the prefix, using slash-separated names.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

type localBlob struct {
	f    *os.File
	size int64
}

func (b *localBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return b.f.ReadAt(p, off)
}

func (b *localBlob) Close() error {
	return b.f.Close()
}

func (b *localBlob) Size() int64 {
	return b.size
}

type localWritableBlob struct {
	ctx     context.Context
	f       *os.File
	final   string
	limiter *rate.Limiter
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	if w.limiter != nil {
		// WaitN caps n at the limiter burst; write in chunks.
		burst := w.limiter.Burst()
		for off := 0; off < len(p); off += burst {
			end := off + burst
			if end > len(p) {
				end = len(p)
			}
			if err := w.limiter.WaitN(w.ctx, end-off); err != nil {
				return off, err
			}
			if _, err := w.f.Write(p[off:end]); err != nil {
				return off, err
			}
		}
		return len(p), nil
	}
	return w.f.Write(p)
}

func (w *localWritableBlob) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		os.Remove(w.f.Name())
		return err
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return err
	}
	return os.Rename(w.f.Name(), w.final)
}

func (w *localWritableBlob) Sync() error {
	return w.f.Sync()
}
