package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

const (
	defaultLockTimeout = 3 * time.Second
	defaultLockRetry   = 50 * time.Millisecond
)

// FileStore keeps one YAML document per Ref under a root directory. Access is
// serialized across processes with a sibling `.lock` file.
type FileStore[T any] struct {
	root        string
	lockTimeout time.Duration
	lockRetry   time.Duration
	now         func() time.Time
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*fileStoreConfig)

type fileStoreConfig struct {
	lockTimeout time.Duration
	lockRetry   time.Duration
}

// WithLockTimeout bounds how long Load and Save wait for the file lock.
func WithLockTimeout(timeout time.Duration) FileStoreOption {
	return func(cfg *fileStoreConfig) {
		if timeout > 0 {
			cfg.lockTimeout = timeout
		}
	}
}

// WithLockRetry sets the interval between lock attempts.
func WithLockRetry(interval time.Duration) FileStoreOption {
	return func(cfg *fileStoreConfig) {
		if interval > 0 {
			cfg.lockRetry = interval
		}
	}
}

type fileDocument[T any] struct {
	Meta     Meta `yaml:"meta"`
	Snapshot T    `yaml:"snapshot"`
}

// NewFileStore creates a store rooted at dir. The directory is created on the
// first Save.
func NewFileStore[T any](dir string, opts ...FileStoreOption) (*FileStore[T], error) {
	if dir == "" {
		return nil, fmt.Errorf("state: file store directory is required")
	}
	cfg := fileStoreConfig{lockTimeout: defaultLockTimeout, lockRetry: defaultLockRetry}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &FileStore[T]{
		root:        filepath.Clean(dir),
		lockTimeout: cfg.lockTimeout,
		lockRetry:   cfg.lockRetry,
		now:         time.Now,
	}, nil
}

// Path returns the file backing ref.
func (s *FileStore[T]) Path(ref Ref) (string, error) {
	id, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(id)+".yaml"), nil
}

func (s *FileStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	path, err := s.Path(ref)
	if err != nil {
		return zero, Meta{}, false, err
	}
	if _, err := os.Stat(filepath.Dir(path)); errors.Is(err, fs.ErrNotExist) {
		return zero, Meta{}, false, nil
	}

	lock := flock.New(path + ".lock")
	if err := s.acquire(ctx, lock, false); err != nil {
		return zero, Meta{}, false, err
	}
	defer func() { _ = lock.Unlock() }()

	doc, ok, err := readDocument[T](path)
	if err != nil || !ok {
		return zero, Meta{}, false, err
	}
	return doc.Snapshot, doc.Meta, true, nil
}

func (s *FileStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	path, err := s.Path(ref)
	if err != nil {
		return Meta{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Meta{}, fmt.Errorf("state: create directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := s.acquire(ctx, lock, true); err != nil {
		return Meta{}, err
	}
	defer func() { _ = lock.Unlock() }()

	current, exists, err := readDocument[T](path)
	if err != nil {
		return Meta{}, err
	}
	if err := checkETag(meta.ETag, current.Meta, exists); err != nil {
		return Meta{}, err
	}

	doc := fileDocument[T]{Meta: stampMeta(meta, s.now()), Snapshot: snapshot}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %s: %w", filepath.Base(path), err)
	}
	if err := writeFileAtomic(path, raw); err != nil {
		return Meta{}, err
	}
	return cloneMeta(doc.Meta), nil
}

// Delete removes the file stored for ref, reporting whether one existed.
func (s *FileStore[T]) Delete(ctx context.Context, ref Ref) (bool, error) {
	path, err := s.Path(ref)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(filepath.Dir(path)); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	lock := flock.New(path + ".lock")
	if err := s.acquire(ctx, lock, true); err != nil {
		return false, err
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("state: remove %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func (s *FileStore[T]) acquire(ctx context.Context, lock *flock.Flock, exclusive bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = lock.TryLockContext(ctx, s.lockRetry)
	} else {
		locked, err = lock.TryRLockContext(ctx, s.lockRetry)
	}
	if err != nil {
		return fmt.Errorf("state: acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("state: could not acquire lock %s", lock.Path())
	}
	return nil
}

func readDocument[T any](path string) (fileDocument[T], bool, error) {
	var doc fileDocument[T]
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, false, nil
	}
	if err != nil {
		return doc, false, fmt.Errorf("state: read %s: %w", filepath.Base(path), err)
	}
	if len(raw) == 0 {
		return doc, false, nil
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, false, fmt.Errorf("state: decode %s: %w", filepath.Base(path), err)
	}
	return doc, true, nil
}

func writeFileAtomic(path string, raw []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("state: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("state: close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("state: replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
