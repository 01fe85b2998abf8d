package state

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-statemap/clone"
)

// MemoryStore is an in-memory Store, the process-local counterpart of
// FileStore. Snapshots are deep copied on the way in and out so callers can
// mutate what they load.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord[T]
	now     func() time.Time
}

type memoryRecord[T any] struct {
	snapshot T
	meta     Meta
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: map[string]memoryRecord[T]{}, now: time.Now}
}

func (s *MemoryStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, Meta{}, false, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return clone.Clone(record.snapshot), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.records[key]
	if err := checkETag(meta.ETag, current.meta, exists); err != nil {
		return Meta{}, err
	}
	saved := stampMeta(meta, s.now())
	s.records[key] = memoryRecord[T]{snapshot: clone.Clone(snapshot), meta: saved}
	return cloneMeta(saved), nil
}

// Delete drops the snapshot stored for ref, reporting whether one existed.
func (s *MemoryStore[T]) Delete(ctx context.Context, ref Ref) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key]
	delete(s.records, key)
	return ok, nil
}
