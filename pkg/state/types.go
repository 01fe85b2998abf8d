package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

var ErrInvalidRef = errors.New("state: invalid ref")

// Ref identifies one persisted snapshot. Partition is optional and names a
// sub-map (for example a year in a 2D map) stored on its own.
type Ref struct {
	Domain    string
	Partition string
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty" yaml:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Mutator edits a loaded snapshot in place.
type Mutator[T any] func(*T) error

// Validator is implemented by snapshots that check themselves before Mutate
// saves them.
type Validator interface {
	Validate() error
}

// Identifier returns the canonical storage key for the ref.
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	if domain == "" {
		return "", fmt.Errorf("%w: domain is required", ErrInvalidRef)
	}
	if err := validSegment(domain); err != nil {
		return "", err
	}
	partition := strings.TrimSpace(r.Partition)
	if partition == "" {
		return domain, nil
	}
	if err := validSegment(partition); err != nil {
		return "", err
	}
	return domain + "/" + partition, nil
}

func validSegment(segment string) error {
	if segment == "." || segment == ".." || strings.ContainsAny(segment, `/\`) {
		return fmt.Errorf("%w: segment %q", ErrInvalidRef, segment)
	}
	return nil
}

// Mutate loads one snapshot, applies fn, validates the result when it
// implements Validator, then saves it guarded by the loaded ETag. A non-empty
// meta.ETag must match the stored ETag.
func Mutate[T any](ctx context.Context, store Store[T], ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return zero, Meta{}, err
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q: %w", ref.Domain, err)
	}
	if !ok {
		snapshot = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return zero, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return zero, loadedMeta, err
	}
	if v, ok := any(snapshot).(Validator); ok {
		if err := v.Validate(); err != nil {
			return zero, loadedMeta, err
		}
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	saveMeta.ETag = loadedMeta.ETag
	savedMeta, err := store.Save(ctx, ref, snapshot, saveMeta)
	if err != nil {
		return zero, loadedMeta, fmt.Errorf("state: save %q: %w", ref.Domain, err)
	}
	return snapshot, savedMeta, nil
}

// checkETag reports ErrETagMismatch when expected is set and differs from the
// stored ETag.
func checkETag(expected string, stored Meta, exists bool) error {
	if expected == "" {
		return nil
	}
	if !exists || stored.ETag != expected {
		return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, stored.ETag)
	}
	return nil
}

// stampMeta assigns the identifiers of a new revision.
func stampMeta(meta Meta, now time.Time) Meta {
	out := cloneMeta(meta)
	out.SnapshotID = uuid.NewString()
	out.ETag = etagFor(out.SnapshotID)
	out.UpdatedAt = now.UTC()
	return out
}

func etagFor(snapshotID string) string {
	return `W/"` + strings.ReplaceAll(snapshotID, "-", "")[:16] + `"`
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
