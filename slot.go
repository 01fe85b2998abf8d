package statemap

import (
	"context"
	"log/slog"
	"sync"

	"github.com/goliatone/go-statemap/pkg/activity"
)

// ChangeKind names the operation that produced a committed value.
type ChangeKind string

const (
	ChangeUpsert  ChangeKind = "upsert"
	ChangeReplace ChangeKind = "replace"
	ChangeRemove  ChangeKind = "remove"
)

// Change describes a commit for logging and activity events.
type Change struct {
	Kind      ChangeKind
	Partition string
	ActorID   string
	TenantID  string
}

// SlotOption configures a Slot.
type SlotOption func(*slotConfig)

type slotConfig struct {
	emitter *activity.Emitter
	logger  *slog.Logger
}

// WithSlotActivity emits an activity event for every commit that changes the
// slot value.
func WithSlotActivity(emitter *activity.Emitter) SlotOption {
	return func(cfg *slotConfig) {
		cfg.emitter = emitter
	}
}

// WithSlotLogger logs commits at debug level.
func WithSlotLogger(logger *slog.Logger) SlotOption {
	return func(cfg *slotConfig) {
		cfg.logger = logger
	}
}

// Slot owns the committed value of one state map. Operations in this package
// return new maps; callers commit them here to make them the source of truth.
// A commit of the value already held is ignored, which is what makes
// Replace's identity guarantee useful.
type Slot[M ~map[Key]V, V any] struct {
	mu      sync.RWMutex
	domain  string
	value   M
	version uint64
	cfg     slotConfig
}

// NewSlot creates a slot for domain holding initial (nil becomes empty).
func NewSlot[M ~map[Key]V, V any](domain string, initial M, opts ...SlotOption) *Slot[M, V] {
	cfg := slotConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if initial == nil {
		initial = M{}
	}
	return &Slot[M, V]{
		domain: domain,
		value:  initial,
		cfg:    cfg,
	}
}

// Domain returns the slot name.
func (s *Slot[M, V]) Domain() string {
	return s.domain
}

// Get returns the committed value. Treat it as read only; derive changes with
// the package operations and Commit the result.
func (s *Slot[M, V]) Get() M {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Version increments on every commit that changes the value.
func (s *Slot[M, V]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Commit stores next and reports whether it differs (by identity) from the
// held value. Hook failures are returned after the value is stored.
func (s *Slot[M, V]) Commit(ctx context.Context, change Change, next M) (bool, error) {
	if next == nil {
		next = M{}
	}
	s.mu.Lock()
	if Same(s.value, next) {
		s.mu.Unlock()
		s.cfg.logger.DebugContext(ctx, "statemap commit skipped",
			slog.String("domain", s.domain),
			slog.String("kind", string(change.Kind)),
		)
		return false, nil
	}
	s.value = next
	s.version++
	version := s.version
	s.mu.Unlock()

	records := recordCount(next)
	s.cfg.logger.DebugContext(ctx, "statemap committed",
		slog.String("domain", s.domain),
		slog.String("kind", string(change.Kind)),
		slog.String("partition", change.Partition),
		slog.Uint64("version", version),
		slog.Int("entries", records),
	)
	return true, s.emit(ctx, change, version, records)
}

// Update applies fn to the held value and commits the result. fn runs under
// the slot lock, so it must not call back into the slot.
func (s *Slot[M, V]) Update(ctx context.Context, change Change, fn func(current M) M) (M, bool, error) {
	next, version, changed := s.swap(fn)
	if !changed {
		return next, false, nil
	}
	records := recordCount(next)
	s.cfg.logger.DebugContext(ctx, "statemap updated",
		slog.String("domain", s.domain),
		slog.String("kind", string(change.Kind)),
		slog.Uint64("version", version),
		slog.Int("entries", records),
	)
	return next, true, s.emit(ctx, change, version, records)
}

// swap runs fn under the write lock. The deferred unlock keeps the slot
// usable when fn panics.
func (s *Slot[M, V]) swap(fn func(current M) M) (M, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.value
	next := fn(current)
	if next == nil {
		next = M{}
	}
	if Same(current, next) {
		return current, s.version, false
	}
	s.value = next
	s.version++
	return next, s.version, true
}

// recordCount counts leaf records; Map2D and Map3D report their Len rather
// than the number of partitions.
func recordCount[M ~map[Key]V, V any](m M) int {
	if sized, ok := any(m).(interface{ Len() int }); ok {
		return sized.Len()
	}
	return len(m)
}

func (s *Slot[M, V]) emit(ctx context.Context, change Change, version uint64, entries int) error {
	if !s.cfg.emitter.Enabled() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	input := activity.MapEventInput{
		ActorID:   change.ActorID,
		TenantID:  change.TenantID,
		Domain:    s.domain,
		Partition: change.Partition,
		Version:   version,
		Records:   entries,
	}
	var event activity.Event
	switch change.Kind {
	case ChangeUpsert:
		event = activity.BuildMapUpsertedEvent(input)
	case ChangeRemove:
		event = activity.BuildMapRemovedEvent(input)
	default:
		event = activity.BuildMapReplacedEvent(input)
	}
	if err := s.cfg.emitter.Emit(ctx, event); err != nil {
		s.cfg.logger.WarnContext(ctx, "statemap activity hooks failed",
			slog.String("domain", s.domain),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}
