package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-statemap/clone"
)

// DefaultObjectType labels events that do not name an object type.
const DefaultObjectType = "statemap"

// Event describes a committed state map change that can be fanned out to
// hooks. IDs are strings so call sites are not tied to a UUID type.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	ObjectType string
	ObjectID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify forwards the normalized event to every hook and joins their errors,
// each tagged with the hook position. Events without a verb or object id are
// dropped.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}

	normalized := NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectID == "" {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, fmt.Errorf("activity: hook %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// NormalizeEvent trims identifiers, deep copies metadata so hooks cannot
// reach back into committed state, and defaults the object type and
// timestamp.
func NormalizeEvent(event Event) Event {
	for _, field := range []*string{
		&event.Verb, &event.ActorID, &event.UserID, &event.TenantID,
		&event.ObjectType, &event.ObjectID, &event.Channel,
	} {
		*field = strings.TrimSpace(*field)
	}
	if event.ObjectType == "" {
		event.ObjectType = DefaultObjectType
	}
	if len(event.Metadata) == 0 {
		event.Metadata = nil
	} else {
		event.Metadata = clone.Clone(event.Metadata)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return event
}
