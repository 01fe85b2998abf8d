// Package hydrate turns loosely typed record payloads into typed records and
// flattens typed records back into field maps for rule evaluation.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-statemap/clone"
)

// Context identifies the map and record a payload belongs to.
type Context struct {
	Domain string
	Key    string
}

func (c Context) String() string {
	if c.Key == "" {
		return fmt.Sprintf("%q", c.Domain)
	}
	return fmt.Sprintf("%q[%s]", c.Domain, c.Key)
}

// PreHook rewrites a payload before decoding. Returning nil keeps the
// current payload.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook adjusts or validates the decoded record.
type PostHook[T any] func(Context, *T) error

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts payloads into T through their JSON form, so json tags on T
// apply.
type Decoder[T any] struct {
	pre    []PreHook
	post   []PostHook[T]
	strict bool
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// WithDisallowUnknownFields rejects payload fields T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// NewDecoder constructs a Decoder applying opts in order.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into T. Hooks receive a deep copy, the caller's
// payload is never modified.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T
	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil for domain %q", ctx.Domain)
	}

	current := clone.Clone(payload)
	for i, hook := range d.pre {
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook %d for %s failed: %w", i, ctx, err)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("hydrate: marshal payload for %s: %w", ctx, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if d.strict {
		decoder.DisallowUnknownFields()
	}
	var result T
	if err := decoder.Decode(&result); err != nil {
		return zero, fmt.Errorf("hydrate: decode %s: %w", ctx, err)
	}

	for i, hook := range d.post {
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook %d for %s failed: %w", i, ctx, err)
		}
	}
	return result, nil
}

// Fields flattens record into a field map using its JSON representation.
// Field maps are returned as is; nil records produce an empty map.
func Fields(record any) (map[string]any, error) {
	switch typed := record.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		if typed == nil {
			return map[string]any{}, nil
		}
		return typed, nil
	}
	buffer, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("hydrate: marshal record: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, fmt.Errorf("hydrate: record is not an object: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
