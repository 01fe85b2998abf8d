package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-statemap"
	"github.com/goliatone/go-statemap/pkg/activity"
	"github.com/goliatone/go-statemap/pkg/state"
)

type record = map[string]any

// session runs map operations against one persisted domain.
type session interface {
	Upsert(ctx context.Context, items []record) (bool, error)
	Replace(ctx context.Context, prefix []string, items []record) (bool, error)
	Remove(ctx context.Context, items []record) (bool, error)
	List(ctx context.Context, prefix []string, p statemap.Projection[record, record]) ([]record, error)
	Get(ctx context.Context, keys []string) (record, bool, error)
}

type sessionOptions struct {
	dataDir string
	domain  string
	keys    []string
	genID   bool
	actor   string
	verbs   []string
	logger  *slog.Logger
}

// mapOps binds the dimension specific operations of one map type.
type mapOps[M ~map[statemap.Key]V, V any] struct {
	upsert  func(M, []record) M
	replace func(M, []record, []any) M
	remove  func(M, []record) M
	list    func(M, []any, statemap.Projection[record, record]) []record
	get     func(M, []any) (record, bool)
}

type dataset[M ~map[statemap.Key]V, V any] struct {
	ops     mapOps[M, V]
	cfg     statemap.KeyConfig[record]
	keys    []string
	store   *state.FileStore[M]
	ref     state.Ref
	actor   string
	logger  *slog.Logger
	emitter *activity.Emitter
}

func openSession(opts sessionOptions) (session, error) {
	keys := normalizeKeys(opts.keys)
	var keyOpts []statemap.KeyOption[record]
	if opts.genID && len(keys) > 0 {
		keyOpts = append(keyOpts, statemap.WithCreateID(missingIDSetter(keys[len(keys)-1])))
	}
	cfg := statemap.FieldKeyConfig(keys, keyOpts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.logger == nil {
		opts.logger = slog.New(slog.DiscardHandler)
	}

	switch cfg.Depth {
	case 1:
		u := statemap.NewUtil(cfg)
		return newDataset(opts, cfg, keys, mapOps[statemap.Map[record], record]{
			upsert: func(m statemap.Map[record], items []record) statemap.Map[record] {
				return u.Upsert(m, items...)
			},
			replace: func(m statemap.Map[record], items []record, _ []any) statemap.Map[record] {
				return u.Replace(m, items)
			},
			remove: func(m statemap.Map[record], items []record) statemap.Map[record] {
				return u.Remove(m, items...)
			},
			list: func(m statemap.Map[record], _ []any, p statemap.Projection[record, record]) []record {
				return u.GetAsArray(m, p)
			},
			get: func(m statemap.Map[record], path []any) (record, bool) {
				return u.GetItem(m, path[0])
			},
		})
	case 2:
		u := statemap.NewUtil2D(cfg)
		return newDataset(opts, cfg, keys, mapOps[statemap.Map2D[record], statemap.Map[record]]{
			upsert: func(m statemap.Map2D[record], items []record) statemap.Map2D[record] {
				return u.Upsert(m, items...)
			},
			replace: func(m statemap.Map2D[record], items []record, prefix []any) statemap.Map2D[record] {
				return u.Replace(m, items, prefix...)
			},
			remove: func(m statemap.Map2D[record], items []record) statemap.Map2D[record] {
				return u.Remove(m, items...)
			},
			list: func(m statemap.Map2D[record], prefix []any, p statemap.Projection[record, record]) []record {
				if len(prefix) > 0 {
					return u.GetAsArray(m, prefix[0], p)
				}
				out := []record{}
				for key := range m {
					out = append(out, u.GetAsArray(m, key, p)...)
				}
				return out
			},
			get: func(m statemap.Map2D[record], path []any) (record, bool) {
				return u.GetItem(m, path[0], path[1])
			},
		})
	default:
		u := statemap.NewUtil3D(cfg)
		return newDataset(opts, cfg, keys, mapOps[statemap.Map3D[record], statemap.Map2D[record]]{
			upsert: func(m statemap.Map3D[record], items []record) statemap.Map3D[record] {
				return u.Upsert(m, items...)
			},
			replace: func(m statemap.Map3D[record], items []record, prefix []any) statemap.Map3D[record] {
				return u.Replace(m, items, prefix...)
			},
			remove: func(m statemap.Map3D[record], items []record) statemap.Map3D[record] {
				return u.Remove(m, items...)
			},
			list: func(m statemap.Map3D[record], prefix []any, p statemap.Projection[record, record]) []record {
				switch len(prefix) {
				case 2:
					return u.GetAsArray(m, prefix[0], prefix[1], p)
				case 1:
					out := []record{}
					for key := range m[statemap.CoerceKey(prefix[0])] {
						out = append(out, u.GetAsArray(m, prefix[0], key, p)...)
					}
					return out
				}
				out := []record{}
				for key1, inner := range m {
					for key2 := range inner {
						out = append(out, u.GetAsArray(m, key1, key2, p)...)
					}
				}
				return out
			},
			get: func(m statemap.Map3D[record], path []any) (record, bool) {
				return u.GetItem(m, path[0], path[1], path[2])
			},
		})
	}
}

func newDataset[M ~map[statemap.Key]V, V any](opts sessionOptions, cfg statemap.KeyConfig[record], keys []string, ops mapOps[M, V]) (*dataset[M, V], error) {
	store, err := state.NewFileStore[M](opts.dataDir)
	if err != nil {
		return nil, err
	}
	ref := state.Ref{Domain: opts.domain}
	if _, err := ref.Identifier(); err != nil {
		return nil, err
	}
	emitter := activity.NewEmitter(activity.Hooks{activityLogger(opts.logger)}, activity.Config{Enabled: true, Verbs: opts.verbs})
	return &dataset[M, V]{
		ops:     ops,
		cfg:     cfg,
		keys:    keys,
		store:   store,
		ref:     ref,
		actor:   opts.actor,
		logger:  opts.logger,
		emitter: emitter,
	}, nil
}

func (d *dataset[M, V]) Upsert(ctx context.Context, items []record) (bool, error) {
	return d.mutate(ctx, statemap.ChangeUpsert, "", func(m M) M {
		return d.ops.upsert(m, items)
	})
}

func (d *dataset[M, V]) Replace(ctx context.Context, prefix []string, items []record) (bool, error) {
	if len(prefix) >= d.cfg.Depth {
		return false, fmt.Errorf("replace accepts at most %d partition keys, got %d", d.cfg.Depth-1, len(prefix))
	}
	if items == nil {
		items = []record{}
	}
	return d.mutate(ctx, statemap.ChangeReplace, strings.Join(prefix, "/"), func(m M) M {
		return d.ops.replace(m, items, toAny(prefix))
	})
}

func (d *dataset[M, V]) Remove(ctx context.Context, items []record) (bool, error) {
	return d.mutate(ctx, statemap.ChangeRemove, "", func(m M) M {
		return d.ops.remove(m, items)
	})
}

func (d *dataset[M, V]) List(ctx context.Context, prefix []string, p statemap.Projection[record, record]) ([]record, error) {
	if len(prefix) >= d.cfg.Depth {
		return nil, fmt.Errorf("list accepts at most %d partition keys, got %d", d.cfg.Depth-1, len(prefix))
	}
	current, _, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	items := d.ops.list(current, toAny(prefix), p)
	sort.SliceStable(items, func(i, j int) bool {
		return d.cfg.Path(items[i]).String() < d.cfg.Path(items[j]).String()
	})
	return items, nil
}

func (d *dataset[M, V]) Get(ctx context.Context, keys []string) (record, bool, error) {
	if len(keys) != d.cfg.Depth {
		return nil, false, fmt.Errorf("get expects %d keys, got %d", d.cfg.Depth, len(keys))
	}
	current, _, err := d.load(ctx)
	if err != nil {
		return nil, false, err
	}
	item, ok := d.ops.get(current, toAny(keys))
	return item, ok, nil
}

// mutate loads the snapshot, commits fn through a slot, and saves only when
// the slot reports a change.
func (d *dataset[M, V]) mutate(ctx context.Context, kind statemap.ChangeKind, partition string, fn func(M) M) (bool, error) {
	current, meta, err := d.load(ctx)
	if err != nil {
		return false, err
	}
	slot := statemap.NewSlot[M, V](d.ref.Domain, current,
		statemap.WithSlotLogger(d.logger),
		statemap.WithSlotActivity(d.emitter),
	)
	change := statemap.Change{Kind: kind, Partition: partition, ActorID: d.actor}
	next, changed, err := slot.Update(ctx, change, func(current M) M {
		next := fn(current)
		if statemap.Equal(current, next) {
			return current
		}
		return next
	})
	if err != nil {
		d.logger.WarnContext(ctx, "activity hooks failed", slog.Any("error", err))
	}
	if !changed {
		d.logger.InfoContext(ctx, "no changes", slog.String("domain", d.ref.Domain), slog.String("kind", string(kind)))
		return false, nil
	}
	saved, err := d.store.Save(ctx, d.ref, next, state.Meta{ETag: meta.ETag, Extra: d.layout()})
	if err != nil {
		return false, err
	}
	d.logger.DebugContext(ctx, "snapshot saved",
		slog.String("domain", d.ref.Domain),
		slog.String("snapshot_id", saved.SnapshotID),
		slog.Int("records", statemapLen(next)),
	)
	return true, nil
}

func (d *dataset[M, V]) load(ctx context.Context) (M, state.Meta, error) {
	current, meta, ok, err := d.store.Load(ctx, d.ref)
	if err != nil {
		return nil, state.Meta{}, err
	}
	if !ok {
		return M{}, state.Meta{}, nil
	}
	if stored := meta.Extra["keys"]; stored != "" && stored != strings.Join(d.keys, ",") {
		return nil, state.Meta{}, fmt.Errorf("domain %q is keyed by %q, not %q", d.ref.Domain, stored, strings.Join(d.keys, ","))
	}
	return current, meta, nil
}

func (d *dataset[M, V]) layout() map[string]string {
	return map[string]string{
		"depth": strconv.Itoa(d.cfg.Depth),
		"keys":  strings.Join(d.keys, ","),
	}
}

func statemapLen(m any) int {
	if counter, ok := m.(interface{ Len() int }); ok {
		return counter.Len()
	}
	return 0
}

// missingIDSetter assigns a UUID to field only when the record has none.
func missingIDSetter(field string) statemap.IDFunc[record] {
	assign := statemap.FieldIDSetter(field, statemap.UUIDGenerator[record]())
	return func(item record) record {
		if value, ok := item[field]; ok && value != nil && value != "" {
			return item
		}
		if item == nil {
			item = record{}
		}
		return assign(item)
	}
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		for _, part := range strings.Split(key, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}
