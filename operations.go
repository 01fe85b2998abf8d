package statemap

import "github.com/goliatone/go-statemap/clone"

// Upsert inserts or replaces items in a clone of state. Existing entries that
// do not share a full key path with an item are preserved; an item sharing a
// path replaces the stored record outright. A nil state is treated as empty.
func Upsert[S any](state Map[S], items []S, cfg KeyConfig[S]) Map[S] {
	out := cloneOrEmpty(state)
	upsertInto[S](out, items, cfg)
	return out
}

// Upsert2D is Upsert for two level maps.
func Upsert2D[S any](state Map2D[S], items []S, cfg KeyConfig[S]) Map2D[S] {
	out := cloneOrEmpty(state)
	upsertInto[S](out, items, cfg)
	return out
}

// Upsert3D is Upsert for three level maps.
func Upsert3D[S any](state Map3D[S], items []S, cfg KeyConfig[S]) Map3D[S] {
	out := cloneOrEmpty(state)
	upsertInto[S](out, items, cfg)
	return out
}

// Replace clears state, or only the branch addressed by keyValues, and loads
// items into it. A nil items slice leaves the cleared branch empty. When the
// result equals state the original map is returned unchanged.
//
// A one level map has no branches, so keyValues is ignored and the whole map
// is replaced.
func Replace[S any](state Map[S], items []S, cfg KeyConfig[S], _ ...any) Map[S] {
	if state == nil {
		state = Map[S]{}
	}
	return replaceIn(state, clone.Clone(state), items, cfg, nil)
}

// Replace2D is Replace for two level maps; keyValues may name one partition.
func Replace2D[S any](state Map2D[S], items []S, cfg KeyConfig[S], keyValues ...any) Map2D[S] {
	if state == nil {
		state = Map2D[S]{}
	}
	return replaceIn(state, clone.Clone(state), items, cfg, CoercePath(keyValues...))
}

// Replace3D is Replace for three level maps; keyValues may name one or two
// partition levels.
func Replace3D[S any](state Map3D[S], items []S, cfg KeyConfig[S], keyValues ...any) Map3D[S] {
	if state == nil {
		state = Map3D[S]{}
	}
	return replaceIn(state, clone.Clone(state), items, cfg, CoercePath(keyValues...))
}

// Remove deletes items from a clone of state. Items whose path does not
// resolve are skipped. Partitions emptied by the removal are kept. A nil state
// is returned as nil.
func Remove[S any](state Map[S], items []S, cfg KeyConfig[S]) Map[S] {
	if state == nil {
		return nil
	}
	out := clone.Clone(state)
	removeFrom[S](out, items, cfg)
	return out
}

// Remove2D is Remove for two level maps.
func Remove2D[S any](state Map2D[S], items []S, cfg KeyConfig[S]) Map2D[S] {
	if state == nil {
		return nil
	}
	out := clone.Clone(state)
	removeFrom[S](out, items, cfg)
	return out
}

// Remove3D is Remove for three level maps.
func Remove3D[S any](state Map3D[S], items []S, cfg KeyConfig[S]) Map3D[S] {
	if state == nil {
		return nil
	}
	out := clone.Clone(state)
	removeFrom[S](out, items, cfg)
	return out
}

func upsertInto[S any](target level[S], items []S, cfg KeyConfig[S]) {
	for _, item := range items {
		item = cfg.assignID(clone.Clone(item))
		target.setPath(cfg.Path(item), item, true)
	}
}

func removeFrom[S any](target level[S], items []S, cfg KeyConfig[S]) {
	for _, item := range items {
		target.deletePath(cfg.Path(item))
	}
}

func replaceIn[S any, M level[S]](state, cleared M, items []S, cfg KeyConfig[S], prefix Path) M {
	cleared.clearPath(prefix, false)
	if items == nil {
		return cleared
	}
	upsertInto[S](cleared, items, cfg)
	if Equal(state, cleared) {
		return state
	}
	return cleared
}
