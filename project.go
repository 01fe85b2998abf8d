package statemap

import "sort"

// Projection configures how map contents are turned into values. All fields
// are optional.
//
// Pre filters stored records, Transform maps a record to T (receiving Context,
// typically other lookups the caller wants to join against), and Post filters
// the transformed values. Without Transform the record itself is used, which
// requires T to be S; records that cannot be asserted to T are skipped.
type Projection[S, T any] struct {
	Context   any
	Transform func(item S, context any) T
	Pre       func(item S) bool
	Post      func(item T) bool
}

func (p Projection[S, T]) apply(item S) (T, bool) {
	var zero T
	if p.Pre != nil && !p.Pre(item) {
		return zero, false
	}
	var mapped T
	if p.Transform != nil {
		mapped = p.Transform(item, p.Context)
	} else {
		value, ok := any(item).(T)
		if !ok {
			return zero, false
		}
		mapped = value
	}
	if p.Post != nil && !p.Post(mapped) {
		return zero, false
	}
	return mapped, true
}

// GetAsArray projects every record of m. Enumeration order is unspecified;
// sort the result when order matters.
func GetAsArray[S, T any](m Map[S], p Projection[S, T]) []T {
	out := make([]T, 0, len(m))
	for _, item := range m {
		if mapped, ok := p.apply(item); ok {
			out = append(out, mapped)
		}
	}
	return out
}

// GetAsArray2D projects the partition m[key].
func GetAsArray2D[S, T any](m Map2D[S], key any, p Projection[S, T]) []T {
	inner, ok := m[CoerceKey(key)]
	if !ok {
		return []T{}
	}
	return GetAsArray(inner, p)
}

// GetAsArray3D projects the partition m[key1][key2].
func GetAsArray3D[S, T any](m Map3D[S], key1, key2 any, p Projection[S, T]) []T {
	outer, ok := m[CoerceKey(key1)]
	if !ok {
		return []T{}
	}
	return GetAsArray2D(outer, key2, p)
}

// GetItem resolves a single record by key and applies Transform (Pre and Post
// are honoured as well). It reports false when the record is absent or
// filtered out.
func GetItem[S, T any](m Map[S], key any, p Projection[S, T]) (T, bool) {
	return getProjected[S, T](m, CoercePath(key), p)
}

// GetItem2D resolves a single record by its two keys.
func GetItem2D[S, T any](m Map2D[S], key1, key2 any, p Projection[S, T]) (T, bool) {
	return getProjected[S, T](m, CoercePath(key1, key2), p)
}

// GetItem3D resolves a single record by its three keys.
func GetItem3D[S, T any](m Map3D[S], key1, key2, key3 any, p Projection[S, T]) (T, bool) {
	return getProjected[S, T](m, CoercePath(key1, key2, key3), p)
}

func getProjected[S, T any](m level[S], path Path, p Projection[S, T]) (T, bool) {
	item, ok := m.getPath(path)
	if !ok {
		var zero T
		return zero, false
	}
	return p.apply(item)
}

// Items returns the records of m in unspecified order.
func Items[S any](m Map[S]) []S {
	return GetAsArray(m, Projection[S, S]{})
}

// SortedItems returns the records of m ordered by less.
func SortedItems[S any](m Map[S], less func(a, b S) bool) []S {
	items := Items(m)
	if less != nil {
		sort.SliceStable(items, func(i, j int) bool {
			return less(items[i], items[j])
		})
	}
	return items
}

// Filter returns a Projection that keeps records accepted by pre.
func Filter[S any](pre func(item S) bool) Projection[S, S] {
	return Projection[S, S]{Pre: pre}
}
