// Package statemap keeps normalized collections of records in keyed maps
// addressed by one, two, or three key levels.
//
// Mutating operations (Upsert, Replace, Remove) never touch the map they are
// given: they deep-clone it, apply the change to the clone, and return the
// clone. Replace additionally returns the original map value when the result
// is structurally equal to it, so consumers can detect changes by identity
// (see Same).
//
// Absence is never an error: lookups on missing paths report false, removals
// of missing records are skipped, and nil maps are treated as empty.
package statemap

import (
	"reflect"

	"github.com/goliatone/go-statemap/clone"
)

// Map is a one level keyed map: key -> record.
type Map[S any] map[Key]S

// Map2D partitions records by two keys: key1 -> key2 -> record.
type Map2D[S any] map[Key]Map[S]

// Map3D partitions records by three keys: key1 -> key2 -> key3 -> record.
type Map3D[S any] map[Key]Map2D[S]

// level is implemented by every map dimension. Paths whose length does not
// match the dimension never resolve.
type level[S any] interface {
	depth() int
	getPath(path Path) (S, bool)
	setPath(path Path, value S, fill bool) bool
	deletePath(path Path) bool
	clearPath(prefix Path, fill bool) bool
}

var (
	_ level[any] = Map[any]{}
	_ level[any] = Map2D[any]{}
	_ level[any] = Map3D[any]{}
)

func (m Map[S]) depth() int { return 1 }

func (m Map[S]) getPath(path Path) (S, bool) {
	var zero S
	if m == nil || len(path) != 1 {
		return zero, false
	}
	value, ok := m[path[0]]
	return value, ok
}

func (m Map[S]) setPath(path Path, value S, fill bool) bool {
	if m == nil || len(path) != 1 {
		return false
	}
	if _, ok := m[path[0]]; !ok && !fill {
		return false
	}
	m[path[0]] = value
	return true
}

func (m Map[S]) deletePath(path Path) bool {
	if m == nil || len(path) != 1 {
		return false
	}
	if _, ok := m[path[0]]; !ok {
		return false
	}
	delete(m, path[0])
	return true
}

func (m Map[S]) clearPath(prefix Path, _ bool) bool {
	if len(prefix) != 0 {
		return false
	}
	for key := range m {
		delete(m, key)
	}
	return true
}

func (m Map2D[S]) depth() int { return 2 }

func (m Map2D[S]) getPath(path Path) (S, bool) {
	var zero S
	if m == nil || len(path) != 2 {
		return zero, false
	}
	inner, ok := m[path[0]]
	if !ok {
		return zero, false
	}
	return inner.getPath(path[1:])
}

func (m Map2D[S]) setPath(path Path, value S, fill bool) bool {
	if m == nil || len(path) != 2 {
		return false
	}
	inner, ok := m[path[0]]
	if !ok || inner == nil {
		if !fill {
			return false
		}
		inner = Map[S]{}
		m[path[0]] = inner
	}
	return inner.setPath(path[1:], value, fill)
}

func (m Map2D[S]) deletePath(path Path) bool {
	if m == nil || len(path) != 2 {
		return false
	}
	inner, ok := m[path[0]]
	if !ok {
		return false
	}
	return inner.deletePath(path[1:])
}

func (m Map2D[S]) clearPath(prefix Path, fill bool) bool {
	switch len(prefix) {
	case 0:
		for key := range m {
			delete(m, key)
		}
		return true
	case 1:
		if _, ok := m[prefix[0]]; !ok && !fill {
			return false
		}
		m[prefix[0]] = Map[S]{}
		return true
	default:
		return false
	}
}

func (m Map3D[S]) depth() int { return 3 }

func (m Map3D[S]) getPath(path Path) (S, bool) {
	var zero S
	if m == nil || len(path) != 3 {
		return zero, false
	}
	inner, ok := m[path[0]]
	if !ok {
		return zero, false
	}
	return inner.getPath(path[1:])
}

func (m Map3D[S]) setPath(path Path, value S, fill bool) bool {
	if m == nil || len(path) != 3 {
		return false
	}
	inner, ok := m[path[0]]
	if !ok || inner == nil {
		if !fill {
			return false
		}
		inner = Map2D[S]{}
		m[path[0]] = inner
	}
	return inner.setPath(path[1:], value, fill)
}

func (m Map3D[S]) deletePath(path Path) bool {
	if m == nil || len(path) != 3 {
		return false
	}
	inner, ok := m[path[0]]
	if !ok {
		return false
	}
	return inner.deletePath(path[1:])
}

func (m Map3D[S]) clearPath(prefix Path, fill bool) bool {
	switch len(prefix) {
	case 0:
		for key := range m {
			delete(m, key)
		}
		return true
	case 1:
		if _, ok := m[prefix[0]]; !ok && !fill {
			return false
		}
		m[prefix[0]] = Map2D[S]{}
		return true
	case 2:
		inner, ok := m[prefix[0]]
		if !ok || inner == nil {
			if !fill {
				return false
			}
			inner = Map2D[S]{}
			m[prefix[0]] = inner
		}
		return inner.clearPath(prefix[1:], fill)
	default:
		return false
	}
}

// Lookup returns the record stored at path.
func (m Map[S]) Lookup(path Path) (S, bool) { return m.getPath(path) }

// Lookup returns the record stored at path.
func (m Map2D[S]) Lookup(path Path) (S, bool) { return m.getPath(path) }

// Lookup returns the record stored at path.
func (m Map3D[S]) Lookup(path Path) (S, bool) { return m.getPath(path) }

// Len counts the records stored in the map.
func (m Map[S]) Len() int { return len(m) }

// Len counts the records stored across all partitions.
func (m Map2D[S]) Len() int {
	total := 0
	for _, inner := range m {
		total += inner.Len()
	}
	return total
}

// Len counts the records stored across all partitions.
func (m Map3D[S]) Len() int {
	total := 0
	for _, inner := range m {
		total += inner.Len()
	}
	return total
}

// Same reports whether a and b are the same map value (not merely equal).
// Replace returns its input unchanged when nothing changed; Same is how
// callers detect that.
func Same[M ~map[Key]V, V any](a, b M) bool {
	return reflect.ValueOf(a).UnsafePointer() == reflect.ValueOf(b).UnsafePointer()
}

func cloneOrEmpty[M ~map[Key]V, V any](state M) M {
	if state == nil {
		return M{}
	}
	return clone.Clone(state)
}
