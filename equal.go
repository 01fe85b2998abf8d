package statemap

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
)

var equalOptions = []cmp.Option{
	cmp.FilterValues(emptyMaps, cmp.Comparer(func(_, _ any) bool { return true })),
	cmp.Exporter(func(reflect.Type) bool { return true }),
}

// emptyMaps matches two maps of the same type that both have no entries.
func emptyMaps(x, y any) bool {
	vx, vy := reflect.ValueOf(x), reflect.ValueOf(y)
	return vx.IsValid() && vy.IsValid() &&
		vx.Type() == vy.Type() &&
		vx.Kind() == reflect.Map &&
		vx.Len() == 0 && vy.Len() == 0
}

// Equal reports whether a and b hold structurally equal contents. Nil and
// empty maps compare equal, while a nil slice differs from an empty one so
// Replace keeps a caller's []T{}. Unexported record fields take part in the
// comparison.
func Equal(a, b any) bool {
	return cmp.Equal(a, b, equalOptions...)
}

// Diff renders a human readable difference between a and b, or "" when equal.
func Diff(a, b any) string {
	return cmp.Diff(a, b, equalOptions...)
}
