// Package clone produces deep copies of arbitrary values using reflection. It
// backs the copy-on-write discipline of the state map operations: every
// mutating operation works on a clone and never touches the caller's value.
package clone

import "reflect"

// Clone returns a deep copy of value. Maps, slices, pointers, arrays, and
// exported struct fields are copied recursively; unexported struct fields are
// copied shallowly.
func Clone[T any](value T) T {
	var zero T
	cloned := cloneValue(reflect.ValueOf(value))
	if !cloned.IsValid() {
		return zero
	}
	target := reflect.TypeOf(&zero).Elem()
	if cloned.Type() != target {
		// Interface-typed T: the clone carries the dynamic type.
		result := reflect.New(target).Elem()
		result.Set(cloned)
		return result.Interface().(T)
	}
	return cloned.Interface().(T)
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out
	case reflect.Struct:
		clone := reflect.New(v.Type()).Elem()
		clone.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := clone.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(cloneValue(v.Field(i)))
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return v
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
