package statemap

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Key is the canonical map key for one level of a state map.
type Key string

// EmptyKey is the sentinel produced for nil or missing key values. Lookups
// against it simply miss.
const EmptyKey Key = ""

// Path is an ordered tuple of keys addressing a location in a nested map.
type Path []Key

// String renders the path with "/" separators.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, key := range p {
		parts[i] = string(key)
	}
	return strings.Join(parts, "/")
}

// CoerceKey normalizes value into a Key. Strings are used as is, numbers use
// their shortest decimal form, nil values map to EmptyKey.
func CoerceKey(value any) Key {
	switch typed := value.(type) {
	case nil:
		return EmptyKey
	case Key:
		return typed
	case string:
		return Key(typed)
	case int:
		return Key(strconv.Itoa(typed))
	case int8:
		return Key(strconv.FormatInt(int64(typed), 10))
	case int16:
		return Key(strconv.FormatInt(int64(typed), 10))
	case int32:
		return Key(strconv.FormatInt(int64(typed), 10))
	case int64:
		return Key(strconv.FormatInt(typed, 10))
	case uint:
		return Key(strconv.FormatUint(uint64(typed), 10))
	case uint8:
		return Key(strconv.FormatUint(uint64(typed), 10))
	case uint16:
		return Key(strconv.FormatUint(uint64(typed), 10))
	case uint32:
		return Key(strconv.FormatUint(uint64(typed), 10))
	case uint64:
		return Key(strconv.FormatUint(typed, 10))
	case float32:
		return Key(strconv.FormatFloat(float64(typed), 'f', -1, 32))
	case float64:
		return Key(strconv.FormatFloat(typed, 'f', -1, 64))
	case bool:
		return Key(strconv.FormatBool(typed))
	case fmt.Stringer:
		if isNilPointer(typed) {
			return EmptyKey
		}
		return Key(typed.String())
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return EmptyKey
		}
		return CoerceKey(rv.Elem().Interface())
	}
	switch rv.Kind() {
	case reflect.String:
		return Key(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Key(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Key(strconv.FormatUint(rv.Uint(), 10))
	}
	return Key(fmt.Sprint(value))
}

// CoercePath coerces each value into a Key.
func CoercePath(values ...any) Path {
	path := make(Path, len(values))
	for i, value := range values {
		path[i] = CoerceKey(value)
	}
	return path
}

// TemporaryKey joins the coerced parts with "-", e.g. ("2024", 5) -> "2024-5".
// It is handy for building client-side ids before a record has a stable one.
func TemporaryKey(parts ...any) string {
	out := make([]string, len(parts))
	for i, part := range parts {
		out[i] = string(CoerceKey(part))
	}
	return strings.Join(out, "-")
}

func isNilPointer(value any) bool {
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
