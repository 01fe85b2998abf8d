package statemap

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKeyConfig reports a key configuration that cannot address a map.
var ErrInvalidKeyConfig = errors.New("statemap: invalid key configuration")

// MaxDepth is the deepest nesting supported (Map3D).
const MaxDepth = 3

// KeyFunc extracts the ordered key values (one per level) from a record.
type KeyFunc[S any] func(item S) []any

// IDFunc returns item with a generated identifier assigned into its last key
// level. It runs before the record's path is derived.
type IDFunc[S any] func(item S) S

// KeyConfig describes how records of type S are addressed inside a map.
type KeyConfig[S any] struct {
	Depth    int
	Keys     KeyFunc[S]
	CreateID IDFunc[S]
}

// KeyOption configures a KeyConfig.
type KeyOption[S any] func(*KeyConfig[S])

// WithCreateID assigns fn as the synthetic id generator.
func WithCreateID[S any](fn IDFunc[S]) KeyOption[S] {
	return func(cfg *KeyConfig[S]) {
		cfg.CreateID = fn
	}
}

// NewKeyConfig builds a configuration for maps of the given depth.
func NewKeyConfig[S any](depth int, keys KeyFunc[S], opts ...KeyOption[S]) KeyConfig[S] {
	cfg := KeyConfig[S]{Depth: depth, Keys: keys}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// FieldKeyConfig builds a configuration keyed by record field names, one per
// level, e.g. FieldKeyConfig[Item]([]string{"Year", "ID"}).
func FieldKeyConfig[S any](fields []string, opts ...KeyOption[S]) KeyConfig[S] {
	return NewKeyConfig(len(fields), FieldKeys[S](fields...), opts...)
}

// Validate reports configurations whose depth is out of range or that lack an
// extractor.
func (c KeyConfig[S]) Validate() error {
	if c.Depth < 1 || c.Depth > MaxDepth {
		return fmt.Errorf("%w: depth %d outside 1..%d", ErrInvalidKeyConfig, c.Depth, MaxDepth)
	}
	if c.Keys == nil {
		return fmt.Errorf("%w: key extractor is nil", ErrInvalidKeyConfig)
	}
	return nil
}

// Path returns the coerced key path for item, padded with EmptyKey or
// truncated so its length equals Depth.
func (c KeyConfig[S]) Path(item S) Path {
	depth := c.Depth
	if depth < 1 {
		depth = 1
	}
	path := make(Path, depth)
	if c.Keys == nil {
		return path
	}
	values := c.Keys(item)
	for i := 0; i < depth && i < len(values); i++ {
		path[i] = CoerceKey(values[i])
	}
	return path
}

func (c KeyConfig[S]) assignID(item S) S {
	if c.CreateID == nil {
		return item
	}
	return c.CreateID(item)
}

// FieldKeys returns a KeyFunc reading the named fields from struct records
// (by Go field name or json tag) or from map records with string keys. Missing
// fields produce nil, which coerces to EmptyKey.
func FieldKeys[S any](fields ...string) KeyFunc[S] {
	names := append([]string(nil), fields...)
	return func(item S) []any {
		values := make([]any, len(names))
		for i, name := range names {
			if value, ok := lookupField(reflect.ValueOf(item), name); ok {
				values[i] = value.Interface()
			}
		}
		return values
	}
}

// FieldIDSetter returns an IDFunc that writes gen(item) into field. Struct
// values are copied before the write; pointer and map records are written in
// place.
func FieldIDSetter[S any](field string, gen func(item S) any) IDFunc[S] {
	return func(item S) S {
		if gen == nil {
			return item
		}
		value := gen(item)
		assignField(reflect.ValueOf(&item).Elem(), field, value)
		return item
	}
}

// UUIDGenerator returns a generator producing random UUID strings.
func UUIDGenerator[S any]() func(item S) any {
	return func(S) any {
		return uuid.NewString()
	}
}

func lookupField(rv reflect.Value, name string) (reflect.Value, bool) {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return reflect.Value{}, false
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		value := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !value.IsValid() {
			return reflect.Value{}, false
		}
		return value, true
	case reflect.Struct:
		index, ok := fieldIndex(rv.Type(), name)
		if !ok {
			return reflect.Value{}, false
		}
		return rv.FieldByIndex(index), true
	default:
		return reflect.Value{}, false
	}
}

func assignField(rv reflect.Value, name string, value any) bool {
	// rv is addressable; walk through pointers and interfaces.
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		if rv.Kind() == reflect.Interface {
			// Interface contents are not addressable; only maps can be written.
			inner := rv.Elem()
			if inner.Kind() == reflect.Map || inner.Kind() == reflect.Pointer {
				return assignField(inner, name, value)
			}
			return false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() || rv.Type().Key().Kind() != reflect.String {
			return false
		}
		converted, ok := convertTo(value, rv.Type().Elem())
		if !ok {
			return false
		}
		rv.SetMapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()), converted)
		return true
	case reflect.Struct:
		index, ok := fieldIndex(rv.Type(), name)
		if !ok {
			return false
		}
		field := rv.FieldByIndex(index)
		if !field.CanSet() {
			return false
		}
		converted, ok := convertTo(value, field.Type())
		if !ok {
			return false
		}
		field.Set(converted)
		return true
	default:
		return false
	}
}

func fieldIndex(t reflect.Type, name string) ([]int, bool) {
	if field, ok := t.FieldByName(name); ok && field.IsExported() {
		return field.Index, true
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := strings.Split(field.Tag.Get("json"), ",")[0]
		if tag != "" && tag == name {
			return field.Index, true
		}
	}
	return nil, false
}

func convertTo(value any, target reflect.Type) (reflect.Value, bool) {
	if value == nil {
		return reflect.Zero(target), true
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(target) {
		return rv, true
	}
	if target.Kind() == reflect.String {
		return reflect.ValueOf(string(CoerceKey(value))).Convert(target), true
	}
	if rv.Type().ConvertibleTo(target) && rv.Kind() != reflect.String {
		return rv.Convert(target), true
	}
	return reflect.Value{}, false
}
