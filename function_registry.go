package statemap

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrFunctionNotFound reports a call to a name nobody registered.
	ErrFunctionNotFound = errors.New("statemap: function not registered")
	// ErrFunctionExists reports a second registration under the same name.
	ErrFunctionExists = errors.New("statemap: function already registered")
)

// Function is a helper callable from rule expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry holds rule helpers. Names are case insensitive and stored
// lower cased, which is also how the expr engine exposes them.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{funcs: map[string]Function{}}
}

// NewKeyFunctionRegistry returns a registry preloaded with the key helpers:
// key(v) coerces a value to its map key, tempkey(parts...) builds a
// temporary key and path(values...) joins coerced keys with "/".
func NewKeyFunctionRegistry() *FunctionRegistry {
	r := NewFunctionRegistry()
	r.funcs["key"] = func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("statemap: key expects 1 argument, got %d", len(args))
		}
		return string(CoerceKey(args[0])), nil
	}
	r.funcs["tempkey"] = func(args ...any) (any, error) {
		return TemporaryKey(args...), nil
	}
	r.funcs["path"] = func(args ...any) (any, error) {
		path := CoercePath(args...)
		parts := make([]string, len(path))
		for i, key := range path {
			parts[i] = string(key)
		}
		return strings.Join(parts, "/"), nil
	}
	return r
}

func canonicalFunctionName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := canonicalFunctionName(name)
	switch {
	case key == "":
		return fmt.Errorf("statemap: function name must not be empty")
	case fn == nil:
		return fmt.Errorf("statemap: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = map[string]Function{}
	}
	if _, taken := r.funcs[key]; taken {
		return fmt.Errorf("%w: %q", ErrFunctionExists, name)
	}
	r.funcs[key] = fn
	return nil
}

// Clone copies the registry so evaluators do not observe later
// registrations.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &FunctionRegistry{funcs: make(map[string]Function, len(r.funcs))}
	for name, fn := range r.funcs {
		out.funcs[name] = fn
	}
	return out
}

func (r *FunctionRegistry) lookup(name string) Function {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.funcs[canonicalFunctionName(name)]
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	fn := r.lookup(name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	return fn(args...)
}

// Names lists the registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
