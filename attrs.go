package bongo

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strconv"

	"github.com/andreyvit/bongo/internal/match"
)

// Map exposes a nested mapping by shared reference. Reads wrap nested
// mappings and sequences on every access; writes go straight into the
// wrapped map.
type Map struct {
	m map[string]any
}

// List exposes a nested sequence by shared reference.
type List struct {
	l []any
}

func WrapMap(m map[string]any) Map {
	return Map{m}
}

func WrapList(l []any) List {
	return List{l}
}

func wrap(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return Map{v}
	case []any:
		return List{v}
	default:
		return v
	}
}

// unwrap returns the data behind a proxy or a document, and v itself
// otherwise.
func unwrap(v any) any {
	switch v := v.(type) {
	case Map:
		return v.m
	case *Map:
		if v == nil {
			return nil
		}
		return v.m
	case List:
		return v.l
	case *List:
		if v == nil {
			return nil
		}
		return v.l
	case Documenter:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		return v.doc().rec
	default:
		return v
	}
}

// Equal reports whether a and b hold structurally equal data. Proxies and
// documents on either side compare by the data they wrap, and numbers
// compare by value regardless of their Go type.
func Equal(a, b any) bool {
	return match.EqualWith(a, b, unwrap)
}

func (p Map) Raw() map[string]any {
	return p.m
}

func (p Map) Len() int {
	return len(p.m)
}

// Get returns the value of name, wrapping nested mappings and sequences.
// Returns nil when name is absent.
func (p Map) Get(name string) any {
	return wrap(p.m[name])
}

func (p Map) Lookup(name string) (any, bool) {
	v, found := p.m[name]
	return wrap(v), found
}

func (p Map) Set(name string, value any) {
	p.m[name] = unwrapProxy(value)
}

func (p Map) Delete(name string) error {
	if _, found := p.m[name]; !found {
		return &KeyError{name}
	}
	delete(p.m, name)
	return nil
}

func (p Map) Map(name string) (Map, bool) {
	m, ok := p.m[name].(map[string]any)
	return Map{m}, ok
}

func (p Map) List(name string) (List, bool) {
	l, ok := p.m[name].([]any)
	return List{l}, ok
}

// Keys yields keys in sorted order.
func (p Map) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, k := range sortedKeys(p.m) {
			if !yield(k) {
				return
			}
		}
	}
}

// All yields key/value pairs in sorted key order, with nested values
// wrapped.
func (p Map) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range sortedKeys(p.m) {
			if !yield(k, wrap(p.m[k])) {
				return
			}
		}
	}
}

func (p Map) Equal(other any) bool {
	return Equal(p, other)
}

func (p Map) String() string {
	return fmt.Sprint(p.m)
}

func (p List) Raw() []any {
	return p.l
}

func (p List) Len() int {
	return len(p.l)
}

// Index returns the i-th element, wrapping nested mappings and sequences.
// Panics if i is out of range, like a slice index.
func (p List) Index(i int) any {
	return wrap(p.l[i])
}

func (p List) SetIndex(i int, value any) {
	p.l[i] = unwrapProxy(value)
}

// Lookup is Index that reports an out-of-range index as an error.
func (p List) Lookup(i int) (any, error) {
	if i < 0 || i >= len(p.l) {
		return nil, &KeyError{strconv.Itoa(i)}
	}
	return wrap(p.l[i]), nil
}

func (p List) Map(i int) (Map, bool) {
	if i < 0 || i >= len(p.l) {
		return Map{}, false
	}
	m, ok := p.l[i].(map[string]any)
	return Map{m}, ok
}

func (p List) List(i int) (List, bool) {
	if i < 0 || i >= len(p.l) {
		return List{}, false
	}
	l, ok := p.l[i].([]any)
	return List{l}, ok
}

func (p List) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i, v := range p.l {
			if !yield(i, wrap(v)) {
				return
			}
		}
	}
}

func (p List) Equal(other any) bool {
	return Equal(p, other)
}

func (p List) String() string {
	return fmt.Sprint(p.l)
}

// unwrapProxy strips Map and List wrappers but keeps documents, which are
// stored live and flattened into references on save.
func unwrapProxy(v any) any {
	switch v.(type) {
	case Map, *Map, List, *List:
		return unwrap(v)
	default:
		return v
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
