package bongo

import (
	"reflect"
	"sync"
)

// Registry maps collection names and Go types to document kinds. Entries
// are added by Register and never removed.
type Registry struct {
	mu     sync.RWMutex
	kinds  []*Kind
	byName map[string]*Kind
	byType map[reflect.Type]*Kind
}

func newRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Kind),
		byType: make(map[reflect.Type]*Kind),
	}
}

func (reg *Registry) register(k *Kind) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if prev := reg.byName[k.name]; prev != nil {
		return configErrf(k.name, k.typ, ErrDuplicateCollection, "already defined by %v", prev.typ)
	}
	if prev := reg.byType[k.typ]; prev != nil {
		return configErrf(k.name, k.typ, ErrDuplicateType, "already bound to %q", prev.name)
	}
	reg.kinds = append(reg.kinds, k)
	reg.byName[k.name] = k
	reg.byType[k.typ] = k
	return nil
}

// Lookup returns the kind registered for a collection name.
func (reg *Registry) Lookup(collection string) (*Kind, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	k, found := reg.byName[collection]
	return k, found
}

// KindOf returns the kind of a document type, given either the struct type
// or a pointer to it.
func (reg *Registry) KindOf(typ reflect.Type) (*Kind, bool) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	k, found := reg.byType[typ]
	return k, found
}

// Kinds returns every registered kind in definition order.
func (reg *Registry) Kinds() []*Kind {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return append([]*Kind(nil), reg.kinds...)
}
