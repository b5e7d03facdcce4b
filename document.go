package bongo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/andreyvit/bongo/driver"
)

// Documenter is implemented by pointers to struct types embedding Document.
type Documenter interface {
	doc() *Document
}

// Document is embedded into application document types:
//
//	type Article struct {
//		bongo.Document
//	}
//
//	func (a *Article) URL() string {
//		return "https://example.com/blog/" + a.Get("slug").(string) + "/"
//	}
//
// A document wraps one record for its whole lifetime. Instances are built
// by a Manager (New, Wrap, query results) and are not safe for concurrent
// mutation.
type Document struct {
	rec  driver.Record
	kind *Kind
	self Documenter
}

func (d *Document) doc() *Document {
	return d
}

func (d *Document) init(rec driver.Record, kind *Kind, self Documenter) {
	if rec == nil {
		rec = make(driver.Record)
	}
	d.rec = rec
	d.kind = kind
	d.self = self
}

func (d *Document) record() driver.Record {
	if d.rec == nil {
		d.rec = make(driver.Record)
	}
	return d.rec
}

// Kind returns the document type definition, or nil for a zero Document
// that no manager has built.
func (d *Document) Kind() *Kind {
	return d.kind
}

// Raw returns the backing record. Nested documents that have not been saved
// through this document yet appear as documents, not references.
func (d *Document) Raw() driver.Record {
	return d.record()
}

// Attrs exposes the record as a Map.
func (d *Document) Attrs() Map {
	return Map{d.record()}
}

func (d *Document) ID() any {
	return d.rec[driver.IDField]
}

func (d *Document) HasID() bool {
	return d.rec[driver.IDField] != nil
}

// Get returns the value of a field, wrapping nested mappings and sequences
// into Map and List. An absent field yields nil. References are returned
// as driver.Ref until resolved with Resolve.
func (d *Document) Get(name string) any {
	return wrap(d.rec[name])
}

func (d *Document) Lookup(name string) (any, bool) {
	v, found := d.rec[name]
	return wrap(v), found
}

// Item returns the stored value of a field without wrapping it, failing
// with a KeyError when the field is absent. Any field name works, including
// ones that are not Go identifiers.
func (d *Document) Item(name string) (any, error) {
	v, found := d.rec[name]
	if !found {
		return nil, &KeyError{name}
	}
	return v, nil
}

// Set stores a value. Map and List values are unwrapped; documents are
// stored as is and turned into references when the owner is saved.
func (d *Document) Set(name string, value any) {
	d.record()[name] = unwrapProxy(value)
}

func (d *Document) Delete(name string) error {
	if _, found := d.rec[name]; !found {
		return &KeyError{name}
	}
	delete(d.rec, name)
	return nil
}

// Update merges patch into the record.
func (d *Document) Update(patch map[string]any) {
	rec := d.record()
	for k, v := range patch {
		rec[k] = unwrapProxy(v)
	}
}

// Save persists the document into its collection. See Manager.Save.
func (d *Document) Save(ctx context.Context) error {
	if d.kind == nil {
		return ErrUnbound
	}
	_, err := d.kind.save(ctx, d.record())
	return err
}

// Resolve returns the document stored in a reference field, fetching it on
// first access and keeping the fetched document in the record so later
// calls skip the database. An absent or nil field resolves to nil.
func (d *Document) Resolve(ctx context.Context, name string) (Documenter, error) {
	v, err := d.resolveValue(ctx, d.rec[name], func(target Documenter) {
		d.rec[name] = target
	})
	if err != nil {
		return nil, err
	}
	return asTarget(v, name)
}

// ResolvePath is Resolve for a reference nested in maps and lists. Path
// segments are separated by dots; a numeric segment indexes a list.
// References met on the way are resolved too, and each fetched document
// replaces its reference in the map or list holding it.
//
//	editor, err := article.ResolvePath(ctx, "meta.editor")
//	first, err := article.ResolvePath(ctx, "coauthors.0")
func (d *Document) ResolvePath(ctx context.Context, path string) (Documenter, error) {
	var cont any = d.record()
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, set, err := pathChild(cont, part)
		if err != nil {
			return nil, fmt.Errorf("bongo: path %q: %w", path, err)
		}
		v, err = d.resolveValue(ctx, v, set)
		if err != nil {
			return nil, err
		}
		if i == len(parts)-1 {
			return asTarget(v, path)
		}
		switch v := v.(type) {
		case nil:
			return nil, nil
		case Documenter:
			cont = v.doc().record()
		default:
			cont = v
		}
	}
	panic("unreachable")
}

// pathChild returns the element of a map or list named by one path segment,
// along with a function that replaces it.
func pathChild(cont any, part string) (any, func(Documenter), error) {
	switch cont := cont.(type) {
	case map[string]any:
		return cont[part], func(target Documenter) {
			cont[part] = target
		}, nil
	case []any:
		i, err := strconv.Atoi(part)
		if err != nil {
			return nil, nil, &KeyError{part}
		}
		if i < 0 || i >= len(cont) {
			return nil, nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
		}
		return cont[i], func(target Documenter) {
			cont[i] = target
		}, nil
	default:
		return nil, nil, fmt.Errorf("%w (%T at %q)", ErrNotContainer, cont, part)
	}
}

// resolveValue fetches the document a reference value points at and hands
// it to store. Other values are returned as is.
func (d *Document) resolveValue(ctx context.Context, v any, store func(Documenter)) (any, error) {
	var ref driver.Ref
	switch v := v.(type) {
	case driver.Ref:
		ref = v
	case *driver.Ref:
		if v == nil {
			return nil, nil
		}
		ref = *v
	default:
		return v, nil
	}
	if d.kind == nil {
		return nil, ErrUnbound
	}
	target, err := d.kind.sess.Dereference(ctx, ref)
	if err != nil {
		return nil, err
	}
	store(target)
	return target, nil
}

func asTarget(v any, name string) (Documenter, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case Documenter:
		return v, nil
	default:
		return nil, fmt.Errorf("bongo: field %q: %w (%T)", name, ErrNotRef, v)
	}
}

// Self returns the application-level value that embeds this Document.
func (d *Document) Self() Documenter {
	if d.self != nil {
		return d.self
	}
	return d
}

func (d *Document) String() string {
	if d.kind == nil {
		return fmt.Sprint(map[string]any(d.rec))
	}
	return fmt.Sprintf("%s %v", d.kind.name, map[string]any(d.rec))
}

// Resolve resolves a reference field of owner and asserts its type.
func Resolve[T any](ctx context.Context, owner Documenter, name string) (*T, error) {
	target, err := owner.doc().Resolve(ctx, name)
	if err != nil || target == nil {
		return nil, err
	}
	t, ok := any(target).(*T)
	if !ok {
		var zero *T
		return nil, fmt.Errorf("bongo: field %q holds %T, wanted %T", name, target, zero)
	}
	return t, nil
}
