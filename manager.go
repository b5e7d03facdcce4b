package bongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/andreyvit/bongo/driver"
)

// Manager is the query entry point of a document type. It resolves the
// collection from the session binding on every call, so rebinding the
// session takes effect immediately.
type Manager[T any] struct {
	kind *Kind
}

func (m *Manager[T]) Kind() *Kind {
	return m.kind
}

// Name returns the collection name.
func (m *Manager[T]) Name() string {
	return m.kind.name
}

func (m *Manager[T]) Session() *Session {
	return m.kind.sess
}

// Collection returns the driver collection handle for the currently bound
// database, for driver features the manager does not cover.
func (m *Manager[T]) Collection(ctx context.Context) (driver.Collection, error) {
	return m.kind.sess.collection(m.kind.name)
}

func (m *Manager[T]) wrap(rec driver.Record) *T {
	t := new(T)
	self := any(t).(Documenter)
	self.doc().init(rec, m.kind, self)
	return t
}

// New returns an unsaved document holding a copy of fields.
func (m *Manager[T]) New(fields map[string]any) *T {
	rec := make(driver.Record, len(fields))
	for k, v := range fields {
		rec[k] = unwrapProxy(v)
	}
	return m.wrap(rec)
}

// Wrap returns a document backed by raw itself, not a copy.
func (m *Manager[T]) Wrap(raw driver.Record) *T {
	return m.wrap(raw)
}

// Create is New followed by Save.
func (m *Manager[T]) Create(ctx context.Context, fields map[string]any) (*T, error) {
	t := m.New(fields)
	if err := m.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// All returns every document of the collection in the default ordering.
func (m *Manager[T]) All(ctx context.Context) (*Cursor[T], error) {
	return m.Find(ctx, nil)
}

// Find returns the documents matching filter in the default ordering. A nil
// or empty filter matches every document. Saved documents may be used as
// filter values and match references to them.
func (m *Manager[T]) Find(ctx context.Context, filter driver.Filter) (*Cursor[T], error) {
	coll, filter, err := m.prepare(filter)
	if err != nil {
		return nil, err
	}
	raw, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("bongo: %s: %w", m.kind.name, err)
	}
	return newCursor(m, raw), nil
}

// FindOne returns the first document matching filter, ordered by sort or,
// when sort is empty, by the default ordering. Returns nil, nil when no
// document matches.
func (m *Manager[T]) FindOne(ctx context.Context, filter driver.Filter, sort ...driver.SortKey) (*T, error) {
	coll, filter, err := m.prepare(filter)
	if err != nil {
		return nil, err
	}
	if len(sort) == 0 {
		sort = m.kind.ordering
	}
	rec, err := coll.FindOne(ctx, filter, sort)
	if errors.Is(err, driver.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("bongo: %s: %w", m.kind.name, err)
	}
	return m.wrap(rec), nil
}

// Get returns the document with the given id, or nil, nil if there is none.
func (m *Manager[T]) Get(ctx context.Context, id any) (*T, error) {
	return m.FindOne(ctx, driver.Filter{driver.IDField: id})
}

func (m *Manager[T]) Count(ctx context.Context, filter driver.Filter) (int, error) {
	coll, filter, err := m.prepare(filter)
	if err != nil {
		return 0, err
	}
	n, err := coll.Count(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("bongo: %s: %w", m.kind.name, err)
	}
	return n, nil
}

// Remove deletes the documents matching filter and returns how many were
// removed.
//
// A nil or empty filter removes EVERY document in the collection.
func (m *Manager[T]) Remove(ctx context.Context, filter driver.Filter) (int, error) {
	coll, filter, err := m.prepare(filter)
	if err != nil {
		return 0, err
	}
	n, err := coll.Remove(ctx, filter)
	if err != nil {
		return n, fmt.Errorf("bongo: %s: %w", m.kind.name, err)
	}
	sess := m.kind.sess
	if sess.verbose {
		sess.logger.LogAttrs(ctx, slog.LevelDebug, "bongo.remove", slog.String("coll", m.kind.name), slog.Int("removed", n))
	}
	return n, nil
}

// Save persists doc. Nested documents are stored as references; the ones
// without an id are saved first, depth-first, each with its own collection.
// There is no transaction: if a nested save fails, documents saved before
// it stay saved. The id assigned on first save is stored into the document
// and kept by later saves.
func (m *Manager[T]) Save(ctx context.Context, doc *T) error {
	d := any(doc).(Documenter).doc()
	if d.kind == nil {
		d.init(d.rec, m.kind, any(doc).(Documenter))
	}
	_, err := d.kind.save(ctx, d.record())
	return err
}

// SaveRecord saves a raw record the way Save saves a document, and returns
// the id, which is also stored into rec.
func (m *Manager[T]) SaveRecord(ctx context.Context, rec driver.Record) (any, error) {
	return m.kind.save(ctx, rec)
}

// Dereference fetches the document a reference points at, which may belong
// to any type registered on the session.
func (m *Manager[T]) Dereference(ctx context.Context, ref driver.Ref) (Documenter, error) {
	return m.kind.sess.Dereference(ctx, ref)
}

func (m *Manager[T]) EnsureIndex(ctx context.Context, keys ...driver.SortKey) error {
	coll, err := m.kind.sess.collection(m.kind.name)
	if err != nil {
		return err
	}
	if err := coll.EnsureIndex(ctx, keys); err != nil {
		return fmt.Errorf("bongo: %s: ensure index %v: %w", m.kind.name, keys, err)
	}
	return nil
}

// EnsureIndexes creates the indexes declared with WithIndex.
func (m *Manager[T]) EnsureIndexes(ctx context.Context) error {
	for _, keys := range m.kind.indexes {
		if err := m.EnsureIndex(ctx, keys...); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager[T]) prepare(filter driver.Filter) (driver.Collection, driver.Filter, error) {
	coll, err := m.kind.sess.collection(m.kind.name)
	if err != nil {
		return nil, nil, err
	}
	filter, err = refFilter(filter)
	if err != nil {
		return nil, nil, fmt.Errorf("bongo: %s: %w", m.kind.name, err)
	}
	return coll, filter, nil
}
