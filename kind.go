package bongo

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/andreyvit/bongo/driver"
)

type (
	SortKey = driver.SortKey
	Filter  = driver.Filter
	Ref     = driver.Ref
)

var (
	Asc  = driver.Asc
	Desc = driver.Desc
)

// Kind is the definition of a document type: its collection, default
// ordering and indexes.
type Kind struct {
	name     string
	typ      reflect.Type
	ordering []driver.SortKey
	indexes  [][]driver.SortKey
	sess     *Session
	wrap     func(rec driver.Record) Documenter
}

func (k *Kind) Collection() string {
	return k.name
}

func (k *Kind) Type() reflect.Type {
	return k.typ
}

func (k *Kind) Ordering() []driver.SortKey {
	return slices.Clone(k.ordering)
}

func (k *Kind) Indexes() [][]driver.SortKey {
	var result [][]driver.SortKey
	for _, idx := range k.indexes {
		result = append(result, slices.Clone(idx))
	}
	return result
}

func (k *Kind) Session() *Session {
	return k.sess
}

// New wraps a record into a new instance of the kind's document type.
func (k *Kind) New(rec driver.Record) Documenter {
	return k.wrap(rec)
}

func (k *Kind) String() string {
	return fmt.Sprintf("%s(%v)", k.name, k.typ)
}

func (k *Kind) LogValue() slog.Value {
	return slog.StringValue(k.name)
}

// Option configures a document type in Define and Register.
type Option func(k *Kind)

// WithOrdering sets the default ordering of query results. An explicit
// sort given to FindOne or Cursor.Sort overrides it.
func WithOrdering(keys ...driver.SortKey) Option {
	keys = slices.Clone(keys)
	return func(k *Kind) {
		k.ordering = keys
	}
}

// WithIndex declares an index created by Manager.EnsureIndexes.
func WithIndex(keys ...driver.SortKey) Option {
	keys = slices.Clone(keys)
	return func(k *Kind) {
		k.indexes = append(k.indexes, keys)
	}
}
