// Package driver defines the contract between bongo and a document database.
//
// A driver exposes named collections of records. bongo never talks to a
// database directly; it goes through Database, Collection and Cursor. The
// memdb, boltdb and mongodb packages provide implementations.
package driver

import (
	"context"
	"errors"
	"fmt"
)

// IDField is the name of the identifier field. It is absent from a record
// until the first successful save.
const IDField = "_id"

// Record is a raw document. Values are scalars, nested records
// (map[string]any), sequences ([]any) or Ref values.
type Record = map[string]any

// Filter is a query in the Mongo filter language. A nil or empty filter
// matches every record.
type Filter = map[string]any

type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return fmt.Sprintf("invalid direction %d", int(d))
	}
}

// SortKey is one element of an ordering.
type SortKey struct {
	Field string
	Dir   Direction
}

func Asc(field string) SortKey  { return SortKey{field, Ascending} }
func Desc(field string) SortKey { return SortKey{field, Descending} }

var (
	// ErrNotFound is returned by Collection.FindOne when nothing matches.
	ErrNotFound = errors.New("record not found")

	// ErrCursorStarted is returned when a cursor is modified after
	// iteration has begun.
	ErrCursorStarted = errors.New("cursor already started")

	ErrCursorClosed = errors.New("cursor closed")
	ErrClosed       = errors.New("database closed")
	ErrInvalidID    = errors.New("invalid record id")
)

// Database is a handle to one physical database.
type Database interface {
	Name() string

	// Collection returns a handle for the named collection. Collections are
	// created implicitly on first write.
	Collection(name string) Collection

	Close(ctx context.Context) error
}

// Collection is a handle to a single collection. Records passed in and
// returned are owned by the caller; implementations copy them.
type Collection interface {
	Name() string

	// Find returns a cursor over the matching records. The query is
	// executed lazily, so Sort, Skip and Limit may be applied before the
	// first call to Next.
	Find(ctx context.Context, filter Filter) (Cursor, error)

	// FindOne returns the first matching record in the given order, or
	// ErrNotFound.
	FindOne(ctx context.Context, filter Filter, sort []SortKey) (Record, error)

	// Remove deletes every matching record. An empty filter deletes
	// everything in the collection.
	Remove(ctx context.Context, filter Filter) (int, error)

	// Save inserts rec when it has no IDField, and replaces (or upserts)
	// the stored record otherwise. It returns the record's id; it does not
	// modify rec.
	Save(ctx context.Context, rec Record) (any, error)

	Count(ctx context.Context, filter Filter) (int, error)

	EnsureIndex(ctx context.Context, keys []SortKey) error
}

// Cursor iterates over query results.
//
// Sort, Skip and Limit modify the cursor in place and fail with
// ErrCursorStarted once Next has been called. Skip and Limit set absolute
// values; a limit of 0 means no limit.
type Cursor interface {
	Sort(keys ...SortKey) error
	Skip(n int) error
	Limit(n int) error

	// Clone returns an unstarted copy with the same query, ordering and
	// window.
	Clone() Cursor

	// Count returns the number of records the cursor would yield,
	// honoring skip and limit.
	Count(ctx context.Context) (int, error)

	Next(ctx context.Context) bool
	Record() Record
	Err() error
	Close(ctx context.Context) error
}
