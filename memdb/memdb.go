// Package memdb is a transient in-memory driver, intended for tests and for
// applications that want the document API without persistence.
package memdb

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/andreyvit/bongo/driver"
	"github.com/andreyvit/bongo/internal/match"
	"github.com/andreyvit/bongo/internal/snapshot"
)

type Options struct {
	// Name is reported by DB.Name. Defaults to "memory".
	Name    string
	Logger  *slog.Logger
	Verbose bool
}

// DB holds collections in process memory. Records are copied on the way in
// and on the way out, so callers never share storage with the DB.
type DB struct {
	name    string
	logger  *slog.Logger
	verbose bool

	mu     sync.Mutex
	colls  map[string]*memCollection
	closed bool
}

var _ driver.Database = (*DB)(nil)

func New(opt Options) *DB {
	if opt.Name == "" {
		opt.Name = "memory"
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &DB{
		name:    opt.Name,
		logger:  opt.Logger,
		verbose: opt.Verbose,
		colls:   make(map[string]*memCollection),
	}
}

func (db *DB) Name() string {
	return db.name
}

func (db *DB) Collection(name string) driver.Collection {
	return &Collection{db: db, name: name}
}

// CollectionNames returns the names of collections that hold or held data.
func (db *DB) CollectionNames() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	names := make([]string, 0, len(db.colls))
	for name := range db.colls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (db *DB) Close(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	db.colls = nil
	return nil
}

// memCollection keeps records in insertion order, which is the natural order
// of query results.
type memCollection struct {
	recs    []driver.Record
	byID    map[any]int
	indexes [][]driver.SortKey
}

func (mc *memCollection) reindex() {
	clear(mc.byID)
	for i, rec := range mc.recs {
		mc.byID[rec[driver.IDField]] = i
	}
}

type Collection struct {
	db   *DB
	name string
}

var _ driver.Collection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.name
}

// withColl runs f under the DB lock. The collection is created on demand
// when create is set; otherwise f receives nil for a missing collection.
func (c *Collection) withColl(ctx context.Context, create bool, f func(mc *memCollection) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := c.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return driver.ErrClosed
	}
	mc := db.colls[c.name]
	if mc == nil && create {
		mc = &memCollection{byID: make(map[any]int)}
		db.colls[c.name] = mc
	}
	return f(mc)
}

func (c *Collection) load(filter driver.Filter) snapshot.LoadFunc {
	return func(ctx context.Context) ([]driver.Record, error) {
		var result []driver.Record
		err := c.withColl(ctx, false, func(mc *memCollection) error {
			if mc == nil {
				return nil
			}
			for _, rec := range mc.recs {
				ok, err := match.Match(filter, rec)
				if err != nil {
					return err
				}
				if ok {
					result = append(result, driver.CloneRecord(rec))
				}
			}
			return nil
		})
		return result, err
	}
}

func (c *Collection) Find(ctx context.Context, filter driver.Filter) (driver.Cursor, error) {
	if err := match.Validate(filter); err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	return snapshot.NewCursor(c.load(driver.CloneRecord(filter))), nil
}

func (c *Collection) FindOne(ctx context.Context, filter driver.Filter, order []driver.SortKey) (driver.Record, error) {
	cur, err := c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err := cur.Sort(order...); err != nil {
		return nil, err
	}
	if err := cur.Limit(1); err != nil {
		return nil, err
	}
	if cur.Next(ctx) {
		return cur.Record(), nil
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return nil, driver.ErrNotFound
}

func (c *Collection) Count(ctx context.Context, filter driver.Filter) (int, error) {
	recs, err := c.load(filter)(ctx)
	return len(recs), err
}

func (c *Collection) Remove(ctx context.Context, filter driver.Filter) (int, error) {
	if err := match.Validate(filter); err != nil {
		return 0, fmt.Errorf("%s: %w", c.name, err)
	}
	var removed int
	err := c.withColl(ctx, false, func(mc *memCollection) error {
		if mc == nil {
			return nil
		}
		kept := mc.recs[:0]
		for _, rec := range mc.recs {
			ok, err := match.Match(filter, rec)
			if err != nil {
				return err
			}
			if ok {
				removed++
			} else {
				kept = append(kept, rec)
			}
		}
		clear(mc.recs[len(kept):])
		mc.recs = kept
		mc.reindex()
		return nil
	})
	if err == nil && c.db.verbose {
		c.db.logger.LogAttrs(ctx, slog.LevelDebug, "memdb.remove", slog.String("coll", c.name), slog.Int("removed", removed))
	}
	return removed, err
}

func (c *Collection) Save(ctx context.Context, rec driver.Record) (any, error) {
	rec = driver.CloneRecord(rec)
	id, hasID := rec[driver.IDField]
	if !hasID || id == nil {
		id = newID()
		rec[driver.IDField] = id
	} else if !reflect.TypeOf(id).Comparable() {
		return nil, fmt.Errorf("%s: %w: %T", c.name, driver.ErrInvalidID, id)
	}
	err := c.withColl(ctx, true, func(mc *memCollection) error {
		if i, found := mc.byID[id]; found {
			mc.recs[i] = rec
		} else {
			mc.byID[id] = len(mc.recs)
			mc.recs = append(mc.recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if c.db.verbose {
		c.db.logger.LogAttrs(ctx, slog.LevelDebug, "memdb.save", slog.String("coll", c.name), slog.Any("id", id))
	}
	return id, nil
}

func (c *Collection) EnsureIndex(ctx context.Context, keys []driver.SortKey) error {
	if len(keys) == 0 {
		return fmt.Errorf("%s: index needs at least one key", c.name)
	}
	return c.withColl(ctx, true, func(mc *memCollection) error {
		for _, idx := range mc.indexes {
			if slices.Equal(idx, keys) {
				return nil
			}
		}
		mc.indexes = append(mc.indexes, slices.Clone(keys))
		return nil
	})
}

// Indexes returns the index specifications passed to EnsureIndex. memdb
// records them but always answers queries with a scan.
func (c *Collection) Indexes(ctx context.Context) ([][]driver.SortKey, error) {
	var result [][]driver.SortKey
	err := c.withColl(ctx, false, func(mc *memCollection) error {
		if mc != nil {
			for _, idx := range mc.indexes {
				result = append(result, slices.Clone(idx))
			}
		}
		return nil
	})
	return result, err
}

// newID returns a time-ordered UUIDv7 string, so that ids sort in insertion
// order.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
