package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/bongo/driver"
	"github.com/andreyvit/bongo/internal/match"
	"github.com/andreyvit/bongo/internal/snapshot"
)

type Collection struct {
	db   *DB
	name string
	buck []byte
}

var _ driver.Collection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) dataBucket(btx *bbolt.Tx) *bbolt.Bucket {
	root := btx.Bucket(c.buck)
	if root == nil {
		return nil
	}
	return root.Bucket(dataBucket)
}

func (c *Collection) createBucket(btx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	root, err := btx.CreateBucketIfNotExists(c.buck)
	if err != nil {
		return nil, collErrf(c.name, nil, err, "create bucket")
	}
	b, err := root.CreateBucketIfNotExists(name)
	if err != nil {
		return nil, collErrf(c.name, nil, err, "create %s bucket", name)
	}
	return b, nil
}

// scan calls f for every record matching filter, in key order.
func (c *Collection) scan(btx *bbolt.Tx, filter driver.Filter, f func(k []byte, rec driver.Record) error) error {
	if k, found := idKey(filter); found {
		b := c.dataBucket(btx)
		if b == nil {
			return nil
		}
		data := b.Get(k)
		if data == nil {
			return nil
		}
		rec, err := decodeValue(data)
		if err != nil {
			return collErrf(c.name, k, err, "")
		}
		return f(k, rec)
	}

	b := c.dataBucket(btx)
	if b == nil {
		return nil
	}
	cur := b.Cursor()
	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		rec, err := decodeValue(v)
		if err != nil {
			return collErrf(c.name, k, err, "")
		}
		ok, err := match.Match(filter, rec)
		if err != nil {
			return collErrf(c.name, nil, err, "")
		}
		if ok {
			if err := f(k, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Collection) load(filter driver.Filter) snapshot.LoadFunc {
	return func(ctx context.Context) ([]driver.Record, error) {
		var result []driver.Record
		err := c.db.view(ctx, func(btx *bbolt.Tx) error {
			return c.scan(btx, filter, func(_ []byte, rec driver.Record) error {
				result = append(result, rec)
				return nil
			})
		})
		return result, err
	}
}

func (c *Collection) Find(ctx context.Context, filter driver.Filter) (driver.Cursor, error) {
	if err := match.Validate(filter); err != nil {
		return nil, collErrf(c.name, nil, err, "")
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
	if err := match.Validate(filter); err != nil {
		return 0, collErrf(c.name, nil, err, "")
	}
	var n int
	err := c.db.view(ctx, func(btx *bbolt.Tx) error {
		return c.scan(btx, filter, func(_ []byte, _ driver.Record) error {
			n++
			return nil
		})
	})
	return n, err
}

func (c *Collection) Remove(ctx context.Context, filter driver.Filter) (int, error) {
	if err := match.Validate(filter); err != nil {
		return 0, collErrf(c.name, nil, err, "")
	}
	var removed int
	err := c.db.update(ctx, func(btx *bbolt.Tx) error {
		var keys [][]byte
		err := c.scan(btx, filter, func(k []byte, _ driver.Record) error {
			keys = append(keys, slices.Clone(k))
			return nil
		})
		if err != nil {
			return err
		}
		b := c.dataBucket(btx)
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return collErrf(c.name, k, err, "delete")
			}
		}
		removed = len(keys)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if c.db.verbose {
		c.db.logger.LogAttrs(ctx, slog.LevelDebug, "boltdb.remove", slog.String("coll", c.name), slog.Int("removed", removed))
	}
	return removed, nil
}

func (c *Collection) Save(ctx context.Context, rec driver.Record) (any, error) {
	rec = driver.CloneRecord(rec)
	id, hasID := rec[driver.IDField]
	if !hasID || id == nil {
		id = newID()
		rec[driver.IDField] = id
	}
	k, err := encodeKey(id)
	if err != nil {
		return nil, collErrf(c.name, nil, err, "")
	}
	v, err := c.db.enc.encodeValue(rec)
	if err != nil {
		return nil, collErrf(c.name, k, err, "")
	}
	err = c.db.update(ctx, func(btx *bbolt.Tx) error {
		b, err := c.createBucket(btx, dataBucket)
		if err != nil {
			return err
		}
		return b.Put(k, v)
	})
	if err != nil {
		return nil, err
	}
	if c.db.verbose {
		c.db.logger.LogAttrs(ctx, slog.LevelDebug, "boltdb.save", slog.String("coll", c.name), slog.Any("id", id), slog.Int("size", len(v)))
	}
	return id, nil
}

// EnsureIndex records the index specification. Queries are answered with a
// scan regardless.
func (c *Collection) EnsureIndex(ctx context.Context, keys []driver.SortKey) error {
	if len(keys) == 0 {
		return fmt.Errorf("%s: index needs at least one key", c.name)
	}
	spec, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return c.db.update(ctx, func(btx *bbolt.Tx) error {
		b, err := c.createBucket(btx, indexBucket)
		if err != nil {
			return err
		}
		if b.Get(spec) != nil {
			return nil
		}
		return b.Put(spec, []byte{1})
	})
}

func (c *Collection) Indexes(ctx context.Context) ([][]driver.SortKey, error) {
	var result [][]driver.SortKey
	err := c.db.view(ctx, func(btx *bbolt.Tx) error {
		root := btx.Bucket(c.buck)
		if root == nil {
			return nil
		}
		b := root.Bucket(indexBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			var keys []driver.SortKey
			if err := json.Unmarshal(k, &keys); err != nil {
				return collErrf(c.name, k, err, "invalid index spec")
			}
			result = append(result, keys)
			return nil
		})
	})
	return result, err
}

// idKey recognizes filters of the form {"_id": scalar} and returns the
// corresponding key.
func idKey(filter driver.Filter) ([]byte, bool) {
	if len(filter) != 1 {
		return nil, false
	}
	id, found := filter[driver.IDField]
	if !found {
		return nil, false
	}
	k, err := encodeKey(id)
	if err != nil {
		return nil, false
	}
	return k, true
}
