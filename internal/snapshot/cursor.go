// Package snapshot implements driver.Cursor for drivers that answer a query
// by loading every matching record at execution time.
package snapshot

import (
	"context"
	"slices"

	"github.com/andreyvit/bongo/driver"
	"github.com/andreyvit/bongo/internal/match"
)

// LoadFunc returns copies of the records matching the cursor's query, in the
// collection's natural order.
type LoadFunc func(ctx context.Context) ([]driver.Record, error)

type Cursor struct {
	load  LoadFunc
	sort  []driver.SortKey
	skip  int
	limit int

	started bool
	closed  bool
	recs    []driver.Record
	pos     int
	cur     driver.Record
	err     error
}

func NewCursor(load LoadFunc) *Cursor {
	return &Cursor{load: load, pos: -1}
}

func (c *Cursor) Sort(keys ...driver.SortKey) error {
	if c.started {
		return driver.ErrCursorStarted
	}
	c.sort = slices.Clone(keys)
	return nil
}

func (c *Cursor) Skip(n int) error {
	if c.started {
		return driver.ErrCursorStarted
	}
	c.skip = max(n, 0)
	return nil
}

func (c *Cursor) Limit(n int) error {
	if c.started {
		return driver.ErrCursorStarted
	}
	c.limit = max(n, 0)
	return nil
}

func (c *Cursor) Clone() driver.Cursor {
	return &Cursor{
		load:  c.load,
		sort:  slices.Clone(c.sort),
		skip:  c.skip,
		limit: c.limit,
		pos:   -1,
	}
}

func (c *Cursor) Count(ctx context.Context) (int, error) {
	recs, err := c.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(c.window(recs)), nil
}

func (c *Cursor) execute(ctx context.Context) {
	c.started = true
	recs, err := c.load(ctx)
	if err != nil {
		c.err = err
		return
	}
	match.Sort(recs, c.sort)
	c.recs = c.window(recs)
}

func (c *Cursor) window(recs []driver.Record) []driver.Record {
	if c.skip >= len(recs) {
		return nil
	}
	recs = recs[c.skip:]
	if c.limit > 0 && c.limit < len(recs) {
		recs = recs[:c.limit]
	}
	return recs
}

func (c *Cursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if !c.started {
		c.execute(ctx)
		if c.err != nil {
			return false
		}
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	c.pos++
	if c.pos >= len(c.recs) {
		c.cur = nil
		return false
	}
	c.cur = c.recs[c.pos]
	return true
}

func (c *Cursor) Record() driver.Record {
	return c.cur
}

func (c *Cursor) Err() error {
	return c.err
}

func (c *Cursor) Close(ctx context.Context) error {
	c.closed = true
	c.recs = nil
	c.cur = nil
	return nil
}
