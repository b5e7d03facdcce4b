package bongo

import (
	"context"
	"iter"

	"github.com/andreyvit/bongo/driver"
)

// Cursor iterates query results as documents of type T.
//
// Sort, Skip, Limit and Slice modify the cursor in place and return it for
// chaining. Like the driver cursor underneath, they fail once iteration has
// started; the failure is reported by Err.
type Cursor[T any] struct {
	m     *Manager[T]
	raw   driver.Cursor
	skip  int
	limit int
	empty bool

	cur *T
	err error
}

func newCursor[T any](m *Manager[T], raw driver.Cursor) *Cursor[T] {
	c := &Cursor[T]{m: m, raw: raw}
	if len(m.kind.ordering) > 0 {
		c.setErr(raw.Sort(m.kind.ordering...))
	}
	return c
}

func (c *Cursor[T]) setErr(err error) {
	if err != nil && c.err == nil {
		c.err = err
	}
}

// Raw returns the driver cursor, for driver features Cursor does not cover.
func (c *Cursor[T]) Raw() driver.Cursor {
	return c.raw
}

func (c *Cursor[T]) Sort(keys ...driver.SortKey) *Cursor[T] {
	c.setErr(c.raw.Sort(keys...))
	return c
}

func (c *Cursor[T]) Skip(n int) *Cursor[T] {
	c.setErr(c.raw.Skip(n))
	c.skip = max(n, 0)
	return c
}

// Limit caps the number of results. Zero means no limit.
func (c *Cursor[T]) Limit(n int) *Cursor[T] {
	c.setErr(c.raw.Limit(n))
	c.limit = max(n, 0)
	return c
}

// Slice restricts the cursor to results lo through hi-1 of the query,
// replacing any earlier Skip and Limit.
func (c *Cursor[T]) Slice(lo, hi int) *Cursor[T] {
	lo = max(lo, 0)
	if hi <= lo {
		c.empty = true
		return c
	}
	c.empty = false
	return c.Skip(lo).Limit(hi - lo)
}

func (c *Cursor[T]) Next(ctx context.Context) bool {
	if c.err != nil || c.empty {
		c.cur = nil
		return false
	}
	if !c.raw.Next(ctx) {
		c.cur = nil
		return false
	}
	c.cur = c.m.wrap(c.raw.Record())
	return true
}

// Doc returns the document Next moved to.
func (c *Cursor[T]) Doc() *T {
	return c.cur
}

func (c *Cursor[T]) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.raw.Err()
}

func (c *Cursor[T]) Close(ctx context.Context) error {
	c.cur = nil
	return c.raw.Close(ctx)
}

// At returns the i-th result, counting from the cursor's Skip. It runs a
// separate query and does not disturb iteration.
func (c *Cursor[T]) At(ctx context.Context, i int) (*T, error) {
	if c.err != nil {
		return nil, c.err
	}
	if i < 0 || c.empty || (c.limit > 0 && i >= c.limit) {
		return nil, ErrIndexOutOfRange
	}
	cl := c.raw.Clone()
	defer cl.Close(ctx)
	if err := cl.Skip(c.skip + i); err != nil {
		return nil, err
	}
	if err := cl.Limit(1); err != nil {
		return nil, err
	}
	if !cl.Next(ctx) {
		if err := cl.Err(); err != nil {
			return nil, err
		}
		return nil, ErrIndexOutOfRange
	}
	return c.m.wrap(cl.Record()), nil
}

// Len returns the number of results, honoring Skip and Limit.
func (c *Cursor[T]) Len(ctx context.Context) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.empty {
		return 0, nil
	}
	return c.raw.Count(ctx)
}

// All drains and closes the cursor.
func (c *Cursor[T]) All(ctx context.Context) ([]*T, error) {
	defer c.Close(ctx)
	var result []*T
	for c.Next(ctx) {
		result = append(result, c.cur)
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Each iterates the remaining results and closes the cursor. A failure is
// yielded once, as the last pair.
func (c *Cursor[T]) Each(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		defer c.Close(ctx)
		for c.Next(ctx) {
			if !yield(c.cur, nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(nil, err)
		}
	}
}
