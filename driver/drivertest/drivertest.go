// Package drivertest is a conformance suite for driver implementations.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/andreyvit/bongo/driver"
	"github.com/andreyvit/bongo/internal/match"
)

// OpenFunc returns a fresh, empty database. The suite closes it.
type OpenFunc func(t *testing.T) driver.Database

// Run exercises every method of the driver contract.
func Run(t *testing.T, open OpenFunc) {
	tests := []struct {
		name string
		f    func(t *testing.T, db driver.Database)
	}{
		{"SaveAssignsID", testSaveAssignsID},
		{"SaveReplaces", testSaveReplaces},
		{"SaveWithClientID", testSaveWithClientID},
		{"NaturalOrder", testNaturalOrder},
		{"Filter", testFilter},
		{"SortSkipLimit", testSortSkipLimit},
		{"CursorStarted", testCursorStarted},
		{"Clone", testClone},
		{"FindOne", testFindOne},
		{"Remove", testRemove},
		{"RemoveAll", testRemoveAll},
		{"NestedValues", testNestedValues},
		{"Refs", testRefs},
		{"Ownership", testOwnership},
		{"EnsureIndex", testEnsureIndex},
		{"CollectionsAreSeparate", testCollectionsAreSeparate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := open(t)
			t.Cleanup(func() {
				if err := db.Close(context.Background()); err != nil {
					t.Errorf("Close: %v", err)
				}
			})
			tt.f(t, db)
		})
	}
}

func testSaveAssignsID(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("docs")
	rec := driver.Record{"author": "art"}
	id := must(coll.Save(ctx, rec))
	if id == nil {
		t.Fatalf("** Save returned nil id")
	}
	if _, found := rec[driver.IDField]; found {
		t.Errorf("** Save modified its argument: %v", rec)
	}
	got := must(coll.FindOne(ctx, driver.Filter{driver.IDField: id}, nil))
	Eq(t, got["author"], "art")
	Eq(t, got[driver.IDField], id)
}

func testSaveReplaces(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("docs")
	id := must(coll.Save(ctx, driver.Record{"author": "art"}))
	id2 := must(coll.Save(ctx, driver.Record{driver.IDField: id, "author": "alexander"}))
	Eq(t, id2, id)
	Eq(t, must(coll.Count(ctx, nil)), 1)
	got := must(coll.FindOne(ctx, nil, nil))
	Eq(t, got["author"], "alexander")
}

func testSaveWithClientID(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("docs")
	id := must(coll.Save(ctx, driver.Record{driver.IDField: "custom-1", "n": 1}))
	Eq(t, id, "custom-1")
	got := must(coll.FindOne(ctx, driver.Filter{driver.IDField: "custom-1"}, nil))
	Eq(t, got["n"], 1)
}

func testNaturalOrder(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("docs")
	for _, name := range []string{"art", "vasily", "olga"} {
		must(coll.Save(ctx, driver.Record{"author": name}))
		// keeps generated time-ordered ids distinct in their time component
		time.Sleep(2 * time.Millisecond)
	}
	Eq(t, Fields(t, mustCursor(t, coll, nil), "author"), []any{"art", "vasily", "olga"})
}

func testFilter(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("docs")
	must(coll.Save(ctx, driver.Record{"author": "art", "tags": []any{"test", "python"}}))
	must(coll.Save(ctx, driver.Record{"author": "vasily", "tags": []any{"test", "django"}}))

	Eq(t, Fields(t, mustCursor(t, coll, driver.Filter{"tags": "python"}), "author"), []any{"art"})
	Eq(t, must(coll.Count(ctx, driver.Filter{"tags": "test"})), 2)
	Eq(t, must(coll.Count(ctx, driver.Filter{"author": "nobody"})), 0)
}

func saveUsers(t *testing.T, coll driver.Collection) {
	ctx := context.Background()
	for _, name := range []string{"vasily", "alex", "zuger", "olga"} {
		must(coll.Save(ctx, driver.Record{"user": name}))
	}
}

func testSortSkipLimit(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("users")
	saveUsers(t, coll)

	c := mustCursor(t, coll, nil)
	ok(t, c.Sort(driver.Asc("user")))
	Eq(t, Fields(t, c, "user"), []any{"alex", "olga", "vasily", "zuger"})

	c = mustCursor(t, coll, nil)
	ok(t, c.Sort(driver.Desc("user")))
	ok(t, c.Skip(1))
	ok(t, c.Limit(2))
	Eq(t, must(c.Count(ctx)), 2)
	Eq(t, Fields(t, c, "user"), []any{"vasily", "olga"})

	c = mustCursor(t, coll, nil)
	ok(t, c.Skip(10))
	Eq(t, must(c.Count(ctx)), 0)
	Eq(t, Fields(t, c, "user"), []any(nil))
}

func testCursorStarted(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("users")
	saveUsers(t, coll)

	c := mustCursor(t, coll, nil)
	defer c.Close(ctx)
	if !c.Next(ctx) {
		t.Fatalf("** Next = false, wanted a record (err = %v)", c.Err())
	}
	if err := c.Sort(driver.Asc("user")); !errors.Is(err, driver.ErrCursorStarted) {
		t.Errorf("** Sort after Next = %v, wanted ErrCursorStarted", err)
	}
	if err := c.Skip(1); !errors.Is(err, driver.ErrCursorStarted) {
		t.Errorf("** Skip after Next = %v, wanted ErrCursorStarted", err)
	}
}

func testClone(t *testing.T, db driver.Database) {
	coll := db.Collection("users")
	saveUsers(t, coll)

	c := mustCursor(t, coll, nil)
	ok(t, c.Sort(driver.Asc("user")))
	ok(t, c.Skip(1))
	cl := c.Clone()
	ok(t, cl.Limit(1))
	Eq(t, Fields(t, cl, "user"), []any{"olga"})
	Eq(t, Fields(t, c, "user"), []any{"olga", "vasily", "zuger"})
}

func testFindOne(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("users")

	_, err := coll.FindOne(ctx, nil, nil)
	if !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("** FindOne on empty = %v, wanted ErrNotFound", err)
	}

	saveUsers(t, coll)
	got := must(coll.FindOne(ctx, nil, []driver.SortKey{driver.Asc("user")}))
	Eq(t, got["user"], "alex")
	got = must(coll.FindOne(ctx, nil, []driver.SortKey{driver.Desc("user")}))
	Eq(t, got["user"], "zuger")
	got = must(coll.FindOne(ctx, driver.Filter{"user": "olga"}, nil))
	Eq(t, got["user"], "olga")

	_, err = coll.FindOne(ctx, driver.Filter{"user": "unknown"}, nil)
	if !errors.Is(err, driver.ErrNotFound) {
		t.Errorf("** FindOne(unknown) = %v, wanted ErrNotFound", err)
	}
}

func testRemove(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("users")
	saveUsers(t, coll)

	n := must(coll.Remove(ctx, driver.Filter{"user": driver.Filter{"$in": []any{"alex", "olga"}}}))
	Eq(t, n, 2)
	c := mustCursor(t, coll, nil)
	ok(t, c.Sort(driver.Asc("user")))
	Eq(t, Fields(t, c, "user"), []any{"vasily", "zuger"})
}

func testRemoveAll(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("users")
	saveUsers(t, coll)

	n := must(coll.Remove(ctx, driver.Filter{}))
	Eq(t, n, 4)
	Eq(t, must(coll.Count(ctx, nil)), 0)

	n = must(coll.Remove(ctx, nil))
	Eq(t, n, 0)
}

func testNestedValues(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("docs")
	rec := driver.Record{
		"author": map[string]any{
			"name":    "Alexander",
			"address": map[string]any{"country": "Russia", "city": "Moscow"},
		},
		"tags":    []any{"one", "two", map[string]any{"b": 2}},
		"n":       42,
		"f":       2.5,
		"yes":     true,
		"nothing": nil,
		"created": time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		"blob":    []byte{1, 2},
		"history": []any{map[string]any{"at": time.Date(2023, 1, 2, 3, 4, 5, 6000000, time.UTC)}},
	}
	id := must(coll.Save(ctx, rec))
	got := must(coll.FindOne(ctx, driver.Filter{driver.IDField: id}, nil))
	delete(got, driver.IDField)
	Eq(t, got, rec)
	if _, isTime := got["created"].(time.Time); !isTime {
		t.Errorf("** created is %T, wanted time.Time", got["created"])
	}
	if _, isBytes := got["blob"].([]byte); !isBytes {
		t.Errorf("** blob is %T, wanted []byte", got["blob"])
	}

	n := must(coll.Count(ctx, driver.Filter{"author.address.city": "Moscow"}))
	Eq(t, n, 1)
	n = must(coll.Count(ctx, driver.Filter{"created": driver.Filter{"$gt": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}}))
	Eq(t, n, 1)
}

func testRefs(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("articles")
	ref := driver.Ref{Collection: "authors", ID: "a1"}
	rec := driver.Record{
		"author":  ref,
		"editors": []any{ref, driver.Ref{Collection: "authors", ID: "a2"}},
		"meta":    map[string]any{"reviewer": ref},
	}
	id := must(coll.Save(ctx, rec))
	got := must(coll.FindOne(ctx, driver.Filter{driver.IDField: id}, nil))
	if r, isRef := got["author"].(driver.Ref); !isRef || r.Collection != "authors" || !match.Equal(r.ID, "a1") {
		t.Errorf("** author = %#v, wanted %v", got["author"], ref)
	}
	delete(got, driver.IDField)
	Eq(t, got, rec)

	n := must(coll.Count(ctx, driver.Filter{"author": ref}))
	Eq(t, n, 1)
}

func testOwnership(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("docs")
	nested := map[string]any{"b": 1}
	id := must(coll.Save(ctx, driver.Record{"a": nested}))
	nested["b"] = 2

	got := must(coll.FindOne(ctx, driver.Filter{driver.IDField: id}, nil))
	Eq(t, got["a"], any(map[string]any{"b": 1}))
	got["a"].(map[string]any)["b"] = 3

	got = must(coll.FindOne(ctx, driver.Filter{driver.IDField: id}, nil))
	Eq(t, got["a"], any(map[string]any{"b": 1}))
}

func testEnsureIndex(t *testing.T, db driver.Database) {
	ctx := context.Background()
	coll := db.Collection("users")
	ok(t, coll.EnsureIndex(ctx, []driver.SortKey{driver.Asc("user")}))
	ok(t, coll.EnsureIndex(ctx, []driver.SortKey{driver.Asc("user")}))
	saveUsers(t, coll)
	Eq(t, must(coll.Count(ctx, nil)), 4)
}

func testCollectionsAreSeparate(t *testing.T, db driver.Database) {
	ctx := context.Background()
	must(db.Collection("a").Save(ctx, driver.Record{"x": 1}))
	must(db.Collection("b").Save(ctx, driver.Record{"x": 2}))
	Eq(t, must(db.Collection("a").Count(ctx, nil)), 1)
	Eq(t, Fields(t, mustCursor(t, db.Collection("b"), nil), "x"), []any{2})
	Eq(t, db.Collection("a").Name(), "a")
}

func mustCursor(t testing.TB, coll driver.Collection, filter driver.Filter) driver.Cursor {
	t.Helper()
	c, err := coll.Find(context.Background(), filter)
	if err != nil {
		t.Fatalf("Find(%v): %v", filter, err)
	}
	return c
}

// Fields drains the cursor and returns the given field of every record.
func Fields(t testing.TB, c driver.Cursor, field string) []any {
	t.Helper()
	ctx := context.Background()
	defer c.Close(ctx)
	var result []any
	for c.Next(ctx) {
		result = append(result, c.Record()[field])
	}
	if err := c.Err(); err != nil {
		t.Fatalf("cursor: %v", err)
	}
	return result
}

// Eq compares record values structurally, ignoring numeric type differences
// introduced by codecs.
func Eq[T any](t testing.TB, a, e T) {
	if !match.Equal(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", fmt.Sprintf("%#v", a), fmt.Sprintf("%#v", e))
	}
}

func ok(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatal(err)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
