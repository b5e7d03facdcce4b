package bongo

import (
	"context"
	"errors"
	"testing"

	"github.com/andreyvit/bongo/driver"
)

func TestDocumentFields(t *testing.T) {
	b := newBlog(nil)
	a := b.articles.New(map[string]any{
		"slug":      "first-article",
		"title":     "First article",
		"tags":      []any{"test", "short"},
		"meta":      map[string]any{"words": 2},
		"the-title": "with a dash",
	})

	equal(t, a.Get("title"), "First article")
	if v := a.Get("missing"); v != nil {
		t.Errorf("** Get(missing) = %v, wanted nil", v)
	}
	if _, isList := a.Get("tags").(List); !isList {
		t.Errorf("** tags is %T, wanted List", a.Get("tags"))
	}
	deepEqual(t, a.URL(), "http://example.com/blog/first-article/")

	v, err := a.Item("the-title")
	ok(t, err)
	deepEqual(t, v, any("with a dash"))
	if _, isBare := must(a.Item("meta")).(map[string]any); !isBare {
		t.Errorf("** Item returned a wrapped value")
	}
	if _, err := a.Item("nope"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("** Item(nope) = %v, wanted ErrKeyNotFound", err)
	}

	meta, _ := a.Attrs().Map("meta")
	meta.Set("words", 3)
	equal(t, a.Raw()["meta"], map[string]any{"words": 3})

	a.Set("title", "Renamed")
	equal(t, a.Get("title"), "Renamed")
	ok(t, a.Delete("title"))
	if _, found := a.Lookup("title"); found {
		t.Errorf("** title present after Delete")
	}
	if err := a.Delete("title"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("** second Delete = %v, wanted ErrKeyNotFound", err)
	}

	a.Update(map[string]any{"title": "Updated", "extra": WrapList([]any{1})})
	equal(t, a.Get("title"), "Updated")
	if _, isBare := a.Raw()["extra"].([]any); !isBare {
		t.Errorf("** Update stored %T, wanted []any", a.Raw()["extra"])
	}
	equal(t, a.Get("slug"), "first-article")
}

func TestNewCopiesFieldsAndWrapShares(t *testing.T) {
	b := newBlog(nil)
	fields := map[string]any{"title": "A"}
	a := b.articles.New(fields)
	a.Set("title", "B")
	deepEqual(t, fields["title"], any("A"))

	raw := driver.Record{"title": "A"}
	w := b.articles.Wrap(raw)
	w.Set("title", "B")
	deepEqual(t, raw["title"], any("B"))
	if w.Kind() != b.articles.Kind() {
		t.Errorf("** Wrap kind = %v", w.Kind())
	}
}

func TestDocumentEquality(t *testing.T) {
	b := newBlog(nil)
	a1 := b.articles.New(map[string]any{"title": "A", "n": 1})
	a2 := b.articles.New(map[string]any{"title": "A", "n": int64(1)})
	if !Equal(a1, a2) || !Equal(a1, map[string]any{"title": "A", "n": 1.0}) || !Equal(a1.Attrs(), a2) {
		t.Errorf("** equal documents compare unequal")
	}
	a2.Set("n", 2)
	if Equal(a1, a2) {
		t.Errorf("** different documents compare equal")
	}
	var nilArticle *Article
	if !Equal(nilArticle, nil) {
		t.Errorf("** nil document does not equal nil")
	}
}

func TestDocumentID(t *testing.T) {
	b := newBlog(nil)
	a := b.articles.Wrap(driver.Record{"_id": "x1"})
	if !a.HasID() || a.ID() != "x1" {
		t.Errorf("** ID = %v", a.ID())
	}
	if b.articles.New(nil).HasID() {
		t.Errorf("** new document has an id")
	}
}

func TestZeroDocumentIsUnbound(t *testing.T) {
	ctx := context.Background()
	var a Article
	a.Set("title", "orphan")
	equal(t, a.Get("title"), "orphan")
	if err := a.Save(ctx); !errors.Is(err, ErrUnbound) {
		t.Errorf("** Save = %v, wanted ErrUnbound", err)
	}
	a.Set("author", driver.Ref{Collection: "authors", ID: "x"})
	if _, err := a.Resolve(ctx, "author"); !errors.Is(err, ErrUnbound) {
		t.Errorf("** Resolve = %v, wanted ErrUnbound", err)
	}
	if a.Kind() != nil {
		t.Errorf("** zero document has kind %v", a.Kind())
	}
}

func TestResolveNonRef(t *testing.T) {
	b := newBlog(nil)
	a := b.articles.New(map[string]any{"title": "A"})
	if _, err := a.Resolve(context.Background(), "title"); !errors.Is(err, ErrNotRef) {
		t.Errorf("** Resolve(title) = %v, wanted ErrNotRef", err)
	}
	target, err := a.Resolve(context.Background(), "missing")
	if target != nil || err != nil {
		t.Errorf("** Resolve(missing) = %v, %v, wanted nil, nil", target, err)
	}
}

func TestDocumentString(t *testing.T) {
	b := newBlog(nil)
	a := b.articles.New(map[string]any{"title": "A"})
	deepEqual(t, a.String(), "articles map[title:A]")
	deepEqual(t, a.Self(), Documenter(a))
}
