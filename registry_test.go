package bongo

import (
	"errors"
	"reflect"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	b := newBlog(nil)
	reg := b.sess.Registry()

	k, found := reg.Lookup("articles")
	if !found || k.Type() != reflect.TypeFor[Article]() {
		t.Errorf("** Lookup(articles) = %v, %v", k, found)
	}
	k, found = reg.Lookup("authors")
	if !found || k.Type() != reflect.TypeFor[Author]() {
		t.Errorf("** Lookup(authors) = %v, %v", k, found)
	}
	if k, found := reg.Lookup("comments"); found || k != nil {
		t.Errorf("** Lookup(comments) = %v, %v, wanted not found", k, found)
	}

	k, found = reg.KindOf(reflect.TypeFor[*Author]())
	if !found || k.Collection() != "authors" {
		t.Errorf("** KindOf(*Author) = %v, %v", k, found)
	}

	var names []string
	for _, k := range reg.Kinds() {
		names = append(names, k.Collection())
	}
	deepEqual(t, names, []string{"articles", "authors", "users"})
}

func TestKindOptions(t *testing.T) {
	b := newBlog(nil)
	deepEqual(t, b.users.Kind().Ordering(), []SortKey{Asc("user")})
	deepEqual(t, b.articles.Kind().Indexes(), [][]SortKey{{Asc("author"), Desc("created")}})
	deepEqual(t, b.articles.Name(), "articles")
	if b.articles.Session() != b.sess || b.articles.Kind().Session() != b.sess {
		t.Errorf("** manager session mismatch")
	}
}

func TestRegisterDuplicateCollection(t *testing.T) {
	type Post struct {
		Document
	}
	b := newBlog(nil)
	_, err := Register[Post](b.sess, "articles")
	if !errors.Is(err, ErrDuplicateCollection) {
		t.Fatalf("** Register = %v, wanted ErrDuplicateCollection", err)
	}
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Collection != "articles" {
		t.Errorf("** err = %#v, wanted ConfigError for articles", err)
	}

	k, _ := b.sess.Registry().Lookup("articles")
	if k.Type() != reflect.TypeFor[Article]() {
		t.Errorf("** duplicate registration replaced %v with %v", reflect.TypeFor[Article](), k.Type())
	}
}

func TestRegisterDuplicateType(t *testing.T) {
	b := newBlog(nil)
	_, err := Register[Article](b.sess, "posts")
	if !errors.Is(err, ErrDuplicateType) {
		t.Errorf("** Register = %v, wanted ErrDuplicateType", err)
	}
	if _, found := b.sess.Registry().Lookup("posts"); found {
		t.Errorf("** failed registration left posts registered")
	}
}

func TestRegisterMissingCollection(t *testing.T) {
	sess := NewSession(Options{})
	_, err := Register[Article](sess, "")
	if !errors.Is(err, ErrMissingCollection) {
		t.Errorf("** Register = %v, wanted ErrMissingCollection", err)
	}
}

func TestDefinePanicsOnConfigError(t *testing.T) {
	sess := NewSession(Options{})
	defer func() {
		e := recover()
		err, isErr := e.(error)
		if !isErr || !errors.Is(err, ErrMissingCollection) {
			t.Errorf("** recovered %v, wanted ErrMissingCollection", e)
		}
	}()
	Define[Article](sess, "")
	t.Errorf("** Define did not panic")
}

func TestRegisterRejectsPointerEmbedding(t *testing.T) {
	type Broken struct {
		*Document
	}
	sess := NewSession(Options{})
	_, err := Register[Broken](sess, "broken")
	if !errors.Is(err, ErrInvalidType) {
		t.Errorf("** Register = %v, wanted ErrInvalidType", err)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	a, b := newBlog(nil), newBlog(nil)
	if a.sess.Registry() == b.sess.Registry() {
		t.Errorf("** sessions share a registry")
	}
}
