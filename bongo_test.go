package bongo

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/andreyvit/bongo/boltdb"
	"github.com/andreyvit/bongo/driver"
	"github.com/andreyvit/bongo/memdb"
)

type (
	Article struct {
		Document
	}
	Author struct {
		Document
	}
	User struct {
		Document
	}
)

func (a *Article) URL() string {
	return fmt.Sprintf("http://example.com/blog/%v/", a.Get("slug"))
}

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

type blog struct {
	sess     *Session
	articles *Manager[Article]
	authors  *Manager[Author]
	users    *Manager[User]
}

func newBlog(db driver.Database) *blog {
	sess := NewSession(Options{Verbose: true})
	b := &blog{
		sess:     sess,
		articles: Define[Article](sess, "articles", WithIndex(Asc("author"), Desc("created"))),
		authors:  Define[Author](sess, "authors"),
		users:    Define[User](sess, "users", WithOrdering(Asc("user"))),
	}
	if db != nil {
		sess.Bind(db)
	}
	return b
}

// eachDriver runs f against a fresh blog on every embedded driver.
func eachDriver(t *testing.T, f func(t *testing.T, b *blog)) {
	drivers := []struct {
		name string
		open func(t *testing.T) driver.Database
	}{
		{"memdb", func(t *testing.T) driver.Database {
			return memdb.New(memdb.Options{})
		}},
		{"boltdb", func(t *testing.T) driver.Database {
			return must(boltdb.Open(filepath.Join(t.TempDir(), "blog.db"), boltdb.Options{IsTesting: true}))
		}},
	}
	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			b := newBlog(d.open(t))
			t.Cleanup(func() {
				if err := b.sess.Close(context.Background()); err != nil {
					t.Errorf("Close: %v", err)
				}
			})
			f(t, b)
		})
	}
}

func (b *blog) addUsers(t testing.TB, names ...string) {
	t.Helper()
	ctx := context.Background()
	for _, name := range names {
		ok(t, b.users.New(map[string]any{"user": name}).Save(ctx))
	}
}

func userNames(docs []*User) []any {
	var result []any
	for _, d := range docs {
		result = append(result, d.Get("user"))
	}
	return result
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func equal(t testing.TB, a, e any) {
	if !Equal(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got &%v, wanted nil", *a)
	}
}

func isnonnil[T any](t testing.TB, a *T) {
	if a == nil {
		t.Helper()
		t.Fatalf("** got nil %T, wanted non-nil", a)
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
