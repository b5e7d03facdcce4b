package bongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/andreyvit/bongo/driver"
)

type Options struct {
	Logger  *slog.Logger
	Verbose bool
}

// Session holds the document types defined on it and the database they all
// talk to. Applications typically create one session at startup, define
// their types against it in package-level vars, and Bind a database once
// the connection is up.
type Session struct {
	registry *Registry
	binding  atomic.Pointer[binding]
	logger   *slog.Logger
	verbose  bool
}

type binding struct {
	db driver.Database
}

func NewSession(opt Options) *Session {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &Session{
		registry: newRegistry(),
		logger:   opt.Logger,
		verbose:  opt.Verbose,
	}
}

func (sess *Session) Registry() *Registry {
	return sess.registry
}

// Bind makes every manager of the session use db for subsequent calls.
// Passing nil unbinds. Binding is meant to happen once at startup;
// rebinding while other goroutines run queries is the caller's problem,
// since a multi-step operation like a nested Save may straddle both
// databases.
func (sess *Session) Bind(db driver.Database) {
	if db == nil {
		sess.binding.Store(nil)
		return
	}
	sess.binding.Store(&binding{db})
	if sess.verbose {
		sess.logger.LogAttrs(context.Background(), slog.LevelDebug, "bongo.bind", slog.String("db", db.Name()))
	}
}

func (sess *Session) Database() (driver.Database, error) {
	b := sess.binding.Load()
	if b == nil {
		return nil, ErrNotBound
	}
	return b.db, nil
}

func (sess *Session) collection(name string) (driver.Collection, error) {
	db, err := sess.Database()
	if err != nil {
		return nil, fmt.Errorf("bongo: %s: %w", name, err)
	}
	return db.Collection(name), nil
}

// Dereference fetches the document a reference points at and wraps it into
// the document type registered for its collection.
func (sess *Session) Dereference(ctx context.Context, ref driver.Ref) (Documenter, error) {
	kind, found := sess.registry.Lookup(ref.Collection)
	if !found {
		return nil, &UnregisteredCollectionError{ref}
	}
	coll, err := sess.collection(kind.name)
	if err != nil {
		return nil, err
	}
	rec, err := coll.FindOne(ctx, driver.Filter{driver.IDField: ref.ID}, nil)
	if errors.Is(err, driver.ErrNotFound) {
		return nil, fmt.Errorf("bongo: %v: %w", ref, ErrDanglingRef)
	} else if err != nil {
		return nil, fmt.Errorf("bongo: resolving %v: %w", ref, err)
	}
	if sess.verbose {
		sess.logger.LogAttrs(ctx, slog.LevelDebug, "bongo.deref", slog.String("ref", ref.String()))
	}
	return kind.wrap(rec), nil
}

// Close unbinds the session and closes the database it was bound to.
func (sess *Session) Close(ctx context.Context) error {
	b := sess.binding.Swap(nil)
	if b == nil {
		return nil
	}
	return b.db.Close(ctx)
}
