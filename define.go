package bongo

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/andreyvit/bongo/driver"
)

type docPtr[T any] interface {
	*T
	Documenter
}

// Define is Register for package-level vars; it panics on a configuration
// error.
//
//	var Articles = bongo.Define[Article](sess, "articles",
//		bongo.WithOrdering(bongo.Desc("created")))
func Define[T any, PT docPtr[T]](sess *Session, collection string, opts ...Option) *Manager[T] {
	m, err := Register[T, PT](sess, collection, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Register defines T as the document type stored in collection and returns
// its manager. T must be a struct embedding Document. Each collection and
// each type can be registered once per session.
func Register[T any, PT docPtr[T]](sess *Session, collection string, opts ...Option) (*Manager[T], error) {
	typ := reflect.TypeFor[T]()
	if collection == "" {
		return nil, configErrf("", typ, ErrMissingCollection, "")
	}
	if typ.Kind() != reflect.Struct {
		return nil, configErrf(collection, typ, ErrInvalidType, "must be a struct")
	}
	if PT(new(T)).doc() == nil {
		return nil, configErrf(collection, typ, ErrInvalidType, "must embed bongo.Document by value")
	}

	k := &Kind{
		name: collection,
		typ:  typ,
		sess: sess,
	}
	for _, opt := range opts {
		opt(k)
	}
	m := &Manager[T]{kind: k}
	k.wrap = func(rec driver.Record) Documenter {
		return PT(m.wrap(rec))
	}

	if err := sess.registry.register(k); err != nil {
		return nil, err
	}
	if sess.verbose {
		sess.logger.LogAttrs(context.Background(), slog.LevelDebug, "bongo.define", slog.String("coll", collection), slog.String("type", typ.String()))
	}
	return m, nil
}
