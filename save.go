package bongo

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/andreyvit/bongo/driver"
)

// saver tracks the records being saved up the current chain of nested
// saves, to detect unsaved documents that reference each other.
type saver struct {
	stack map[uintptr]bool
}

func (k *Kind) save(ctx context.Context, rec driver.Record) (any, error) {
	s := saver{stack: make(map[uintptr]bool)}
	return s.save(ctx, k, rec)
}

// save persists rec into the kind's collection. Nested documents are
// replaced by references in the persisted copy only; unsaved ones are saved
// first, depth-first. The assigned id is stored into rec.
func (s *saver) save(ctx context.Context, k *Kind, rec driver.Record) (any, error) {
	key := reflect.ValueOf(rec).Pointer()
	s.stack[key] = true
	defer delete(s.stack, key)

	flat := make(driver.Record, len(rec))
	for name, v := range rec {
		fv, err := s.flatten(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("bongo: saving %s field %q: %w", k.name, name, err)
		}
		flat[name] = fv
	}

	coll, err := k.sess.collection(k.name)
	if err != nil {
		return nil, err
	}
	id, err := coll.Save(ctx, flat)
	if err != nil {
		return nil, fmt.Errorf("bongo: saving into %s: %w", k.name, err)
	}
	rec[driver.IDField] = id
	if k.sess.verbose {
		k.sess.logger.LogAttrs(ctx, slog.LevelDebug, "bongo.save", slog.String("coll", k.name), slog.Any("id", id))
	}
	return id, nil
}

func (s *saver) flatten(ctx context.Context, v any) (any, error) {
	switch v := v.(type) {
	case Documenter:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		return s.ref(ctx, v.doc())
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			fe, err := s.flatten(ctx, e)
			if err != nil {
				return nil, err
			}
			out[k] = fe
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			fe, err := s.flatten(ctx, e)
			if err != nil {
				return nil, err
			}
			out[i] = fe
		}
		return out, nil
	case Map, *Map, List, *List:
		return s.flatten(ctx, unwrap(v))
	default:
		return v, nil
	}
}

// ref returns the reference to a nested document, saving it first when it
// has no id yet.
func (s *saver) ref(ctx context.Context, d *Document) (driver.Ref, error) {
	if d.kind == nil {
		return driver.Ref{}, ErrUnbound
	}
	if !d.HasID() {
		if s.stack[reflect.ValueOf(d.record()).Pointer()] {
			return driver.Ref{}, fmt.Errorf("%w (%s)", ErrCyclicReference, d.kind.name)
		}
		if _, err := s.save(ctx, d.kind, d.record()); err != nil {
			return driver.Ref{}, err
		}
	}
	return driver.Ref{Collection: d.kind.name, ID: d.ID()}, nil
}

// refFilter returns a copy of filter with documents replaced by references
// to them, so that saved documents can be used as query values.
func refFilter(filter driver.Filter) (driver.Filter, error) {
	if filter == nil {
		return nil, nil
	}
	v, err := refValue(filter)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func refValue(v any) (any, error) {
	switch v := v.(type) {
	case Documenter:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		d := v.doc()
		if d.kind == nil {
			return nil, ErrUnbound
		}
		if !d.HasID() {
			return nil, fmt.Errorf("bongo: unsaved %s document used in a filter", d.kind.name)
		}
		return driver.Ref{Collection: d.kind.name, ID: d.ID()}, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			fe, err := refValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = fe
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			fe, err := refValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = fe
		}
		return out, nil
	case Map, *Map, List, *List:
		return refValue(unwrap(v))
	default:
		return v, nil
	}
}
