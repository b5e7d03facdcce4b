package bongo

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/andreyvit/bongo/driver"
)

var (
	ErrMissingCollection   = errors.New("missing collection name")
	ErrDuplicateCollection = errors.New("collection already registered")
	ErrDuplicateType       = errors.New("document type already registered")
	ErrInvalidType         = errors.New("invalid document type")

	ErrKeyNotFound            = errors.New("key not found")
	ErrNotRef                 = errors.New("not a reference")
	ErrUnregisteredCollection = errors.New("unregistered collection")
	ErrDanglingRef            = errors.New("dangling reference")
	ErrCyclicReference        = errors.New("cyclic reference between unsaved documents")
	ErrIndexOutOfRange        = errors.New("index out of range")
	ErrNotContainer           = errors.New("not a map or list")

	ErrNotBound = errors.New("session is not bound to a database")
	ErrUnbound  = errors.New("document is not bound to a collection")
)

// ConfigError reports an invalid document type definition.
type ConfigError struct {
	Collection string
	Type       reflect.Type
	Msg        string
	Err        error
}

func configErrf(coll string, typ reflect.Type, err error, format string, args ...any) error {
	return &ConfigError{coll, typ, fmt.Sprintf(format, args...), err}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Error() string {
	var buf strings.Builder
	buf.WriteString("bongo: defining ")
	if e.Type != nil {
		buf.WriteString(e.Type.String())
	} else {
		buf.WriteString("document")
	}
	if e.Collection != "" {
		buf.WriteString(" (")
		buf.WriteString(e.Collection)
		buf.WriteString(")")
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// KeyError reports a missing field or list index.
type KeyError struct {
	Key string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%v: %q", ErrKeyNotFound, e.Key)
}

func (e *KeyError) Unwrap() error {
	return ErrKeyNotFound
}

// UnregisteredCollectionError is returned when resolving a reference into a
// collection that has no document type.
type UnregisteredCollectionError struct {
	Ref driver.Ref
}

func (e *UnregisteredCollectionError) Error() string {
	return fmt.Sprintf("bongo: cannot resolve %v: %v %q", e.Ref, ErrUnregisteredCollection, e.Ref.Collection)
}

func (e *UnregisteredCollectionError) Unwrap() error {
	return ErrUnregisteredCollection
}
