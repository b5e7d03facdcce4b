package bongo

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/andreyvit/bongo/driver"
)

func TestConfigError_ErrorAndUnwrap(t *testing.T) {
	err := configErrf("articles", reflect.TypeFor[Article](), ErrDuplicateCollection, "")
	if !errors.Is(err, ErrDuplicateCollection) {
		t.Fatalf("errors.Is(err, ErrDuplicateCollection) = false, wanted true")
	}
	if s, e := err.Error(), "bongo: defining bongo.Article (articles): collection already registered"; s != e {
		t.Fatalf("err.Error() = %q, wanted %q", s, e)
	}

	s := configErrf("", nil, nil, "oops %d", 1).Error()
	if s != "bongo: defining document: oops 1" {
		t.Fatalf("err.Error() = %q", s)
	}
}

func TestKeyError(t *testing.T) {
	err := error(&KeyError{Key: "title"})
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("errors.Is(err, ErrKeyNotFound) = false, wanted true")
	}
	if s := err.Error(); !strings.Contains(s, `"title"`) {
		t.Fatalf("err.Error() = %q, wanted key in message", s)
	}
}

func TestUnregisteredCollectionError(t *testing.T) {
	err := error(&UnregisteredCollectionError{Ref: driver.Ref{Collection: "comments", ID: "c1"}})
	if !errors.Is(err, ErrUnregisteredCollection) {
		t.Fatalf("errors.Is(err, ErrUnregisteredCollection) = false, wanted true")
	}
	var ue *UnregisteredCollectionError
	if !errors.As(err, &ue) || ue.Ref.ID != "c1" {
		t.Fatalf("errors.As = %v", ue)
	}
	if s := err.Error(); !strings.Contains(s, `"comments"`) {
		t.Fatalf("err.Error() = %q, wanted collection in message", s)
	}
}
