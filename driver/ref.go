package driver

import "fmt"

const (
	refCollectionKey = "$ref"
	refIDKey         = "$id"
)

// Ref is a reference token pointing at a record in another collection. It
// stands in for an embedded document inside a stored record.
type Ref struct {
	Collection string
	ID         any
}

func (ref Ref) String() string {
	return fmt.Sprintf("%s/%v", ref.Collection, ref.ID)
}

func (ref Ref) IsZero() bool {
	return ref.Collection == "" && ref.ID == nil
}

// Encode returns the map form of the reference, {"$ref": ..., "$id": ...},
// for codecs that cannot carry a Ref natively.
func (ref Ref) Encode() map[string]any {
	return map[string]any{
		refCollectionKey: ref.Collection,
		refIDKey:         ref.ID,
	}
}

// DecodeRef recognizes the map form produced by Ref.Encode.
func DecodeRef(m map[string]any) (Ref, bool) {
	if len(m) != 2 {
		return Ref{}, false
	}
	coll, ok := m[refCollectionKey].(string)
	if !ok {
		return Ref{}, false
	}
	id, ok := m[refIDKey]
	if !ok {
		return Ref{}, false
	}
	return Ref{Collection: coll, ID: id}, true
}

// EncodeRefs returns a deep copy of v with every Ref replaced by its map
// form.
func EncodeRefs(v any) any {
	switch v := v.(type) {
	case Ref:
		return v.Encode()
	case *Ref:
		if v == nil {
			return nil
		}
		return v.Encode()
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = EncodeRefs(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = EncodeRefs(e)
		}
		return out
	default:
		return v
	}
}

// DecodeRefs reverses EncodeRefs, rewriting nested maps and slices in place.
func DecodeRefs(v any) any {
	switch v := v.(type) {
	case map[string]any:
		if ref, ok := DecodeRef(v); ok {
			return ref
		}
		for k, e := range v {
			v[k] = DecodeRefs(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = DecodeRefs(e)
		}
		return v
	default:
		return v
	}
}

// CloneRecord returns a deep copy of rec. Refs and scalars are copied by
// value.
func CloneRecord(rec Record) Record {
	if rec == nil {
		return nil
	}
	return cloneValue(rec).(Record)
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
