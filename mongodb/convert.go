package mongodb

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/andreyvit/bongo/driver"
)

// toBSON converts a record or filter into bson.D. Keys are sorted with _id
// first, so that embedded documents compare equal on the server regardless
// of Go map order.
func toBSON(m map[string]any) bson.D {
	if m == nil {
		return bson.D{}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a == driver.IDField || b == driver.IDField {
			return a == driver.IDField && b != driver.IDField
		}
		return a < b
	})
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: toBSONValue(m[k])})
	}
	return d
}

func toBSONValue(v any) any {
	switch v := v.(type) {
	case driver.Ref:
		return refToBSON(v)
	case *driver.Ref:
		if v == nil {
			return nil
		}
		return refToBSON(*v)
	case map[string]any:
		return toBSON(v)
	case []any:
		a := make(bson.A, len(v))
		for i, e := range v {
			a[i] = toBSONValue(e)
		}
		return a
	default:
		return v
	}
}

func refToBSON(ref driver.Ref) bson.D {
	return bson.D{{Key: "$ref", Value: ref.Collection}, {Key: "$id", Value: toBSONValue(ref.ID)}}
}

// fromBSON converts a decoded document into a record made of plain maps and
// slices, with DBRefs turned into driver.Ref.
func fromBSON(d bson.D) driver.Record {
	rec := make(driver.Record, len(d))
	for _, e := range d {
		rec[e.Key] = fromBSONValue(e.Value)
	}
	driver.DecodeRefs(rec)
	return rec
}

func fromBSONValue(v any) any {
	switch v := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(v))
		for _, e := range v {
			m[e.Key] = fromBSONValue(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = fromBSONValue(e)
		}
		return m
	case primitive.A:
		a := make([]any, len(v))
		for i, e := range v {
			a[i] = fromBSONValue(e)
		}
		return a
	case primitive.DateTime:
		return v.Time()
	case primitive.Binary:
		return v.Data
	case int32:
		return int64(v)
	default:
		return v
	}
}

func sortToBSON(keys []driver.SortKey) bson.D {
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k.Field, Value: int(k.Dir)})
	}
	return d
}
