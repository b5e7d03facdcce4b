package match

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/andreyvit/bongo/driver"
)

// Ranks follow the BSON comparison order, so that embedded drivers sort
// mixed-type fields the same way Mongo does.
const (
	rankNull = iota + 1
	rankNumber
	rankString
	rankObject
	rankArray
	rankRef
	rankBool
	rankTime
	rankOther
)

func rank(v any) int {
	if isNil(v) {
		return rankNull
	}
	if _, ok := number(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case string:
		return rankString
	case driver.Ref:
		return rankRef
	case bool:
		return rankBool
	case time.Time:
		return rankTime
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map:
		return rankObject
	case reflect.Slice, reflect.Array:
		return rankArray
	case reflect.String:
		return rankString
	}
	return rankOther
}

// Compare orders two record values. Values of different kinds are ordered
// by kind: null, numbers, strings, objects, arrays, refs, booleans, times.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNull:
		return 0
	case rankNumber:
		na, _ := number(a)
		nb, _ := number(b)
		return na.compare(nb)
	case rankString:
		return strings.Compare(reflect.ValueOf(a).String(), reflect.ValueOf(b).String())
	case rankObject:
		return compareMaps(reflect.ValueOf(a), reflect.ValueOf(b))
	case rankArray:
		av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
		n := min(av.Len(), bv.Len())
		for i := 0; i < n; i++ {
			if c := Compare(av.Index(i).Interface(), bv.Index(i).Interface()); c != 0 {
				return c
			}
		}
		return cmp.Compare(av.Len(), bv.Len())
	case rankRef:
		ra, rb := a.(driver.Ref), b.(driver.Ref)
		if c := strings.Compare(ra.Collection, rb.Collection); c != 0 {
			return c
		}
		return Compare(ra.ID, rb.ID)
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case bb:
			return -1
		default:
			return 1
		}
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func compareMaps(av, bv reflect.Value) int {
	ak, bk := sortedKeys(av), sortedKeys(bv)
	n := min(len(ak), len(bk))
	for i := 0; i < n; i++ {
		if c := strings.Compare(ak[i], bk[i]); c != 0 {
			return c
		}
		ae := mapIndex(av, ak[i])
		be := mapIndex(bv, bk[i])
		if c := Compare(ae, be); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(ak), len(bk))
}

func sortedKeys(mv reflect.Value) []string {
	keys := make([]string, 0, mv.Len())
	iter := mv.MapRange()
	for iter.Next() {
		keys = append(keys, fmt.Sprint(iter.Key().Interface()))
	}
	slices.Sort(keys)
	return keys
}

func mapIndex(mv reflect.Value, key string) any {
	kt := mv.Type().Key()
	if kt.Kind() != reflect.String {
		return nil
	}
	e := mv.MapIndex(reflect.ValueOf(key).Convert(kt))
	if !e.IsValid() {
		return nil
	}
	return e.Interface()
}

// Equal reports whether two record values are structurally equal. Numbers
// compare by value regardless of their Go type.
func Equal(a, b any) bool {
	return EqualWith(a, b, nil)
}

// EqualWith is Equal with a hook applied to every value on both sides before
// comparing it, so that wrappers can be compared by what they wrap.
func EqualWith(a, b any, unwrap func(any) any) bool {
	if unwrap != nil {
		a, b = unwrap(a), unwrap(b)
	}
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if na, ok := number(a); ok {
		nb, ok := number(b)
		return ok && na.compare(nb) == 0
	}
	switch a := a.(type) {
	case time.Time:
		bt, ok := b.(time.Time)
		return ok && a.Equal(bt)
	case driver.Ref:
		br, ok := b.(driver.Ref)
		return ok && a.Collection == br.Collection && EqualWith(a.ID, br.ID, unwrap)
	case []byte:
		if bb, ok := b.([]byte); ok {
			return bytes.Equal(a, bb)
		}
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	switch av.Kind() {
	case reflect.Map:
		if bv.Kind() != reflect.Map || av.Len() != bv.Len() {
			return false
		}
		if av.Type().Key().Kind() != reflect.String || bv.Type().Key().Kind() != reflect.String {
			return reflect.DeepEqual(a, b)
		}
		iter := av.MapRange()
		for iter.Next() {
			be := bv.MapIndex(reflect.ValueOf(iter.Key().String()).Convert(bv.Type().Key()))
			if !be.IsValid() {
				return false
			}
			if !EqualWith(iter.Value().Interface(), be.Interface(), unwrap) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if k := bv.Kind(); (k != reflect.Slice && k != reflect.Array) || av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !EqualWith(av.Index(i).Interface(), bv.Index(i).Interface(), unwrap) {
				return false
			}
		}
		return true
	case reflect.String:
		return bv.Kind() == reflect.String && av.String() == bv.String()
	}
	if av.Type().Comparable() && bv.Type().Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

type num struct {
	i     int64
	f     float64
	isInt bool
}

func number(v any) (num, bool) {
	switch v := v.(type) {
	case int:
		return num{i: int64(v), isInt: true}, true
	case int8:
		return num{i: int64(v), isInt: true}, true
	case int16:
		return num{i: int64(v), isInt: true}, true
	case int32:
		return num{i: int64(v), isInt: true}, true
	case int64:
		return num{i: v, isInt: true}, true
	case uint:
		return unsignedNum(uint64(v)), true
	case uint8:
		return num{i: int64(v), isInt: true}, true
	case uint16:
		return num{i: int64(v), isInt: true}, true
	case uint32:
		return num{i: int64(v), isInt: true}, true
	case uint64:
		return unsignedNum(v), true
	case float32:
		return num{f: float64(v)}, true
	case float64:
		return num{f: v}, true
	default:
		return num{}, false
	}
}

func unsignedNum(v uint64) num {
	if v > math.MaxInt64 {
		return num{f: float64(v)}
	}
	return num{i: int64(v), isInt: true}
}

func (n num) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func (n num) compare(o num) int {
	if n.isInt && o.isInt {
		return cmp.Compare(n.i, o.i)
	}
	return cmp.Compare(n.float(), o.float())
}

// Sort orders records in place by the given keys. Records that compare equal
// keep their relative order.
func Sort(recs []driver.Record, keys []driver.SortKey) {
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(recs, func(a, b driver.Record) int {
		for _, k := range keys {
			c := Compare(sortValue(a, k.Field), sortValue(b, k.Field))
			if k.Dir == driver.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func sortValue(rec driver.Record, path string) any {
	values := Lookup(rec, path)
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
