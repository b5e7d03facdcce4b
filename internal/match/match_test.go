package match

import (
	"errors"
	"testing"
	"time"

	"github.com/andreyvit/bongo/driver"
)

func TestMatch(t *testing.T) {
	rec := driver.Record{
		"author": "art",
		"tags":   []any{"test", "python"},
		"stats":  map[string]any{"views": int64(10), "likes": 3},
		"items":  []any{map[string]any{"sku": "a"}, map[string]any{"sku": "b"}},
		"nada":   nil,
		"ref":    driver.Ref{Collection: "authors", ID: "x1"},
	}

	tests := []struct {
		name   string
		filter driver.Filter
		want   bool
	}{
		{"empty", nil, true},
		{"eq", driver.Filter{"author": "art"}, true},
		{"eq miss", driver.Filter{"author": "vasily"}, false},
		{"array contains", driver.Filter{"tags": "python"}, true},
		{"array contains miss", driver.Filter{"tags": "django"}, false},
		{"whole array", driver.Filter{"tags": []any{"test", "python"}}, true},
		{"dotted", driver.Filter{"stats.views": 10}, true},
		{"dotted across array", driver.Filter{"items.sku": "b"}, true},
		{"array index", driver.Filter{"items.0.sku": "a"}, true},
		{"array index miss", driver.Filter{"items.1.sku": "a"}, false},
		{"null matches missing", driver.Filter{"missing": nil}, true},
		{"null matches null", driver.Filter{"nada": nil}, true},
		{"gt", driver.Filter{"stats.likes": map[string]any{"$gt": 2}}, true},
		{"gt miss", driver.Filter{"stats.likes": map[string]any{"$gt": 3}}, false},
		{"gte lte", driver.Filter{"stats.likes": map[string]any{"$gte": 3, "$lte": 3}}, true},
		{"lt other type", driver.Filter{"author": map[string]any{"$lt": 100}}, false},
		{"ne", driver.Filter{"author": map[string]any{"$ne": "vasily"}}, true},
		{"in", driver.Filter{"author": map[string]any{"$in": []string{"olga", "art"}}}, true},
		{"nin", driver.Filter{"tags": map[string]any{"$nin": []any{"python"}}}, false},
		{"exists", driver.Filter{"stats": map[string]any{"$exists": true}}, true},
		{"not exists", driver.Filter{"missing": map[string]any{"$exists": false}}, true},
		{"or", driver.Filter{"$or": []any{map[string]any{"author": "x"}, map[string]any{"tags": "test"}}}, true},
		{"and", driver.Filter{"$and": []driver.Filter{{"author": "art"}, {"tags": "django"}}}, false},
		{"nor", driver.Filter{"$nor": []any{map[string]any{"author": "x"}}}, true},
		{"ref", driver.Filter{"ref": driver.Ref{Collection: "authors", ID: "x1"}}, true},
		{"ref map form", driver.Filter{"ref": map[string]any{"$ref": "authors", "$id": "x1"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(tt.filter, rec)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("** Match(%v) = %v, wanted %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestMatchUnsupportedOperator(t *testing.T) {
	_, err := Match(driver.Filter{"a": map[string]any{"$regex": "x"}}, driver.Record{"a": "x"})
	var oe *OperatorError
	if !errors.As(err, &oe) || oe.Op != "$regex" {
		t.Fatalf("** got %v, wanted OperatorError for $regex", err)
	}

	err = Validate(driver.Filter{"$where": "1"})
	if !errors.As(err, &oe) {
		t.Fatalf("** Validate got %v, wanted OperatorError", err)
	}

	err = Validate(driver.Filter{"a": map[string]any{"$gt": 1, "b": 2}})
	if !errors.As(err, &oe) {
		t.Fatalf("** mixed condition got %v, wanted OperatorError", err)
	}
}

func TestEqual(t *testing.T) {
	now := time.Now()
	tests := []struct {
		a, b any
		want bool
	}{
		{int8(5), 5, true},
		{uint64(5), 5.0, true},
		{5, 6, false},
		{"a", "a", true},
		{"5", 5, false},
		{nil, nil, true},
		{nil, 0, false},
		{map[string]any{"a": int64(1)}, map[string]any{"a": 1}, true},
		{map[string]any{"a": 1}, map[string]string{"a": "1"}, false},
		{map[string]string{"a": "1"}, map[string]any{"a": "1"}, true},
		{[]any{"x", 1}, []any{"x", int32(1)}, true},
		{[]any{"x"}, []string{"x"}, true},
		{[]any{"x"}, []any{"x", "y"}, false},
		{[]byte{1, 2}, []byte{1, 2}, true},
		{[]byte{1, 2}, []byte{1, 3}, false},
		{[]any{1, 2}, []byte{1, 2}, true},
		{[]any{1, 3}, []byte{1, 2}, false},
		{[]byte{1, 2}, "\x01\x02", false},
		{now, now.UTC(), true},
		{driver.Ref{Collection: "a", ID: 1}, driver.Ref{Collection: "a", ID: int64(1)}, true},
		{driver.Ref{Collection: "a", ID: 1}, driver.Ref{Collection: "b", ID: 1}, false},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("** Equal(%#v, %#v) = %v, wanted %v", tt.a, tt.b, got, tt.want)
		}
		if got := Equal(tt.b, tt.a); got != tt.want {
			t.Errorf("** Equal(%#v, %#v) = %v, wanted %v (symmetry)", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestCompareOrdersKinds(t *testing.T) {
	ordered := []any{nil, -1, 2.5, int64(3), "a", "b", map[string]any{"a": 1}, []any{1}, driver.Ref{Collection: "x", ID: 1}, false, true, time.Unix(0, 0)}
	for i := 0; i+1 < len(ordered); i++ {
		if c := Compare(ordered[i], ordered[i+1]); c >= 0 {
			t.Errorf("** Compare(%v, %v) = %d, wanted < 0", ordered[i], ordered[i+1], c)
		}
		if c := Compare(ordered[i+1], ordered[i]); c <= 0 {
			t.Errorf("** Compare(%v, %v) = %d, wanted > 0", ordered[i+1], ordered[i], c)
		}
	}
}

func TestSort(t *testing.T) {
	recs := []driver.Record{
		{"user": "vasily", "n": 1},
		{"user": "alex", "n": 2},
		{"user": "zuger", "n": 3},
		{"user": "olga", "n": 4},
		{"n": 5},
	}
	Sort(recs, []driver.SortKey{driver.Asc("user")})
	var got []any
	for _, r := range recs {
		got = append(got, r["n"])
	}
	want := []any{5, 2, 4, 1, 3}
	if !Equal(got, want) {
		t.Errorf("** asc got %v, wanted %v", got, want)
	}

	Sort(recs, []driver.SortKey{driver.Desc("user")})
	got = got[:0]
	for _, r := range recs {
		got = append(got, r["user"])
	}
	want = []any{"zuger", "vasily", "olga", "alex", nil}
	if !Equal(got, want) {
		t.Errorf("** desc got %v, wanted %v", got, want)
	}
}

func TestSortIsStable(t *testing.T) {
	recs := []driver.Record{
		{"g": 1, "n": "a"},
		{"g": 0, "n": "b"},
		{"g": 1, "n": "c"},
		{"g": 0, "n": "d"},
	}
	Sort(recs, []driver.SortKey{driver.Asc("g")})
	var got []any
	for _, r := range recs {
		got = append(got, r["n"])
	}
	if want := []any{"b", "d", "a", "c"}; !Equal(got, want) {
		t.Errorf("** got %v, wanted %v", got, want)
	}
}
