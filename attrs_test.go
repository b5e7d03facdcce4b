package bongo

import (
	"errors"
	"slices"
	"testing"
)

func sampleData() map[string]any {
	return map[string]any{
		"name": "Alexander",
		"address": map[string]any{
			"country": "Russia",
			"city":    "Moscow",
			"geo":     map[string]any{"lat": 55.75, "lng": 37.62},
		},
		"tags": []any{"one", map[string]any{"b": 2}, []any{1, 2}},
		"age":  33,
	}
}

func TestMapGetMirrorsData(t *testing.T) {
	data := sampleData()
	p := WrapMap(data)
	for k, v := range data {
		equal(t, p.Get(k), v)
	}

	addr, isMap := p.Get("address").(Map)
	if !isMap {
		t.Fatalf("** address is %T, wanted Map", p.Get("address"))
	}
	equal(t, addr.Get("city"), "Moscow")
	geo, _ := addr.Map("geo")
	equal(t, geo.Get("lat"), 55.75)

	tags, isList := p.Get("tags").(List)
	if !isList {
		t.Fatalf("** tags is %T, wanted List", p.Get("tags"))
	}
	deepEqual(t, tags.Index(0), any("one"))
	if _, isMap := tags.Index(1).(Map); !isMap {
		t.Errorf("** tags[1] is %T, wanted Map", tags.Index(1))
	}
	if _, isList := tags.Index(2).(List); !isList {
		t.Errorf("** tags[2] is %T, wanted List", tags.Index(2))
	}

	if v := p.Get("missing"); v != nil {
		t.Errorf("** Get(missing) = %v, wanted nil", v)
	}
	if _, found := p.Lookup("missing"); found {
		t.Errorf("** Lookup(missing) found")
	}
}

func TestMapEqualityIsSymmetric(t *testing.T) {
	data := sampleData()
	p := WrapMap(data)
	bare := sampleData()

	if !Equal(p, bare) || !Equal(bare, p) {
		t.Errorf("** proxy and bare data compare unequal")
	}
	if !p.Equal(bare) || !p.Equal(WrapMap(bare)) {
		t.Errorf("** Map.Equal failed")
	}
	if !Equal(p.Get("address"), bare["address"]) || !Equal(bare["address"], p.Get("address")) {
		t.Errorf("** nested proxy and bare data compare unequal")
	}
	if !Equal(p.Get("tags"), bare["tags"]) || !Equal(bare["tags"], p.Get("tags")) {
		t.Errorf("** list proxy and bare data compare unequal")
	}

	bare["age"] = 34
	if Equal(p, bare) || Equal(bare, p) {
		t.Errorf("** different data compares equal")
	}
	if Equal(p, WrapList([]any{})) {
		t.Errorf("** map compares equal to list")
	}
}

func TestEqualIgnoresNumericTypes(t *testing.T) {
	equal(t, WrapMap(map[string]any{"n": int64(1), "f": float32(2)}), map[string]any{"n": 1, "f": 2.0})
	equal(t, WrapList([]any{uint8(3)}), []any{3})
	if Equal(1, "1") {
		t.Errorf("** 1 == \"1\"")
	}
}

func TestMutationThroughProxy(t *testing.T) {
	data := sampleData()
	p := WrapMap(data)

	addr, _ := p.Map("address")
	addr.Set("city", "Saint Petersburg")
	equal(t, p.Get("address").(Map).Get("city"), "Saint Petersburg")
	equal(t, data["address"].(map[string]any)["city"], "Saint Petersburg")

	tags, _ := p.List("tags")
	tags.SetIndex(0, "uno")
	equal(t, data["tags"].([]any)[0], "uno")

	p.Set("extra", WrapMap(map[string]any{"x": 1}))
	if _, isBare := data["extra"].(map[string]any); !isBare {
		t.Errorf("** Set stored %T, wanted the unwrapped map", data["extra"])
	}
}

func TestMapDelete(t *testing.T) {
	data := sampleData()
	p := WrapMap(data)

	ok(t, p.Delete("age"))
	if _, found := data["age"]; found {
		t.Errorf("** age still present after Delete")
	}

	err := p.Delete("age")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("** Delete(absent) = %v, wanted ErrKeyNotFound", err)
	}
	var ke *KeyError
	if !errors.As(err, &ke) || ke.Key != "age" {
		t.Errorf("** Delete(absent) = %#v, wanted KeyError for age", err)
	}
}

func TestMapIteration(t *testing.T) {
	p := WrapMap(sampleData())
	deepEqual(t, slices.Collect(p.Keys()), []string{"address", "age", "name", "tags"})

	var kinds []string
	for k, v := range p.All() {
		switch v.(type) {
		case Map:
			kinds = append(kinds, k+":map")
		case List:
			kinds = append(kinds, k+":list")
		default:
			kinds = append(kinds, k)
		}
	}
	deepEqual(t, kinds, []string{"address:map", "age", "name", "tags:list"})
	deepEqual(t, p.Len(), 4)
}

func TestList(t *testing.T) {
	l := WrapList([]any{"a", map[string]any{"b": 1}})
	deepEqual(t, l.Len(), 2)
	if _, err := l.Lookup(2); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("** Lookup(2) = %v, wanted ErrKeyNotFound", err)
	}
	m, isMap := l.Map(1)
	if !isMap {
		t.Fatalf("** Map(1) failed")
	}
	m.Set("b", 2)
	equal(t, l.Raw()[1], map[string]any{"b": 2})
	if _, isList := l.List(0); isList {
		t.Errorf("** List(0) succeeded on a string")
	}

	var n int
	for i, v := range l.All() {
		if i == 1 {
			if _, isMap := v.(Map); !isMap {
				t.Errorf("** element 1 is %T, wanted Map", v)
			}
		}
		n++
	}
	deepEqual(t, n, 2)
	deepEqual(t, l.String(), "[a map[b:2]]")
}
