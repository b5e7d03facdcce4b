// Package match evaluates Mongo-style filters and orderings against raw
// records. The embedded drivers use it to answer queries with full scans.
package match

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/andreyvit/bongo/driver"
)

type OperatorError struct {
	Op  string
	Msg string
}

func (e *OperatorError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("query operator %s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("unsupported query operator %s", e.Op)
}

func opErrf(op string, format string, args ...any) error {
	return &OperatorError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Match reports whether rec satisfies filter. A nil or empty filter matches
// everything.
func Match(filter driver.Filter, rec driver.Record) (bool, error) {
	for key, cond := range filter {
		ok, err := matchKey(key, cond, rec)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Validate checks filter for unsupported operators without evaluating it
// against data, so that errors surface even on empty collections.
func Validate(filter driver.Filter) error {
	_, err := Match(filter, driver.Record{})
	return err
}

func matchKey(key string, cond any, rec driver.Record) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		clauses, err := clauseList(key, cond)
		if err != nil {
			return false, err
		}
		var matched int
		for _, clause := range clauses {
			ok, err := Match(clause, rec)
			if err != nil {
				return false, err
			}
			if ok {
				matched++
			}
		}
		switch key {
		case "$and":
			return matched == len(clauses), nil
		case "$or":
			return matched > 0, nil
		default:
			return matched == 0, nil
		}
	}
	if strings.HasPrefix(key, "$") {
		return false, &OperatorError{Op: key}
	}
	return matchField(rec, key, cond)
}

func clauseList(op string, cond any) ([]driver.Filter, error) {
	switch cond := cond.(type) {
	case []driver.Filter:
		return cond, nil
	case []any:
		clauses := make([]driver.Filter, 0, len(cond))
		for _, c := range cond {
			m, ok := c.(map[string]any)
			if !ok {
				return nil, opErrf(op, "clause must be a document, got %T", c)
			}
			clauses = append(clauses, m)
		}
		return clauses, nil
	default:
		return nil, opErrf(op, "expected a list of documents, got %T", cond)
	}
}

func matchField(rec driver.Record, path string, cond any) (bool, error) {
	values := Lookup(rec, path)
	ops, isOps, err := operatorDoc(cond)
	if err != nil {
		return false, err
	}
	if !isOps {
		return matchEq(values, cond), nil
	}
	for op, arg := range ops {
		ok, err := matchOp(op, arg, values)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// operatorDoc distinguishes {"$gt": 1} from a literal sub-document.
func operatorDoc(cond any) (map[string]any, bool, error) {
	m, ok := cond.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false, nil
	}
	var dollar int
	for k := range m {
		if strings.HasPrefix(k, "$") {
			dollar++
		}
	}
	switch dollar {
	case 0:
		return nil, false, nil
	case len(m):
		if _, isRef := driver.DecodeRef(m); isRef {
			return nil, false, nil
		}
		return m, true, nil
	default:
		return nil, false, opErrf("$", "cannot mix operators and fields in one condition")
	}
}

func matchOp(op string, arg any, values []any) (bool, error) {
	switch op {
	case "$eq":
		return matchEq(values, arg), nil
	case "$ne":
		return !matchEq(values, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		for _, v := range expand(values) {
			if rank(v) != rank(arg) {
				continue
			}
			c := Compare(v, arg)
			var ok bool
			switch op {
			case "$gt":
				ok = c > 0
			case "$gte":
				ok = c >= 0
			case "$lt":
				ok = c < 0
			default:
				ok = c <= 0
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case "$in", "$nin":
		list, ok := anySlice(arg)
		if !ok {
			return false, opErrf(op, "expected a list, got %T", arg)
		}
		var found bool
		for _, want := range list {
			if matchEq(values, want) {
				found = true
				break
			}
		}
		if op == "$in" {
			return found, nil
		}
		return !found, nil
	case "$exists":
		want, ok := arg.(bool)
		if !ok {
			return false, opErrf(op, "expected a boolean, got %T", arg)
		}
		return (len(values) > 0) == want, nil
	default:
		return false, &OperatorError{Op: op}
	}
}

// matchEq implements equality with Mongo's array semantics: a scalar matches
// an array field that contains it, and null matches a missing field.
func matchEq(values []any, want any) bool {
	if isNil(want) && len(values) == 0 {
		return true
	}
	for _, v := range values {
		if Equal(v, want) {
			return true
		}
		if arr, ok := v.([]any); ok {
			for _, e := range arr {
				if Equal(e, want) {
					return true
				}
			}
		}
	}
	return false
}

func expand(values []any) []any {
	var out []any
	for _, v := range values {
		out = append(out, v)
		if arr, ok := v.([]any); ok {
			out = append(out, arr...)
		}
	}
	return out
}

func anySlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Lookup returns every value found at a dotted path. Arrays along the path
// are traversed element-wise, and numeric components index into arrays.
func Lookup(rec driver.Record, path string) []any {
	var out []any
	collect(rec, strings.Split(path, "."), &out)
	return out
}

func collect(v any, parts []string, out *[]any) {
	if len(parts) == 0 {
		*out = append(*out, v)
		return
	}
	switch v := v.(type) {
	case map[string]any:
		if e, ok := v[parts[0]]; ok {
			collect(e, parts[1:], out)
		}
	case []any:
		if idx, err := strconv.Atoi(parts[0]); err == nil {
			if idx >= 0 && idx < len(v) {
				collect(v[idx], parts[1:], out)
			}
			return
		}
		for _, e := range v {
			if _, ok := e.(map[string]any); ok {
				collect(e, parts, out)
			}
		}
	}
}
