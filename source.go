package plipsql

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// ParamSource supplies values for Statement.SetParams. ok is false when the
// source has no value for name.
type ParamSource interface {
	Lookup(name string) (p Param, ok bool, err error)
}

// ParamFunc adapts a function to a ParamSource.
type ParamFunc func(name string) (Param, bool, error)

// Lookup calls f(name).
func (f ParamFunc) Lookup(name string) (Param, bool, error) {
	return f(name)
}

// ParamMap is a ParamSource backed by typed parameters.
type ParamMap map[string]Param

// Lookup returns m[name].
func (m ParamMap) Lookup(name string) (Param, bool, error) {
	p, ok := m[name]
	return p, ok, nil
}

// Values is a ParamSource backed by plain values, bound untyped.
type Values map[string]any

// Lookup returns m[name] wrapped with Value.
func (m Values) Lookup(name string) (Param, bool, error) {
	v, ok := m[name]
	if !ok {
		return Param{}, false, nil
	}
	if p, isParam := v.(Param); isParam {
		return p, true, nil
	}
	return Value(v), true, nil
}

// StructParams returns a ParamSource reading exported fields of the struct
// (or pointer to struct) v. Fields are named by their `db` tag, or by the field
// name when untagged; `db:"-"` skips a field. Nested structs are flattened,
// except time.Time and sql.Scanner / driver.Valuer implementations.
// A name shared by two flattened fields is an error when looked up.
func StructParams(v any) ParamSource {
	return structSource{v: reflect.ValueOf(v)}
}

type structSource struct {
	v reflect.Value
}

func (s structSource) Lookup(name string) (Param, bool, error) {
	rv := s.v
	for rv.IsValid() && (rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer) {
		if rv.IsNil() {
			return Param{}, false, nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return Param{}, false, fmt.Errorf("plipsql: StructParams needs a struct, got %s", rv.Kind())
	}

	fi, ok := fieldIndexMap(rv.Type())[name]
	if !ok {
		return Param{}, false, nil
	}
	if fi.ambiguous {
		return Param{}, false, fmt.Errorf("plipsql: ambiguous field name %q", name)
	}
	val := valueByPath(rv, fi.index)
	if p, isParam := val.(Param); isParam {
		return p, true, nil
	}
	return Value(val), true, nil
}

// fieldInfo describes a leaf field: its full index path, or that its name is
// used by more than one field.
type fieldInfo struct {
	index     []int
	ambiguous bool
}

var (
	structIndexCache sync.Map // reflect.Type -> map[string]fieldInfo
	scannerIface     = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerIface      = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	paramType        = reflect.TypeOf(Param{})
)

// fieldIndexMap returns a mapping from parameter name to fieldInfo for the
// struct type t. Results are cached per type.
func fieldIndexMap(t reflect.Type) map[string]fieldInfo {
	if m, ok := structIndexCache.Load(t); ok {
		return m.(map[string]fieldInfo)
	}

	m := make(map[string]fieldInfo, t.NumField())
	visited := map[reflect.Type]bool{}

	var walk func(rt reflect.Type, path []int)
	walk = func(rt reflect.Type, path []int) {
		for rt.Kind() == reflect.Pointer {
			rt = rt.Elem()
		}
		if rt.Kind() != reflect.Struct || visited[rt] {
			return
		}
		visited[rt] = true
		defer delete(visited, rt)

		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if f.PkgPath != "" { // unexported
				continue
			}
			tag, _, _ := strings.Cut(f.Tag.Get("db"), ",")
			if tag == "-" {
				continue
			}
			name := f.Name
			if tag != "" {
				name = tag
			}

			if shouldFlatten(f.Type) {
				walk(f.Type, append(slices.Clip(path), i))
				continue
			}
			if _, exists := m[name]; exists {
				m[name] = fieldInfo{ambiguous: true}
				continue
			}
			m[name] = fieldInfo{index: append(slices.Clip(path), i)}
		}
	}
	walk(t, nil)

	structIndexCache.Store(t, m)
	return m
}

// shouldFlatten decides whether to descend into ft (struct or *struct).
func shouldFlatten(ft reflect.Type) bool {
	if ft == paramType {
		return false
	}
	if ft.Implements(scannerIface) || reflect.PointerTo(ft).Implements(scannerIface) || ft.Implements(valuerIface) {
		return false
	}
	tt := ft
	if tt.Kind() == reflect.Pointer {
		tt = tt.Elem()
	}
	if tt.Kind() != reflect.Struct {
		return false
	}
	if tt.PkgPath() == "time" && tt.Name() == "Time" {
		return false
	}
	return true
}

// valueByPath extracts the field at path. A nil pointer along the way yields nil (NULL).
func valueByPath(root reflect.Value, path []int) any {
	v := root
	for _, idx := range path {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return nil
			}
			v = v.Elem()
		}
		v = v.Field(idx)
	}
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return nil
	}
	return v.Interface()
}
