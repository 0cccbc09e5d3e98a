package grounder

import (
	"fmt"
	"reflect"
	"strings"
)

const tagKey = "grounder"

// schemaMeta holds parsed struct tag metadata, cached per TypedCatalog.
type schemaMeta struct {
	typ     reflect.Type
	columns []fieldMapping
}

type fieldMapping struct {
	structIdx int
	name      string
}

// parseSchema reflects on T and extracts grounder struct tag metadata.
// A tagged field `grounder:"status"` contributes its values to column status;
// `grounder:"-"` and untagged fields are ignored.
func parseSchema[T any]() (*schemaMeta, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, fmt.Errorf("grounder: type parameter must be a struct")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("grounder: type %s is not a struct", t)
	}

	meta := &schemaMeta{typ: t}
	seen := make(map[string]string)
	for i := range t.NumField() {
		f := t.Field(i)
		name := strings.TrimSpace(f.Tag.Get(tagKey))
		if name == "" || name == "-" {
			continue
		}
		if !f.IsExported() {
			return nil, fmt.Errorf("grounder: tagged field %s is unexported", f.Name)
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("grounder: column %q tagged on both %s and %s", name, prev, f.Name)
		}
		seen[name] = f.Name
		meta.columns = append(meta.columns, fieldMapping{structIdx: i, name: name})
	}

	if len(meta.columns) == 0 {
		return nil, fmt.Errorf("grounder: no field with a `grounder:\"column\"` tag in %s", t)
	}
	return meta, nil
}

// columnValue is one non-empty column value extracted from a row.
type columnValue struct {
	column string
	value  string
}

// values extracts the tagged column values of item. Nil pointers and values
// that render as empty strings are skipped.
func (m *schemaMeta) values(item any) []columnValue {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	out := make([]columnValue, 0, len(m.columns))
	for _, c := range m.columns {
		s, ok := render(v.Field(c.structIdx))
		if !ok {
			continue
		}
		out = append(out, columnValue{column: c.name, value: s})
	}
	return out
}

func render(v reflect.Value) (string, bool) {
	if v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	var s string
	if v.Kind() == reflect.String {
		s = v.String()
	} else {
		s = fmt.Sprint(v.Interface())
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
