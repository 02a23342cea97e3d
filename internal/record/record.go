// Package record is the generic record parser: given a JSON text and a
// target record type name, it reserializes and verifies the text against a
// schema.Registry and materializes a typed value.
//
// There is no compile-time struct type per schema type here. A
// flatc-generated Go struct per schema type would need a code generation
// step this module doesn't have, and can't safely be hand-authored one
// struct per type the caller might name at runtime. Record stands in for
// that generated type: a dynamically-typed, schema-validated value carrying
// its own type name, backed by github.com/Jeffail/gabs/v2 (a decoded,
// generically-typed container, the same shape used elsewhere for
// decoded-but-untyped structured values). The schema still drives the
// encode/decode walk field-by-field; what's missing is only the static Go
// type, not the validation.
package record

import (
	"github.com/Jeffail/gabs/v2"
)

// Record is the typed record value: an in-memory representation of a
// parsed record of a specific type, produced by Parse and delivered to a
// subscription's sink. It owns its own storage: the
// gabs.Container underneath is never aliased back into any buffer the
// caller might reuse.
type Record struct {
	typeName string
	data     *gabs.Container
}

// TypeName is the fully-qualified schema type name this record was parsed
// against.
func (r *Record) TypeName() string {
	if r == nil {
		return ""
	}
	return r.typeName
}

// Field returns the decoded value of a top-level field by name: string,
// bool, int64, float64, *Record (nested object), or []*Record /
// []string / []int64 / []float64 / []bool (vector fields), matching whatever
// decodeTable placed there. ok is false if the field was absent (schema
// default applies and is not materialized here).
func (r *Record) Field(name string) (interface{}, bool) {
	if r == nil || !r.data.Exists(name) {
		return nil, false
	}
	return r.data.Search(name).Data(), true
}

// String is a typed convenience accessor over Field.
func (r *Record) String(name string) (string, bool) {
	v, ok := r.Field(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int64 is a typed convenience accessor over Field.
func (r *Record) Int64(name string) (int64, bool) {
	v, ok := r.Field(name)
	if !ok {
		return 0, false
	}
	i, ok := v.(int64)
	return i, ok
}

// Float64 is a typed convenience accessor over Field.
func (r *Record) Float64(name string) (float64, bool) {
	v, ok := r.Field(name)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Bool is a typed convenience accessor over Field.
func (r *Record) Bool(name string) (bool, bool) {
	v, ok := r.Field(name)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Nested is a typed convenience accessor for an object-typed field.
func (r *Record) Nested(name string) (*Record, bool) {
	v, ok := r.Field(name)
	if !ok {
		return nil, false
	}
	nested, ok := v.(*Record)
	return nested, ok
}

// Vector is a typed convenience accessor for a vector-of-object field.
func (r *Record) Vector(name string) ([]*Record, bool) {
	v, ok := r.Field(name)
	if !ok {
		return nil, false
	}
	vec, ok := v.([]*Record)
	return vec, ok
}

// Raw flattens the whole record (recursing into nested/vector fields) into
// plain maps/slices/scalars, for callers -- like a display or logging path
// -- that have no compile-time knowledge of the schema and just want
// something marshalable.
func (r *Record) Raw() map[string]any {
	if r == nil {
		return nil
	}
	out := map[string]any{"_type": r.typeName}
	for name := range r.data.ChildrenMap() {
		v, _ := r.Field(name)
		out[name] = flattenValue(v)
	}
	return out
}

func flattenValue(v any) any {
	switch t := v.(type) {
	case *Record:
		return t.Raw()
	case []*Record:
		out := make([]any, len(t))
		for i, nested := range t {
			out[i] = nested.Raw()
		}
		return out
	default:
		return v
	}
}
