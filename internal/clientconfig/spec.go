// Package clientconfig is a small fluent field-spec builder: a
// value-receiver FieldSpec whose methods each return a modified copy
// (Description, Optional, Advanced, HasDefault), used here to
// describe and validate the handful of settings an embedded client
// actually needs -- endpoint, TLS, JWT signing, retry/backoff, and schema
// blob locations -- rather than a full pluggable component-registry config
// surface (inputs/outputs/processors/caches/...), none of which this
// module has.
package clientconfig

// FieldType names the accepted shape of a field's value.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeInt      FieldType = "int"
	FieldTypeBool     FieldType = "bool"
	FieldTypeDuration FieldType = "duration"
	FieldTypeObject   FieldType = "object"
)

// FieldSpec describes one config field, mirroring internal/docs/field.go's
// FieldSpec shape scaled down to what this module needs: no linting hooks,
// no component-type registry, no array/map kinds (this config has neither).
type FieldSpec struct {
	Name        string
	Type        FieldType
	description string
	isOptional  bool
	isAdvanced  bool
	hasDefault  bool
	def         any
	children    []FieldSpec
}

func newField(name string, t FieldType) FieldSpec {
	return FieldSpec{Name: name, Type: t}
}

// NewStringField constructs a required, no-default string field.
func NewStringField(name string) FieldSpec { return newField(name, FieldTypeString) }

// NewIntField constructs a required, no-default int field.
func NewIntField(name string) FieldSpec { return newField(name, FieldTypeInt) }

// NewBoolField constructs a required, no-default bool field.
func NewBoolField(name string) FieldSpec { return newField(name, FieldTypeBool) }

// NewDurationField constructs a required, no-default duration field (config
// value given as a Go duration string, e.g. "30s").
func NewDurationField(name string) FieldSpec { return newField(name, FieldTypeDuration) }

// NewObjectField groups children under a nested object field.
func NewObjectField(name string, children ...FieldSpec) FieldSpec {
	f := newField(name, FieldTypeObject)
	f.children = children
	return f
}

// Description attaches documentation text, returning a modified copy.
func (f FieldSpec) Description(d string) FieldSpec {
	f.description = d
	return f
}

// Optional marks the field as not required when no default is given.
func (f FieldSpec) Optional() FieldSpec {
	f.isOptional = true
	return f
}

// Advanced marks the field as one most configs won't need to set.
func (f FieldSpec) Advanced() FieldSpec {
	f.isAdvanced = true
	return f
}

// HasDefault attaches a default value, implying Optional.
func (f FieldSpec) HasDefault(v any) FieldSpec {
	f.hasDefault = true
	f.def = v
	f.isOptional = true
	return f
}

// Children returns the nested fields of an object field, or nil for a
// scalar field.
func (f FieldSpec) Children() []FieldSpec {
	return f.children
}
