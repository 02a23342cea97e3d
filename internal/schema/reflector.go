package schema

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/google/flatbuffers/reflection"
)

// reflector exposes object/field metadata by name and index over a parsed
// binary reflection schema. It never owns JSON text; it is a read-only view
// into the schema blob.
type reflector struct {
	schema *reflection.Schema
	byName map[string]int
}

// newReflector parses buf as a binary reflection schema and indexes its
// objects by fully-qualified name. buf must pass a structural sanity check
// before use; Go's flatbuffers runtime does not expose the C++
// reflection::VerifySchemaBuffer, so the check here is a hand-rolled
// equivalent: decode the root and confirm the object table is internally
// consistent (see verifySchema).
func newReflector(buf []byte) (*reflector, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("schema: empty binary schema blob")
	}
	s, err := decodeSchema(buf)
	if err != nil {
		return nil, err
	}
	if err := verifySchema(s); err != nil {
		return nil, err
	}
	r := &reflector{schema: s, byName: make(map[string]int, s.ObjectsLength())}
	for i := 0; i < s.ObjectsLength(); i++ {
		obj := new(reflection.Object)
		if !s.Objects(obj, i) {
			return nil, fmt.Errorf("schema: malformed object table entry %d", i)
		}
		r.byName[string(obj.Name())] = i
	}
	return r, nil
}

// decodeSchema recovers from the panics the generated flatbuffers accessors
// raise on a truncated or corrupt buffer, turning them into plain errors --
// the reflection-level analogue of a verifier rejecting a bad buffer.
func decodeSchema(buf []byte) (s *reflection.Schema, err error) {
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = fmt.Errorf("schema: corrupt binary schema: %v", r)
		}
	}()
	s = reflection.GetRootAsSchema(buf, flatbuffers.GetUOffsetT(buf))
	return s, nil
}

// verifySchema performs the structural checks Go's runtime leaves to the
// caller: a declared root table, and every object-typed field indexing an
// object table entry that actually exists. Enum indices are not checked.
func verifySchema(s *reflection.Schema) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("schema: corrupt binary schema: %v", r)
		}
	}()
	root := s.RootTable(new(reflection.Object))
	if root == nil {
		return fmt.Errorf("schema: binary schema has no root table")
	}
	objCount := s.ObjectsLength()
	for i := 0; i < objCount; i++ {
		obj := new(reflection.Object)
		if !s.Objects(obj, i) {
			return fmt.Errorf("schema: malformed object table entry %d", i)
		}
		for j := 0; j < obj.FieldsLength(); j++ {
			f := new(reflection.Field)
			if !obj.Fields(f, j) {
				return fmt.Errorf("schema: malformed field %d on object %q", j, obj.Name())
			}
			t := f.Type(nil)
			if t == nil {
				return fmt.Errorf("schema: field %q on object %q has no type", f.Name(), obj.Name())
			}
			if isObjectType(t.BaseType()) {
				idx := int(t.Index())
				if idx < 0 || idx >= objCount {
					return fmt.Errorf("schema: field %q on object %q references out-of-range object %d", f.Name(), obj.Name(), idx)
				}
			}
		}
	}
	return nil
}

func isObjectType(bt reflection.BaseType) bool {
	return bt == reflection.BaseTypeObj
}

func isVectorOfObjectType(t *reflection.Type) bool {
	return t.BaseType() == reflection.BaseTypeVector && t.Element() == reflection.BaseTypeObj
}

// objectByName returns the reflection object for a fully-qualified type
// name.
func (r *reflector) objectByName(name string) (*reflection.Object, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.objectByIndex(idx)
}

// objectByIndex indexes directly into the reflector's object table.
func (r *reflector) objectByIndex(i int) (*reflection.Object, bool) {
	if i < 0 || i >= r.schema.ObjectsLength() {
		return nil, false
	}
	obj := new(reflection.Object)
	if !r.schema.Objects(obj, i) {
		return nil, false
	}
	return obj, true
}

// rootObject returns the schema's declared root table.
func (r *reflector) rootObject() (*reflection.Object, bool) {
	obj := r.schema.RootTable(new(reflection.Object))
	if obj == nil {
		return nil, false
	}
	return obj, true
}

// fieldByName looks up a field on obj, the accessor the keyed-vector rewrite
// and path-descent logic in internal/transcode both need.
func fieldByName(obj *reflection.Object, name string) (*reflection.Field, bool) {
	for i := 0; i < obj.FieldsLength(); i++ {
		f := new(reflection.Field)
		if !obj.Fields(f, i) {
			continue
		}
		if string(f.Name()) == name {
			return f, true
		}
	}
	return nil, false
}

// isKeyedVectorTable reports whether obj has both an "id" field and a "val"
// field whose type is an object -- the shape rewritten as one vector entry
// rather than a nested object.
func isKeyedVectorTable(obj *reflection.Object) bool {
	_, hasID := fieldByName(obj, "id")
	val, hasVal := fieldByName(obj, "val")
	if !hasID || !hasVal {
		return false
	}
	t := val.Type(nil)
	return t != nil && isObjectType(t.BaseType())
}
