package schema

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/google/flatbuffers/reflection"
)

// reserializer turns JSON text into a verified binary record under a named
// root type. A compiled-text-schema-driven parser would need a flatc-style
// text-schema compiler, which Go's flatbuffers runtime doesn't have; this
// reserializer is reflection-driven instead: it materializes the JSON into
// a generic container (github.com/Jeffail/gabs/v2, already carried for
// internal/record) and walks it field-by-field guided by the binary
// reflection schema's object/field metadata, building the flatbuffers
// buffer bottom-up as flatbuffers requires (child tables/vectors/strings
// must be finished before the parent table that references them).
//
// The trailing-zero-terminated text form of the schema is still validated
// at Init time for parity with the two-views invariant; it does not drive
// the encoding. The JSON text is parsed strictly (gabs.ParseJSON, i.e.
// encoding/json): trailing commas and unquoted keys are rejected here, and
// the recorded lenient options are not read.
type reserializer struct {
	lenient jsonOptions
}

type jsonOptions struct {
	allowTrailingCommas bool
	allowUnquotedKeys   bool
}

func newReserializer(textBlob []byte) (*reserializer, error) {
	if len(textBlob) == 0 {
		return nil, fmt.Errorf("schema: empty text schema blob")
	}
	if textBlob[len(textBlob)-1] != 0 {
		return nil, fmt.Errorf("schema: text schema blob must end in a zero byte")
	}
	// Unknown fields are silently ignored (encodeTable only visits schema
	// fields). The lenient flags below are fixed policy, not read out of the
	// text schema's content (Go has no parser for that content), and nothing
	// reads them: reserializeToBinary's strict parse rejects trailing commas
	// and unquoted keys.
	return &reserializer{lenient: jsonOptions{allowTrailingCommas: true, allowUnquotedKeys: true}}, nil
}

// reserializeToBinary parses jsonText under rootTypeName, verifies, and
// returns the binary record. It returns an error for every rewrite-mismatch
// / verifier-failure case; callers treat any error the same way (drop the
// subtree, latch the sticky parse error).
func (rs *reserializer) reserializeToBinary(r *reflector, jsonText []byte, rootTypeName string) ([]byte, error) {
	rootObj, ok := r.objectByName(rootTypeName)
	if !ok {
		return nil, fmt.Errorf("schema: unknown root type %q", rootTypeName)
	}
	container, err := gabs.ParseJSON(jsonText)
	if err != nil {
		return nil, fmt.Errorf("schema: invalid JSON under root %q: %w", rootTypeName, err)
	}
	b := flatbuffers.NewBuilder(1024)
	off, err := encodeTable(b, r, rootObj, container)
	if err != nil {
		return nil, fmt.Errorf("schema: reserialize under root %q: %w", rootTypeName, err)
	}
	b.Finish(off)
	buf := b.FinishedBytes()
	out := make([]byte, len(buf))
	copy(out, buf)
	if err := verifyRecord(r, rootObj, out); err != nil {
		return nil, fmt.Errorf("schema: verifier failure under root %q: %w", rootTypeName, err)
	}
	return out, nil
}

// encodeTable builds one flatbuffers table bottom-up: every child
// string/table/vector is fully built and finished before StartObject, since
// a table's vtable can only reference already-written offsets.
func encodeTable(b *flatbuffers.Builder, r *reflector, obj *reflection.Object, c *gabs.Container) (flatbuffers.UOffsetT, error) {
	type pending struct {
		id  uint16
		off flatbuffers.UOffsetT
	}
	var offsets []pending

	numFields := obj.FieldsLength()
	for i := 0; i < numFields; i++ {
		f := new(reflection.Field)
		if !obj.Fields(f, i) {
			continue
		}
		name := string(f.Name())
		if !c.Exists(name) {
			continue
		}
		t := f.Type(nil)
		switch t.BaseType() {
		case reflection.BaseTypeString:
			s, ok := c.Search(name).Data().(string)
			if !ok {
				return 0, fmt.Errorf("field %q: expected string", name)
			}
			offsets = append(offsets, pending{f.Id(), b.CreateString(s)})
		case reflection.BaseTypeObj:
			childObj, ok := r.objectByIndex(int(t.Index()))
			if !ok {
				return 0, fmt.Errorf("field %q: unresolved object type", name)
			}
			off, err := encodeTable(b, r, childObj, c.Search(name))
			if err != nil {
				return 0, fmt.Errorf("field %q: %w", name, err)
			}
			offsets = append(offsets, pending{f.Id(), off})
		case reflection.BaseTypeVector:
			off, err := encodeVector(b, r, t, c.Search(name))
			if err != nil {
				return 0, fmt.Errorf("field %q: %w", name, err)
			}
			offsets = append(offsets, pending{f.Id(), off})
		}
	}

	b.StartObject(numFields)
	for i := 0; i < numFields; i++ {
		f := new(reflection.Field)
		if !obj.Fields(f, i) {
			continue
		}
		name := string(f.Name())
		if !c.Exists(name) {
			continue
		}
		t := f.Type(nil)
		if err := prependScalarSlot(b, t.BaseType(), f.Id(), c.Search(name)); err != nil && !isOffsetType(t.BaseType()) {
			return 0, fmt.Errorf("field %q: %w", name, err)
		}
	}
	for _, p := range offsets {
		b.PrependUOffsetTSlot(int(p.id), p.off, 0)
	}
	return b.EndObject(), nil
}

func isOffsetType(bt reflection.BaseType) bool {
	switch bt {
	case reflection.BaseTypeString, reflection.BaseTypeObj, reflection.BaseTypeVector, reflection.BaseTypeUnion:
		return true
	default:
		return false
	}
}

// prependScalarSlot handles the plain scalar BaseTypes; offset-typed fields
// (string/table/vector) fall to the default case and return an error, which
// the caller ignores for those types and instead prepends their
// already-built offsets after the scalar slots.
func prependScalarSlot(b *flatbuffers.Builder, bt reflection.BaseType, id uint16, c *gabs.Container) error {
	data := c.Data()
	switch bt {
	case reflection.BaseTypeBool:
		v, ok := data.(bool)
		if !ok {
			return fmt.Errorf("expected bool")
		}
		b.PrependBoolSlot(int(id), v, false)
	case reflection.BaseTypeByte:
		b.PrependInt8Slot(int(id), int8(asInt64(data)), 0)
	case reflection.BaseTypeUByte:
		b.PrependUint8Slot(int(id), uint8(asInt64(data)), 0)
	case reflection.BaseTypeShort:
		b.PrependInt16Slot(int(id), int16(asInt64(data)), 0)
	case reflection.BaseTypeUShort:
		b.PrependUint16Slot(int(id), uint16(asInt64(data)), 0)
	case reflection.BaseTypeInt:
		b.PrependInt32Slot(int(id), int32(asInt64(data)), 0)
	case reflection.BaseTypeUInt:
		b.PrependUint32Slot(int(id), uint32(asInt64(data)), 0)
	case reflection.BaseTypeLong:
		b.PrependInt64Slot(int(id), asInt64(data), 0)
	case reflection.BaseTypeULong:
		b.PrependUint64Slot(int(id), uint64(asInt64(data)), 0)
	case reflection.BaseTypeFloat:
		b.PrependFloat32Slot(int(id), float32(asFloat64(data)), 0)
	case reflection.BaseTypeDouble:
		b.PrependFloat64Slot(int(id), asFloat64(data), 0)
	default:
		return fmt.Errorf("unhandled scalar base type %v", bt)
	}
	return nil
}

// asInt64 accepts the numeric shapes a gabs container can hold:
// gabs.ParseJSON decodes every JSON number as float64 (so integers beyond
// 2^53 lose precision), and int64 is accepted as well. The destination
// field's declared schema type drives the target width, trusted over the
// source literal's own shape.
func asInt64(data interface{}) int64 {
	switch v := data.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func asFloat64(data interface{}) float64 {
	switch v := data.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func encodeVector(b *flatbuffers.Builder, r *reflector, t *reflection.Type, c *gabs.Container) (flatbuffers.UOffsetT, error) {
	children, err := c.Children()
	if err != nil {
		return 0, fmt.Errorf("expected array")
	}
	n := len(children)

	switch t.Element() {
	case reflection.BaseTypeObj:
		childObj, ok := r.objectByIndex(int(t.Index()))
		if !ok {
			return 0, fmt.Errorf("vector: unresolved object element type")
		}
		elemOffs := make([]flatbuffers.UOffsetT, n)
		for i, item := range children {
			off, err := encodeTable(b, r, childObj, item)
			if err != nil {
				return 0, fmt.Errorf("vector[%d]: %w", i, err)
			}
			elemOffs[i] = off
		}
		b.StartVector(4, n, 4)
		for i := n - 1; i >= 0; i-- {
			b.PrependUOffsetT(elemOffs[i])
		}
		return b.EndVector(n), nil

	case reflection.BaseTypeString:
		elemOffs := make([]flatbuffers.UOffsetT, n)
		for i, item := range children {
			s, ok := item.Data().(string)
			if !ok {
				return 0, fmt.Errorf("vector[%d]: expected string", i)
			}
			elemOffs[i] = b.CreateString(s)
		}
		b.StartVector(4, n, 4)
		for i := n - 1; i >= 0; i-- {
			b.PrependUOffsetT(elemOffs[i])
		}
		return b.EndVector(n), nil

	default:
		return encodeScalarVector(b, t.Element(), children)
	}
}

func encodeScalarVector(b *flatbuffers.Builder, elem reflection.BaseType, children []*gabs.Container) (flatbuffers.UOffsetT, error) {
	n := len(children)
	size, err := scalarSize(elem)
	if err != nil {
		return 0, err
	}
	b.StartVector(size, n, size)
	for i := n - 1; i >= 0; i-- {
		data := children[i].Data()
		switch elem {
		case reflection.BaseTypeBool:
			v, _ := data.(bool)
			b.PrependBool(v)
		case reflection.BaseTypeByte:
			b.PrependInt8(int8(asInt64(data)))
		case reflection.BaseTypeUByte:
			b.PrependUint8(uint8(asInt64(data)))
		case reflection.BaseTypeShort:
			b.PrependInt16(int16(asInt64(data)))
		case reflection.BaseTypeUShort:
			b.PrependUint16(uint16(asInt64(data)))
		case reflection.BaseTypeInt:
			b.PrependInt32(int32(asInt64(data)))
		case reflection.BaseTypeUInt:
			b.PrependUint32(uint32(asInt64(data)))
		case reflection.BaseTypeLong:
			b.PrependInt64(asInt64(data))
		case reflection.BaseTypeULong:
			b.PrependUint64(uint64(asInt64(data)))
		case reflection.BaseTypeFloat:
			b.PrependFloat32(float32(asFloat64(data)))
		case reflection.BaseTypeDouble:
			b.PrependFloat64(asFloat64(data))
		}
	}
	return b.EndVector(n), nil
}

func scalarSize(bt reflection.BaseType) (int, error) {
	switch bt {
	case reflection.BaseTypeBool, reflection.BaseTypeByte, reflection.BaseTypeUByte:
		return 1, nil
	case reflection.BaseTypeShort, reflection.BaseTypeUShort:
		return 2, nil
	case reflection.BaseTypeInt, reflection.BaseTypeUInt, reflection.BaseTypeFloat:
		return 4, nil
	case reflection.BaseTypeLong, reflection.BaseTypeULong, reflection.BaseTypeDouble:
		return 8, nil
	default:
		return 0, fmt.Errorf("unhandled vector element base type %v", bt)
	}
}
