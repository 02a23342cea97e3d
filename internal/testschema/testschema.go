// Package testschema builds minimal binary reflection schemas in-process,
// for tests that need a real schema.Registry without a flatc toolchain.
// It exists purely to support _test.go files across this module (schema,
// record, transcode) and is not imported by any non-test code.
package testschema

import (
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/google/flatbuffers/reflection"
)

// FieldSpec describes one field of a test object.
type FieldSpec struct {
	Name    string
	Base    reflection.BaseType
	Element reflection.BaseType // meaningful only when Base == BaseTypeVector
	Of      string              // referenced object name, for Obj fields and vector-of-Obj elements
}

// ObjectSpec describes one table in the test schema.
type ObjectSpec struct {
	Name   string
	Fields []FieldSpec
}

// Build constructs a binary reflection schema for objects, rooted at
// rootName, and returns it alongside a placeholder text blob. Go has no
// flatc-equivalent text-schema compiler, so schema.Registry's reserializer
// only checks the text blob is non-empty and zero-terminated; it never
// parses its content (see internal/schema/reserializer.go's doc comment).
func Build(objects []ObjectSpec, rootName string) (text, binary []byte) {
	text = []byte("// placeholder text schema\x00")

	nameToIdx := make(map[string]int, len(objects))
	for i, o := range objects {
		nameToIdx[o.Name] = i
	}

	b := flatbuffers.NewBuilder(1024)
	objOffsets := make([]flatbuffers.UOffsetT, len(objects))

	for i, o := range objects {
		fieldOffsets := make([]flatbuffers.UOffsetT, len(o.Fields))
		for j, f := range o.Fields {
			nameOff := b.CreateString(f.Name)

			reflection.TypeStart(b)
			reflection.TypeAddBaseType(b, f.Base)
			if f.Base == reflection.BaseTypeVector {
				reflection.TypeAddElement(b, f.Element)
			}
			if f.Base == reflection.BaseTypeObj || (f.Base == reflection.BaseTypeVector && f.Element == reflection.BaseTypeObj) {
				idx, ok := nameToIdx[f.Of]
				if !ok {
					panic("testschema: unknown referenced object " + f.Of)
				}
				reflection.TypeAddIndex(b, int16(idx))
			}
			typeOff := reflection.TypeEnd(b)

			reflection.FieldStart(b)
			reflection.FieldAddName(b, nameOff)
			reflection.FieldAddType(b, typeOff)
			reflection.FieldAddId(b, uint16(j))
			reflection.FieldAddOffset(b, uint16(4+2*j))
			fieldOffsets[j] = reflection.FieldEnd(b)
		}

		reflection.ObjectStartFieldsVector(b, len(fieldOffsets))
		for k := len(fieldOffsets) - 1; k >= 0; k-- {
			b.PrependUOffsetT(fieldOffsets[k])
		}
		fieldsVec := b.EndVector(len(fieldOffsets))

		nameOff := b.CreateString(o.Name)

		reflection.ObjectStart(b)
		reflection.ObjectAddName(b, nameOff)
		reflection.ObjectAddFields(b, fieldsVec)
		objOffsets[i] = reflection.ObjectEnd(b)
	}

	reflection.SchemaStartObjectsVector(b, len(objOffsets))
	for k := len(objOffsets) - 1; k >= 0; k-- {
		b.PrependUOffsetT(objOffsets[k])
	}
	objectsVec := b.EndVector(len(objOffsets))

	rootIdx, ok := nameToIdx[rootName]
	if !ok {
		panic("testschema: unknown root object " + rootName)
	}

	reflection.SchemaStart(b)
	reflection.SchemaAddObjects(b, objectsVec)
	reflection.SchemaAddRootTable(b, objOffsets[rootIdx])
	schemaOff := reflection.SchemaEnd(b)
	b.Finish(schemaOff)

	binary = b.FinishedBytes()
	return text, binary
}
