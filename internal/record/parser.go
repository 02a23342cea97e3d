package record

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/google/flatbuffers/reflection"

	"github.com/embeddedrealtime/rtdbclient/internal/schema"
)

// Parse reserializes jsonText under rootTypeName through reg, verifies the
// result, and unpacks it into a Record. Returns (nil, false) on any failure
// -- no partial records are ever produced.
func Parse(reg *schema.Registry, jsonText []byte, rootTypeName string) (*Record, bool) {
	binary, err := reg.ReserializeToBinary(jsonText, rootTypeName)
	if err != nil {
		return nil, false
	}
	return ParseFromBytes(reg, binary, rootTypeName)
}

// ParseFromBytes is parse_from_bytes<T>: skip reserialization and run
// verifier-then-unpack directly against an already-encoded binary record.
func ParseFromBytes(reg *schema.Registry, binary []byte, rootTypeName string) (*Record, bool) {
	obj, err := reg.VerifyBinary(binary, rootTypeName)
	if err != nil {
		return nil, false
	}
	if len(binary) < 4 {
		return nil, false
	}
	n := flatbuffers.GetUOffsetT(binary)
	t := &flatbuffers.Table{Bytes: binary, Pos: n}
	data, err := decodeTable(reg, obj, t)
	if err != nil {
		return nil, false
	}
	return &Record{typeName: rootTypeName, data: data}, true
}

// decodeTable is the unpack half of the reserializer's encode step: it
// walks the same reflection metadata in reverse, over an already-verified
// buffer, producing a gabs.Container tree so Record's accessors have
// something uniform to read. This is what makes decoding idempotent:
// decoding is a pure function of the verified bytes, never of how those
// bytes were produced.
func decodeTable(reg *schema.Registry, obj *reflection.Object, t *flatbuffers.Table) (*gabs.Container, error) {
	out := gabs.New()
	for i := 0; i < obj.FieldsLength(); i++ {
		f := new(reflection.Field)
		if !obj.Fields(f, i) {
			continue
		}
		name := string(f.Name())
		vtOff := flatbuffers.VOffsetT(4 + 2*f.Id())
		o := flatbuffers.UOffsetT(t.Offset(vtOff))
		if o == 0 {
			continue
		}
		ty := f.Type(nil)
		switch ty.BaseType() {
		case reflection.BaseTypeBool:
			if _, err := out.Set(t.GetBool(o+t.Pos), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeByte:
			if _, err := out.Set(int64(t.GetInt8(o+t.Pos)), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeUByte:
			if _, err := out.Set(int64(t.GetUint8(o+t.Pos)), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeShort:
			if _, err := out.Set(int64(t.GetInt16(o+t.Pos)), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeUShort:
			if _, err := out.Set(int64(t.GetUint16(o+t.Pos)), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeInt:
			if _, err := out.Set(int64(t.GetInt32(o+t.Pos)), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeUInt:
			if _, err := out.Set(int64(t.GetUint32(o+t.Pos)), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeLong:
			if _, err := out.Set(t.GetInt64(o+t.Pos), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeULong:
			if _, err := out.Set(int64(t.GetUint64(o+t.Pos)), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeFloat:
			if _, err := out.Set(float64(t.GetFloat32(o+t.Pos)), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeDouble:
			if _, err := out.Set(t.GetFloat64(o+t.Pos), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeString:
			if _, err := out.Set(string(t.ByteVector(o+t.Pos)), name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeObj:
			childObj, ok := reg.ObjectByIndexFor(ty)
			if !ok {
				return nil, fmt.Errorf("record: unresolved object field %q", name)
			}
			pos := t.Indirect(o + t.Pos)
			child := &flatbuffers.Table{Bytes: t.Bytes, Pos: pos}
			childData, err := decodeTable(reg, childObj, child)
			if err != nil {
				return nil, err
			}
			if _, err := out.Set(&Record{typeName: string(childObj.Name()), data: childData}, name); err != nil {
				return nil, err
			}
		case reflection.BaseTypeVector:
			vec, err := decodeVector(reg, ty, t, o)
			if err != nil {
				return nil, err
			}
			if _, err := out.Set(vec, name); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func decodeVector(reg *schema.Registry, ty *reflection.Type, t *flatbuffers.Table, o flatbuffers.UOffsetT) (interface{}, error) {
	n := t.VectorLen(o)
	vecStart := t.Vector(o)

	switch ty.Element() {
	case reflection.BaseTypeObj:
		childObj, ok := reg.ObjectByIndexFor(ty)
		if !ok {
			return nil, fmt.Errorf("record: unresolved vector element type")
		}
		out := make([]*Record, n)
		for j := 0; j < n; j++ {
			elemPtr := vecStart + flatbuffers.UOffsetT(j)*4
			pos := t.Indirect(elemPtr)
			child := &flatbuffers.Table{Bytes: t.Bytes, Pos: pos}
			data, err := decodeTable(reg, childObj, child)
			if err != nil {
				return nil, err
			}
			out[j] = &Record{typeName: string(childObj.Name()), data: data}
		}
		return out, nil
	case reflection.BaseTypeString:
		out := make([]string, n)
		for j := 0; j < n; j++ {
			elemPtr := vecStart + flatbuffers.UOffsetT(j)*4
			out[j] = string(t.ByteVector(elemPtr))
		}
		return out, nil
	default:
		return decodeScalarVector(ty.Element(), t, vecStart, n)
	}
}

func decodeScalarVector(elem reflection.BaseType, t *flatbuffers.Table, start flatbuffers.UOffsetT, n int) (interface{}, error) {
	switch elem {
	case reflection.BaseTypeFloat, reflection.BaseTypeDouble:
		out := make([]float64, n)
		for j := 0; j < n; j++ {
			out[j] = readFloat(elem, t, start, j)
		}
		return out, nil
	case reflection.BaseTypeBool:
		out := make([]bool, n)
		for j := 0; j < n; j++ {
			out[j] = t.GetBool(start + flatbuffers.UOffsetT(j))
		}
		return out, nil
	default:
		out := make([]int64, n)
		for j := 0; j < n; j++ {
			out[j] = readInt(elem, t, start, j)
		}
		return out, nil
	}
}

func readInt(elem reflection.BaseType, t *flatbuffers.Table, start flatbuffers.UOffsetT, j int) int64 {
	switch elem {
	case reflection.BaseTypeByte:
		return int64(t.GetInt8(start + flatbuffers.UOffsetT(j)))
	case reflection.BaseTypeUByte:
		return int64(t.GetUint8(start + flatbuffers.UOffsetT(j)))
	case reflection.BaseTypeShort:
		return int64(t.GetInt16(start + flatbuffers.UOffsetT(j*2)))
	case reflection.BaseTypeUShort:
		return int64(t.GetUint16(start + flatbuffers.UOffsetT(j*2)))
	case reflection.BaseTypeInt:
		return int64(t.GetInt32(start + flatbuffers.UOffsetT(j*4)))
	case reflection.BaseTypeUInt:
		return int64(t.GetUint32(start + flatbuffers.UOffsetT(j*4)))
	case reflection.BaseTypeLong:
		return t.GetInt64(start + flatbuffers.UOffsetT(j*8))
	case reflection.BaseTypeULong:
		return int64(t.GetUint64(start + flatbuffers.UOffsetT(j*8)))
	default:
		return 0
	}
}

func readFloat(elem reflection.BaseType, t *flatbuffers.Table, start flatbuffers.UOffsetT, j int) float64 {
	if elem == reflection.BaseTypeFloat {
		return float64(t.GetFloat32(start + flatbuffers.UOffsetT(j*4)))
	}
	return t.GetFloat64(start + flatbuffers.UOffsetT(j*8))
}
