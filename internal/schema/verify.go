package schema

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/google/flatbuffers/reflection"
)

// verifyRecord is a hand-rolled structural verifier run against a named
// root type. Go's flatbuffers runtime does not export a schema-aware
// verifier, so this walks the table tree the same way generated accessor
// code would, recovering from the panics a corrupt offset would otherwise
// raise and turning them into an ordinary verifier-failure error.
func verifyRecord(r *reflector, obj *reflection.Object, buf []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("schema: panic verifying buffer: %v", rec)
		}
	}()
	if len(buf) < 4 {
		return fmt.Errorf("schema: buffer too short to contain a root offset")
	}
	n := flatbuffers.GetUOffsetT(buf)
	if n == 0 || int(n) >= len(buf) {
		return fmt.Errorf("schema: root offset %d out of range", n)
	}
	t := &flatbuffers.Table{Bytes: buf, Pos: n}
	return verifyTable(r, obj, t, 0)
}

// maxVerifyDepth guards against a cyclic or pathologically deep schema
// driving unbounded recursion over attacker-controlled bytes.
const maxVerifyDepth = 64

func verifyTable(r *reflector, obj *reflection.Object, t *flatbuffers.Table, depth int) error {
	if depth > maxVerifyDepth {
		return fmt.Errorf("schema: verification depth exceeded %d", maxVerifyDepth)
	}
	for i := 0; i < obj.FieldsLength(); i++ {
		f := new(reflection.Field)
		if !obj.Fields(f, i) {
			continue
		}
		vtOff := flatbuffers.VOffsetT(4 + 2*f.Id())
		o := flatbuffers.UOffsetT(t.Offset(vtOff))
		if o == 0 {
			continue
		}
		ty := f.Type(nil)
		switch ty.BaseType() {
		case reflection.BaseTypeObj:
			childObj, ok := r.objectByIndex(int(ty.Index()))
			if !ok {
				return fmt.Errorf("field %q: unresolved object type", f.Name())
			}
			pos := t.Indirect(o + t.Pos)
			child := &flatbuffers.Table{Bytes: t.Bytes, Pos: pos}
			if err := verifyTable(r, childObj, child, depth+1); err != nil {
				return fmt.Errorf("field %q: %w", f.Name(), err)
			}
		case reflection.BaseTypeVector:
			if ty.Element() != reflection.BaseTypeObj {
				continue
			}
			childObj, ok := r.objectByIndex(int(ty.Index()))
			if !ok {
				return fmt.Errorf("field %q: unresolved vector element type", f.Name())
			}
			vecStart := t.Vector(o)
			n := t.VectorLen(o)
			for j := 0; j < n; j++ {
				elemPtr := vecStart + flatbuffers.UOffsetT(j)*4
				pos := t.Indirect(elemPtr)
				child := &flatbuffers.Table{Bytes: t.Bytes, Pos: pos}
				if err := verifyTable(r, childObj, child, depth+1); err != nil {
					return fmt.Errorf("field %q[%d]: %w", f.Name(), j, err)
				}
			}
		case reflection.BaseTypeString:
			_ = t.ByteVector(o + t.Pos)
		}
	}
	return nil
}
