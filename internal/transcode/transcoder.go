// Package transcode implements the streaming JSON-to-record transcoder: a
// jsontok.Visitor that tracks its position in the document as a path of
// object keys, buffers the canonical JSON text of whichever subtree
// currently matches a subscription's pattern, and hands that text off to
// the generic record parser the moment the subtree closes.
//
// A naive implementation would write the matched key's own name as a
// wrapper before recursing into its value. That's harmless for a pattern
// that matches at the document root (nothing is wrapping it) but produces
// an extra, unwanted enclosing field for a pattern that first matches
// partway through the document. This implementation instead detects that
// precise transition -- the enclosing scope was not yet matching but this
// key's value is -- and treats the key's value as a fresh document in its
// own right, deferring all bracket bookkeeping to the value's own
// recursion.
package transcode

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/google/flatbuffers/reflection"

	"github.com/embeddedrealtime/rtdbclient/internal/jsontok"
	"github.com/embeddedrealtime/rtdbclient/internal/record"
	"github.com/embeddedrealtime/rtdbclient/internal/schema"
)

// Transcoder is the streaming visitor. One instance is used for exactly one
// ParseStream call; construct a fresh one (or call clear) per document.
type Transcoder struct {
	reg *schema.Registry

	message Subscription
	errSub  Subscription

	path []string

	emit        bool
	isErrorPath bool

	needsCloseObject bool
	needsCloseArray  bool
	cursor           *reflection.Object

	buf bytes.Buffer

	objDepth int
	arrDepth int

	isParseError bool
}

// NewTranscoder constructs a Transcoder bound to reg. reg is consulted fresh
// on every ParseStream call, so a Reload between calls is picked up
// automatically.
func NewTranscoder(reg *schema.Registry) *Transcoder {
	return &Transcoder{reg: reg}
}

func (t *Transcoder) clear(message, errSub Subscription) {
	t.message = message
	t.errSub = errSub

	t.path = t.path[:0]
	t.emit = false
	t.isErrorPath = false
	t.needsCloseObject = false
	t.needsCloseArray = false
	t.buf.Reset()
	t.objDepth = 0
	t.arrDepth = 0
	t.isParseError = false

	root, _ := t.reg.RootObject()
	t.cursor = root
}

// checkKeyedVector detects the keyed-vector rewrite: a schema field of the
// form {id, val} that should be rewritten as one entry of a vector rather
// than as a nested object. It may advance t.cursor as a side effect (into
// the "val" object type on a keyed-vector match, or into a directly-named
// field's object/vector-element type otherwise) and reports only whether
// the keyed-vector rewrite itself applies to key.
func (t *Transcoder) checkKeyedVector(key string) bool {
	if t.cursor == nil {
		return false
	}
	idField, hasID := t.reg.FieldByName(t.cursor, "id")
	valField, hasVal := t.reg.FieldByName(t.cursor, "val")
	_ = idField
	if hasID && hasVal {
		if valField.Type(nil).BaseType() == reflection.BaseTypeObj {
			if child, ok := t.reg.ObjectByIndexFor(valField.Type(nil)); ok {
				t.cursor = child
				return true
			}
		}
		return false
	}

	f, ok := t.reg.FieldByName(t.cursor, key)
	if !ok {
		return false
	}
	ty := f.Type(nil)
	switch ty.BaseType() {
	case reflection.BaseTypeObj:
		if child, ok := t.reg.ObjectByIndexFor(ty); ok {
			t.cursor = child
		}
	case reflection.BaseTypeVector:
		if ty.Element() == reflection.BaseTypeObj {
			if child, ok := t.reg.ObjectByIndexFor(ty); ok {
				t.cursor = child
			}
		}
	}
	return false
}

// ParseObjectStart implements jsontok.Visitor. Opening "{" is never written
// here: the decision to open is deferred until the first key is seen (or,
// for an empty object, handled in ParseObjectStop).
func (t *Transcoder) ParseObjectStart() bool {
	t.objDepth++
	return true
}

// ParseObjectItem implements jsontok.Visitor, and is the heart of the
// transcoder: it decides, per object key, whether the subtree rooted at
// that key is inside a matched pattern, rewrites keyed-vector fields on the
// fly, and flushes a completed match to its subscription's sink.
func (t *Transcoder) ParseObjectItem(d *jsontok.Decoder, key string) bool {
	reflectionPrev := t.cursor
	keyedVectorFound := t.checkKeyedVector(key)

	pathBeforePush := t.path
	prev := matchState{
		isErrorPath: t.errSub.active() && matches(pathBeforePush, t.errSub.Pattern),
	}
	prev.emit = prev.isErrorPath || (t.message.active() && matches(pathBeforePush, t.message.Pattern))

	t.path = append(t.path, key)
	cur := matchState{
		isErrorPath: t.errSub.active() && matches(t.path, t.errSub.Pattern),
	}
	cur.emit = cur.isErrorPath || (t.message.active() && matches(t.path, t.message.Pattern))

	t.emit = cur.emit
	t.isErrorPath = cur.isErrorPath

	openedKeyedWrapper := false
	if cur.emit && prev.emit {
		if keyedVectorFound {
			if !t.needsCloseArray {
				t.buf.WriteByte('[')
				t.needsCloseArray = true
			} else {
				t.buf.WriteByte(',')
			}
			t.buf.WriteString(`{"id":`)
			writeJSONString(&t.buf, key)
			t.buf.WriteString(`,"val":`)
			openedKeyedWrapper = true
		} else {
			if !t.needsCloseObject {
				t.buf.WriteByte('{')
				t.needsCloseObject = true
			} else {
				t.buf.WriteByte(',')
			}
			writeJSONString(&t.buf, key)
			t.buf.WriteByte(':')
		}
	}
	// else: either not emitting at all, or this key is exactly the
	// transition into a newly-matched subtree (cur.emit && !prev.emit) --
	// in the transition case we deliberately emit no wrapper text here; the
	// value's own recursion (below) reconstructs it as a standalone value.

	savedCloseArray, savedCloseObject := t.needsCloseArray, t.needsCloseObject
	t.needsCloseArray, t.needsCloseObject = false, false

	err := d.Parse(t)

	t.needsCloseArray, t.needsCloseObject = savedCloseArray, savedCloseObject
	t.cursor = reflectionPrev

	t.path = t.path[:len(t.path)-1]

	if err != nil {
		return false
	}

	if openedKeyedWrapper {
		// Each keyed-vector entry's {"id":...,"val":...} wrapper spans only
		// this one source key, not a real JSON object boundary of its own,
		// so nothing else will ever close it: do it here, immediately.
		t.buf.WriteByte('}')
	}

	stillMatches := (t.errSub.active() && matches(t.path, t.errSub.Pattern)) || (t.message.active() && matches(t.path, t.message.Pattern))
	if !stillMatches && cur.emit {
		if !t.process(cur.isErrorPath) {
			t.isParseError = true
		}
		t.emit = false
	}

	return true
}

// ParseObjectStop implements jsontok.Visitor.
func (t *Transcoder) ParseObjectStop() bool {
	t.objDepth--
	if t.emit {
		switch {
		case t.needsCloseArray:
			t.buf.WriteByte(']')
			t.needsCloseArray = false
		case t.needsCloseObject:
			t.buf.WriteByte('}')
			t.needsCloseObject = false
		default:
			// No key ever opened this object: it is genuinely empty.
			t.buf.WriteString("{}")
		}
		if t.objDepth == 0 {
			// Root-level match (an empty pattern matches the document root
			// itself, which never fails the per-key "stillMatches" exit
			// check in ParseObjectItem): flush here instead.
			if !t.process(t.isErrorPath) {
				t.isParseError = true
			}
			t.emit = false
		}
	}
	return true
}

// ParseArrayStart implements jsontok.Visitor. Unlike objects, arrays have no
// wrapper-key ambiguity, so "[" is written immediately rather than lazily.
func (t *Transcoder) ParseArrayStart() bool {
	t.arrDepth++
	if t.emit {
		t.buf.WriteByte('[')
	}
	return true
}

// ParseArrayItem implements jsontok.Visitor.
func (t *Transcoder) ParseArrayItem(d *jsontok.Decoder, index int) bool {
	if t.emit && index > 0 {
		t.buf.WriteByte(',')
	}
	return d.Parse(t) == nil
}

// ParseArrayStop implements jsontok.Visitor.
func (t *Transcoder) ParseArrayStop(n int) bool {
	t.arrDepth--
	if t.emit {
		t.buf.WriteByte(']')
	}
	return true
}

// SetNull implements jsontok.Visitor.
func (t *Transcoder) SetNull() bool {
	if t.emit {
		t.buf.WriteString("null")
	}
	return true
}

// SetBool implements jsontok.Visitor.
func (t *Transcoder) SetBool(b bool) bool {
	if t.emit {
		if b {
			t.buf.WriteString("true")
		} else {
			t.buf.WriteString("false")
		}
	}
	return true
}

// SetInt64 implements jsontok.Visitor.
func (t *Transcoder) SetInt64(i int64) bool {
	if t.emit {
		t.buf.WriteString(strconv.FormatInt(i, 10))
	}
	return true
}

// SetNumber implements jsontok.Visitor, emitting the full, canonical
// decimal literal and letting the destination schema field's own type (see
// internal/schema/reserializer.go's asInt64/asFloat64) decide whether the
// value is ultimately stored as an integer or a float, rather than
// truncating it here.
func (t *Transcoder) SetNumber(f float64) bool {
	if t.emit {
		t.buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return true
}

// ParseString implements jsontok.Visitor.
func (t *Transcoder) ParseString(s string) bool {
	if t.emit {
		writeJSONString(&t.buf, s)
	}
	return true
}

// process hands the accumulated buffer to the matching subscription's sink,
// parsed as that subscription's record type, then resets the buffer for
// whatever comes next. Returns false on a rewrite/parse failure or when the
// sink refuses the record; the caller latches either into isParseError.
func (t *Transcoder) process(isError bool) bool {
	data := append([]byte(nil), t.buf.Bytes()...)
	t.buf.Reset()

	sub := t.message
	if isError {
		sub = t.errSub
	}
	if !sub.active() {
		return true
	}
	rec, ok := record.Parse(t.reg, data, sub.TypeName)
	if !ok {
		return false
	}
	return sub.Sink(rec)
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal on a string only fails for invalid UTF-8; substitute
		// the Unicode replacement character rather than corrupt the buffer.
		b, _ = json.Marshal(string([]rune(s)))
	}
	buf.Write(b)
}
