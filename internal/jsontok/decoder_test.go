package jsontok

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures every callback invocation as a flat trace string, so
// tests can assert on tokenizer event order without building a full tree.
type recorder struct {
	trace []string
}

func (r *recorder) SetNull() bool           { r.trace = append(r.trace, "null"); return true }
func (r *recorder) SetBool(b bool) bool     { r.trace = append(r.trace, boolTok(b)); return true }
func (r *recorder) SetInt64(i int64) bool   { r.trace = append(r.trace, "int") ; _ = i; return true }
func (r *recorder) SetNumber(f float64) bool { r.trace = append(r.trace, "num"); _ = f; return true }
func (r *recorder) ParseString(s string) bool {
	r.trace = append(r.trace, "str:"+s)
	return true
}
func (r *recorder) ParseObjectStart() bool { r.trace = append(r.trace, "{"); return true }
func (r *recorder) ParseObjectItem(d *Decoder, key string) bool {
	r.trace = append(r.trace, "key:"+key)
	return d.Parse(r) == nil
}
func (r *recorder) ParseObjectStop() bool { r.trace = append(r.trace, "}"); return true }
func (r *recorder) ParseArrayStart() bool { r.trace = append(r.trace, "["); return true }
func (r *recorder) ParseArrayItem(d *Decoder, index int) bool {
	return d.Parse(r) == nil
}
func (r *recorder) ParseArrayStop(n int) bool { r.trace = append(r.trace, "]"); return true }

func boolTok(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func TestDecoderScalars(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`null`, "null"},
		{`true`, "true"},
		{`false`, "false"},
		{`7`, "int"},
		{`-12`, "int"},
		{`3.5`, "num"},
		{`1e10`, "num"},
		{`"hi"`, "str:hi"},
		{`"a\nb"`, "str:a\nb"},
		{`"A"`, "str:A"},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			rec := &recorder{}
			d := NewDecoder(strings.NewReader(c.in), Options{})
			require.NoError(t, d.Parse(rec))
			assert.Equal(t, []string{c.want}, rec.trace)
		})
	}
}

func TestDecoderObject(t *testing.T) {
	rec := &recorder{}
	d := NewDecoder(strings.NewReader(`{"a":1,"b":"x"}`), Options{})
	require.NoError(t, d.Parse(rec))
	assert.Equal(t, []string{"{", "key:a", "int", "key:b", "str:x", "}"}, rec.trace)
}

func TestDecoderEmptyObjectAndArray(t *testing.T) {
	rec := &recorder{}
	d := NewDecoder(strings.NewReader(`{}`), Options{})
	require.NoError(t, d.Parse(rec))
	assert.Equal(t, []string{"{", "}"}, rec.trace)

	rec2 := &recorder{}
	d2 := NewDecoder(strings.NewReader(`[]`), Options{})
	require.NoError(t, d2.Parse(rec2))
	assert.Equal(t, []string{"[", "]"}, rec2.trace)
}

func TestDecoderNestedArray(t *testing.T) {
	rec := &recorder{}
	d := NewDecoder(strings.NewReader(`[1,[2,3],4]`), Options{})
	require.NoError(t, d.Parse(rec))
	assert.Equal(t, []string{"[", "int", "[", "int", "int", "]", "int", "]"}, rec.trace)
}

func TestDecoderTrailingCommaRejectedByDefault(t *testing.T) {
	d := NewDecoder(strings.NewReader(`{"a":1,}`), Options{})
	err := d.Parse(&recorder{})
	require.Error(t, err)
}

func TestDecoderTrailingCommaAllowed(t *testing.T) {
	rec := &recorder{}
	d := NewDecoder(strings.NewReader(`{"a":1,}`), Options{AllowTrailingCommas: true})
	require.NoError(t, d.Parse(rec))
	assert.Equal(t, []string{"{", "key:a", "int", "}"}, rec.trace)

	rec2 := &recorder{}
	d2 := NewDecoder(strings.NewReader(`[1,2,]`), Options{AllowTrailingCommas: true})
	require.NoError(t, d2.Parse(rec2))
	assert.Equal(t, []string{"[", "int", "int", "]"}, rec2.trace)
}

func TestDecoderUnquotedKeys(t *testing.T) {
	rec := &recorder{}
	d := NewDecoder(strings.NewReader(`{a:1,b:2}`), Options{AllowUnquotedKeys: true})
	require.NoError(t, d.Parse(rec))
	assert.Equal(t, []string{"{", "key:a", "int", "key:b", "int", "}"}, rec.trace)
}

func TestDecoderUnquotedKeysRejectedByDefault(t *testing.T) {
	d := NewDecoder(strings.NewReader(`{a:1}`), Options{})
	err := d.Parse(&recorder{})
	require.Error(t, err)
}

func TestDecoderSyntaxError(t *testing.T) {
	d := NewDecoder(strings.NewReader(`{"a":}`), Options{})
	err := d.Parse(&recorder{})
	require.Error(t, err)
}

// abortingVisitor aborts as soon as it sees the given key, exercising the
// ErrAborted path that Visitor callbacks returning false must produce.
type abortingVisitor struct {
	recorder
	abortOn string
}

func (a *abortingVisitor) ParseObjectItem(d *Decoder, key string) bool {
	if key == a.abortOn {
		return false
	}
	a.trace = append(a.trace, "key:"+key)
	return d.Parse(&a.recorder) == nil
}

func TestDecoderVisitorAbort(t *testing.T) {
	av := &abortingVisitor{abortOn: "b"}
	d := NewDecoder(strings.NewReader(`{"a":1,"b":2}`), Options{})
	err := d.Parse(av)
	require.ErrorIs(t, err, ErrAborted)
}

func TestDecoderEOFAtTopLevel(t *testing.T) {
	d := NewDecoder(strings.NewReader(``), Options{})
	err := d.Parse(&recorder{})
	require.Error(t, err)
}

func TestDecoderSubReaderRecursion(t *testing.T) {
	// ParseObjectItem/ParseArrayItem hand a *Decoder back to the visitor,
	// which must itself call Parse to consume nested values -- verify deep
	// nesting recurses correctly through the shared cursor.
	rec := &recorder{}
	body := `{"users":{"u1":{"profile":{"nick":"a"}}}}`
	d := NewDecoder(strings.NewReader(body), Options{})
	require.NoError(t, d.Parse(rec))
	assert.Equal(t, []string{
		"{", "key:users", "{", "key:u1", "{", "key:profile", "{", "key:nick", "str:a", "}", "}", "}", "}",
	}, rec.trace)
}
