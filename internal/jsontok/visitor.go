// Package jsontok is a pull-tokenizer for JSON. It drives a Visitor through
// a fixed set of callbacks as it walks a byte stream, one value at a time,
// without ever materializing the whole document in memory.
package jsontok

// Visitor receives tokenizer callbacks in document order. Scalar callbacks
// return false to abort parsing immediately; ParseObjectItem and
// ParseArrayItem additionally own recursion into their item's value by
// calling Decoder.Parse on the *Decoder they are handed, and their own false
// return aborts in the same way.
//
// This is the closed callback set a JSON pull-tokenizer needs: no other
// shape of container or scalar exists in JSON.
type Visitor interface {
	SetNull() bool
	SetBool(b bool) bool
	SetInt64(i int64) bool
	SetNumber(f float64) bool
	ParseString(s string) bool

	ParseObjectStart() bool
	// ParseObjectItem is called once the key and the following ':' have been
	// consumed. The callee must call d.Parse(v) to consume the item's value.
	ParseObjectItem(d *Decoder, key string) bool
	ParseObjectStop() bool

	ParseArrayStart() bool
	// ParseArrayItem is called once the item's leading comma (if any) has
	// been consumed. The callee must call d.Parse(v) to consume the item's
	// value.
	ParseArrayItem(d *Decoder, index int) bool
	ParseArrayStop(n int) bool
}
