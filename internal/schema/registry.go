// Package schema owns the two parsed views of one schema file -- a
// reflection form for introspection and a reserializer for turning JSON
// text into a verified binary record -- and keeps them in lockstep.
package schema

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jeffail/shutdown"
	"github.com/google/flatbuffers/reflection"
)

// schemaStaleAfter and schemaCachePurgePeriod set the cache-eviction
// cadence: a Reload doesn't invalidate a state that an in-flight transcoder
// already grabbed, but states that have been superseded for a while are
// freed by a background sweep rather than leaking forever.
const (
	schemaStaleAfter       = 10 * time.Minute
	schemaCachePurgePeriod = time.Minute
)

// state is one immutable (reflector, reserializer) pair. A Registry always
// points at exactly one current state; Reload swaps in a new one without
// disturbing transcoders mid-response against the old one.
type state struct {
	reflect  *reflector
	reserial *reserializer
	retired  time.Time // zero while current
}

// Registry is the process-lifetime, logically-immutable-after-init schema
// registry. It is safe to share across any number of transcoders; Reload is
// the only operation that mutates it, and it does so by atomic pointer
// swap, never in place.
type Registry struct {
	cur atomic.Pointer[state]

	mu      sync.Mutex // guards retired + shutSig lifecycle, not cur
	retired []*state

	shutSig *shutdown.Signaller
	once    sync.Once
}

// NewRegistry constructs an empty, not-ready registry. Call Init before use.
func NewRegistry() *Registry {
	return &Registry{shutSig: shutdown.NewSignaller()}
}

// Init parses both schema blobs. The registry becomes ready only if both
// parses succeed; a failure of either leaves the registry not-ready and
// rejects all parse requests.
func (reg *Registry) Init(textBlob, binaryBlob []byte) error {
	st, err := buildState(textBlob, binaryBlob)
	if err != nil {
		return err
	}
	reg.cur.Store(st)
	reg.once.Do(func() { go reg.purgeLoop() })
	return nil
}

// Reload replaces the registry's current schema with a new pair without
// affecting transcoders already running against the old one. The
// superseded state is retained until it goes stale and is swept by the
// background purge loop.
func (reg *Registry) Reload(textBlob, binaryBlob []byte) error {
	st, err := buildState(textBlob, binaryBlob)
	if err != nil {
		return err
	}
	old := reg.cur.Swap(st)
	if old != nil {
		old.retired = time.Now()
		reg.mu.Lock()
		reg.retired = append(reg.retired, old)
		reg.mu.Unlock()
	}
	return nil
}

func buildState(textBlob, binaryBlob []byte) (*state, error) {
	rs, err := newReserializer(textBlob)
	if err != nil {
		return nil, err
	}
	rf, err := newReflector(binaryBlob)
	if err != nil {
		return nil, err
	}
	return &state{reflect: rf, reserial: rs}, nil
}

// Ready reports whether the registry has a current, usable schema.
func (reg *Registry) Ready() bool {
	return reg.cur.Load() != nil
}

// Close stops the background purge loop. Safe to call once at process
// shutdown; not required for correctness, only for tidy goroutine exit.
func (reg *Registry) Close() {
	reg.shutSig.TriggerHardStop()
}

func (reg *Registry) purgeLoop() {
	t := time.NewTicker(schemaCachePurgePeriod)
	defer t.Stop()
	for {
		select {
		case <-reg.shutSig.HardStopChan():
			return
		case <-t.C:
			reg.purgeStale()
		}
	}
}

func (reg *Registry) purgeStale() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	fresh := reg.retired[:0]
	now := time.Now()
	for _, st := range reg.retired {
		if now.Sub(st.retired) < schemaStaleAfter {
			fresh = append(fresh, st)
		}
	}
	reg.retired = fresh
}

// LookupObjectByName returns the reflection object for a fully-qualified
// type name.
func (reg *Registry) LookupObjectByName(name string) (*reflection.Object, bool) {
	st := reg.cur.Load()
	if st == nil {
		return nil, false
	}
	return st.reflect.objectByName(name)
}

// LookupObjectByIndex indexes directly into the reflected object table.
func (reg *Registry) LookupObjectByIndex(i int) (*reflection.Object, bool) {
	st := reg.cur.Load()
	if st == nil {
		return nil, false
	}
	return st.reflect.objectByIndex(i)
}

// RootObject returns the schema's declared root table.
func (reg *Registry) RootObject() (*reflection.Object, bool) {
	st := reg.cur.Load()
	if st == nil {
		return nil, false
	}
	return st.reflect.rootObject()
}

// ReserializeToBinary parses JSON text against rootTypeName and re-encodes
// it as a verified FlatBuffers binary record.
func (reg *Registry) ReserializeToBinary(jsonText []byte, rootTypeName string) ([]byte, error) {
	st := reg.cur.Load()
	if st == nil {
		return nil, errNotReady
	}
	return st.reserial.reserializeToBinary(st.reflect, jsonText, rootTypeName)
}

// VerifyBinary looks up rootTypeName and runs the structural verifier
// against an already-encoded binary record, without reserializing from
// JSON. It is the verifier-then-unpack precondition for decoding a record
// that is already in binary form.
func (reg *Registry) VerifyBinary(binary []byte, rootTypeName string) (*reflection.Object, error) {
	st := reg.cur.Load()
	if st == nil {
		return nil, errNotReady
	}
	obj, ok := st.reflect.objectByName(rootTypeName)
	if !ok {
		return nil, fmt.Errorf("schema: unknown root type %q", rootTypeName)
	}
	if err := verifyRecord(st.reflect, obj, binary); err != nil {
		return nil, err
	}
	return obj, nil
}

// FieldByName exposes the reflector's field lookup to internal/transcode's
// keyed-vector rewrite and path-descent logic.
func (reg *Registry) FieldByName(obj *reflection.Object, name string) (*reflection.Field, bool) {
	return fieldByName(obj, name)
}

// IsKeyedVectorTable exposes the keyed-vector detection predicate.
func (reg *Registry) IsKeyedVectorTable(obj *reflection.Object) bool {
	return isKeyedVectorTable(obj)
}

// IsVectorOfObject reports whether a field's type is a vector whose element
// type is an object, the other half of the cursor-advance rule.
func IsVectorOfObject(t *reflection.Type) bool {
	return isVectorOfObjectType(t)
}

// ObjectByIndexFor resolves a *reflection.Type that names an object (or the
// element type of a vector of objects) back to its *reflection.Object.
func (reg *Registry) ObjectByIndexFor(t *reflection.Type) (*reflection.Object, bool) {
	st := reg.cur.Load()
	if st == nil {
		return nil, false
	}
	return st.reflect.objectByIndex(int(t.Index()))
}

// errNotReady is returned by ReserializeToBinary when Init has not
// succeeded yet.
var errNotReady = notReadyError{}

type notReadyError struct{}

func (notReadyError) Error() string { return "schema: registry not ready" }
