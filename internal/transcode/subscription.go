package transcode

import "github.com/embeddedrealtime/rtdbclient/internal/record"

// Sink is the caller-supplied callback: it receives a typed record and
// reports success (true) or refusal (false). A refusal makes ParseStream
// return false, but tokenizing still runs to the end of the stream and
// later matched subtrees are still delivered.
type Sink func(*record.Record) bool

// Subscription is a (pattern, sink) pair together with the schema type name
// a matched subtree is parsed as. A zero-value Subscription (nil Sink)
// means "not subscribed": its pattern never contributes a match and its
// sink is never called.
type Subscription struct {
	Pattern  Pattern
	TypeName string
	Sink     Sink
}

func (s Subscription) active() bool {
	return s.Sink != nil
}
