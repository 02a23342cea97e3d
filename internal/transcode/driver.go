package transcode

import (
	"io"

	"github.com/embeddedrealtime/rtdbclient/internal/jsontok"
)

// tokenizerOptions accepts trailing commas and unquoted keys from the wire.
// The rewritten subtree the transcoder hands on is always strict JSON, which
// is what the reserializer's strict parse requires.
var tokenizerOptions = jsontok.Options{AllowTrailingCommas: true, AllowUnquotedKeys: true}

// ParseStream is the transcoder driver: it resets t for a fresh document,
// binds the message and error subscriptions, and runs the tokenizer over
// src to completion. It returns true only if the tokenizer ran clean to the
// end of the stream and no subtree handed to a sink failed to rewrite or
// parse (the sticky isParseError).
//
// An empty or whitespace-only document is success with nothing delivered.
func (t *Transcoder) ParseStream(src io.Reader, message, errSub Subscription) bool {
	t.clear(message, errSub)

	dec := jsontok.NewDecoder(src, tokenizerOptions)
	err := dec.Parse(t)
	if err != nil {
		if err == io.EOF {
			return !t.isParseError
		}
		return false
	}
	return !t.isParseError
}
