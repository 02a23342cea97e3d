package rtdb

import "errors"

// ErrCACertInvalid is returned by New when cfg.TLSCACertPEM does not parse
// as a PEM certificate bundle.
var ErrCACertInvalid = errors.New("rtdb: invalid cacert_pem")
