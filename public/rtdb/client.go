// Package rtdb is the public API surface of this module: a Client that
// wires the schema registry, the TLS transport, and the streaming
// transcoder together the way a caller actually uses them, leaving HTTP
// request framing (status line, header/body split) to the caller --
// Client.ParseStream consumes whatever io.Reader already yields a response
// body.
//
// Modeled on a thin entry point that builds its dependencies and hands
// control to the library, rather than a reimplementation of a full
// stream-builder/environment API: this module has exactly one pipeline
// stage, not a pluggable component registry.
package rtdb

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/embeddedrealtime/rtdbclient/internal/clientconfig"
	"github.com/embeddedrealtime/rtdbclient/internal/identity"
	"github.com/embeddedrealtime/rtdbclient/internal/record"
	"github.com/embeddedrealtime/rtdbclient/internal/schema"
	"github.com/embeddedrealtime/rtdbclient/internal/transcode"
	"github.com/embeddedrealtime/rtdbclient/internal/transport"
	"github.com/embeddedrealtime/rtdbclient/internal/xlog"
)

// Re-exported so callers never need to import internal/transcode or
// internal/record directly: Subscription/Pattern/Sink and the typed record
// value a sink receives.
type (
	Subscription = transcode.Subscription
	Pattern      = transcode.Pattern
	Sink         = transcode.Sink
	Record       = record.Record
)

// Client owns one schema registry, one TLS transport, and the transcoder
// instances it lends out per ParseStream call. Construct one with New.
type Client struct {
	cfg    *clientconfig.Config
	reg    *schema.Registry
	source *transport.Source
	signer *identity.Signer
	logger *xlog.Logger
}

// New parses textSchema/binarySchema into a registry, builds the TLS
// transport from cfg, and (if cfg carries JWT settings) a bearer-token
// signer. logger may be nil; a Logger backed by slog.Default() is used in
// that case.
func New(cfg *clientconfig.Config, textSchema, binarySchema []byte, logger *xlog.Logger) (*Client, error) {
	if logger == nil {
		logger = xlog.New(nil)
	}

	reg := schema.NewRegistry()
	if err := reg.Init(textSchema, binarySchema); err != nil {
		return nil, fmt.Errorf("rtdb: init schema registry: %w", err)
	}

	var signer *identity.Signer
	if cfg.JWTPrivateKeyPEM != "" {
		s, err := identity.NewSigner([]byte(cfg.JWTPrivateKeyPEM), cfg.JWTIssuer, cfg.JWTTTL)
		if err != nil {
			return nil, fmt.Errorf("rtdb: init jwt signer: %w", err)
		}
		signer = s
	}

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	dial := func(ctx context.Context) (net.Conn, error) {
		d := &tls.Dialer{Config: tlsConfig}
		return d.DialContext(ctx, "tcp", addr)
	}

	return &Client{
		cfg:    cfg,
		reg:    reg,
		source: transport.NewSource(dial, 30*time.Second, logger.With("component", "rtdb")),
		signer: signer,
		logger: logger,
	}, nil
}

func buildTLSConfig(cfg *clientconfig.Config) (*tls.Config, error) {
	tc := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.TLSInsecureSkipVerify,
	}
	if cfg.TLSCACertPEM != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(cfg.TLSCACertPEM)) {
			return nil, ErrCACertInvalid
		}
		tc.RootCAs = pool
	}
	return tc, nil
}

// Connect ensures the client's TLS transport is dialed, retrying with
// backoff until ctx is done (internal/transport.Source.EnsureConnected).
func (c *Client) Connect(ctx context.Context) error {
	return c.source.EnsureConnected(ctx)
}

// Transport exposes the underlying byte source, e.g. so a caller can write
// a request line/headers to it directly before calling ParseStream on the
// response -- HTTP framing itself is deliberately not this package's
// concern.
func (c *Client) Transport() io.ReadWriter { return c.source }

// Signer exposes the bearer-token signer, if one was configured, for a
// caller assembling its own HTTP request.
func (c *Client) Signer() *identity.Signer { return c.signer }

// Reload swaps in a new schema pair without disrupting a transcoder
// currently mid-ParseStream.
func (c *Client) Reload(textSchema, binarySchema []byte) error {
	return c.reg.Reload(textSchema, binarySchema)
}

// Close tears down the TLS transport and the registry's background purge
// loop.
func (c *Client) Close() error {
	c.reg.Close()
	return c.source.Close()
}

// ParseStream runs the streaming transcoder over src, delivering matched
// subtrees to message and errSub. Each call is tagged with a fresh
// correlation id attached to its log lines, surfaced in the returned id so
// the caller can cross-reference backend logs for the same exchange.
func (c *Client) ParseStream(src io.Reader, message, errSub Subscription) (ok bool, correlationID string) {
	id := uuid.NewString()
	log := c.logger.With("correlation_id", id)

	log.Debugf("parse_stream starting")
	tc := transcode.NewTranscoder(c.reg)
	ok = tc.ParseStream(src, message, errSub)
	if ok {
		log.Debugf("parse_stream completed")
	} else {
		log.Warnf("parse_stream reported an error (malformed input, rewrite/verify failure, or sink refusal)")
	}
	return ok, id
}
