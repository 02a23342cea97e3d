// Package transport is the minimal glue that feeds bytes from a TLS-backed
// byte stream into the tokenizer: an unbuffered io.Reader over a TLS
// connection, with retry-on-transient-read semantics and an explicit
// reconnect step, but not HTTP status-line/header framing.
//
// The reconnect step is exposed as an explicit EnsureConnected rather than
// folded invisibly into Read, so a caller can choose when to pay dial
// latency.
//
// A non-blocking socket would surface a transient read as a distinct
// would-block condition; Go's *tls.Conn instead blocks until data, an
// error, or a deadline. The nearest equivalent available to a blocking Go
// reader is a read deadline: a timeout error from a deadline-bounded Read
// is treated as transient and retried, while every other error (including a
// clean close) ends the stream.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Jeffail/shutdown"
	"github.com/cenkalti/backoff/v4"

	"github.com/embeddedrealtime/rtdbclient/internal/xlog"
)

// Dialer opens one fresh TLS connection to the endpoint. Source calls it
// once per (re)connect attempt; tests substitute a Dialer that never
// touches the network.
type Dialer func(ctx context.Context) (net.Conn, error)

// Source is a retrying, reconnectable io.Reader over a TLS connection.
// The zero value is not usable; construct one with NewSource.
type Source struct {
	dial         Dialer
	readDeadline time.Duration
	newBackoff   func() backoff.BackOff
	logger       *xlog.Logger

	mu   sync.Mutex
	conn net.Conn

	shutSig *shutdown.Signaller
	once    sync.Once
}

// NewSource builds a Source that dials via dial on demand. readDeadline
// bounds each individual Read call so a stalled peer surfaces as a
// retryable timeout instead of blocking forever; zero disables the
// deadline (the underlying conn's own timeouts, if any, still apply).
func NewSource(dial Dialer, readDeadline time.Duration, logger *xlog.Logger) *Source {
	if logger == nil {
		logger = xlog.New(nil)
	}
	return &Source{
		dial:         dial,
		readDeadline: readDeadline,
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = 0 // EnsureConnected's caller controls giving up via ctx
			return b
		},
		logger:  logger.With("component", "transport"),
		shutSig: shutdown.NewSignaller(),
	}
}

// EnsureConnected is a no-op if already connected, otherwise dials with
// exponential backoff until ctx is done or a connection succeeds.
func (s *Source) EnsureConnected(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	var conn net.Conn
	op := func() error {
		c, err := s.dial(ctx)
		if err != nil {
			s.logger.Warnf("connect attempt failed: %v", err)
			return err
		}
		conn = c
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(s.newBackoff(), ctx)); err != nil {
		return fmt.Errorf("transport: connect: %w", err)
	}
	s.conn = conn
	s.logger.Infof("connected")
	return nil
}

// Read implements io.Reader. A read that times out is treated as having
// read zero transient bytes and is retried in place; any other error
// closes and forgets the connection (a later EnsureConnected redials) and
// is returned to the caller, io.EOF included.
func (s *Source) Read(p []byte) (int, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return 0, errNotConnected
	}

	for {
		if s.readDeadline > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.readDeadline)); err != nil {
				return 0, err
			}
		}
		n, err := conn.Read(p)
		if err == nil {
			return n, nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			s.logger.Debugf("read deadline hit, treating as transient and retrying")
			continue
		}

		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()
		return n, err
	}
}

// Write implements io.Writer, writing directly to the current connection.
// Unlike Read it does not retry: a request write is expected to be small
// and a partial/failed write is surfaced to the caller rather than silently
// retried, since (unlike a transient read) there is no safe way to replay
// only the unwritten remainder without the caller's help.
func (s *Source) Write(p []byte) (int, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return 0, errNotConnected
	}
	return conn.Write(p)
}

// Close tears down the current connection, if any, and stops the keepalive
// loop started by StartKeepalive. Safe to call even if StartKeepalive was
// never called.
func (s *Source) Close() error {
	s.shutSig.TriggerHardStop()
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// StartKeepalive launches the background loop that notices a dropped
// connection between requests and redials it proactively, so the next
// caller-initiated Read doesn't pay the reconnect latency inline. It is the
// Go analogue of Jeffail/shutdown's Signaller idiom already used by
// internal/schema's background purge loop. Calling it more than once is a
// no-op; stop it via Close.
func (s *Source) StartKeepalive(ctx context.Context, period time.Duration) {
	s.once.Do(func() {
		go s.keepaliveLoop(ctx, period)
	})
}

func (s *Source) keepaliveLoop(ctx context.Context, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-s.shutSig.HardStopChan():
			return
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			connected := s.conn != nil
			s.mu.Unlock()
			if connected {
				continue
			}
			if err := s.EnsureConnected(ctx); err != nil {
				s.logger.Warnf("keepalive reconnect failed: %v", err)
			}
		}
	}
}

var errNotConnected = notConnectedError{}

type notConnectedError struct{}

func (notConnectedError) Error() string { return "transport: not connected" }
