package transport_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/embeddedrealtime/rtdbclient/internal/transport"
)

// fakeConn is a minimal net.Conn whose Read/Close behavior is scripted by
// the test.
type fakeConn struct {
	reads   []func([]byte) (int, error)
	pos     int
	closed  atomic.Bool
	written []byte
	mu      sync.Mutex
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if c.pos >= len(c.reads) {
		return 0, errors.New("fakeConn: out of scripted reads")
	}
	f := c.reads[c.pos]
	c.pos++
	return f(p)
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, p...)
	return len(p), nil
}
func (c *fakeConn) Close() error                       { c.closed.Store(true); return nil }
func (c *fakeConn) LocalAddr() net.Addr                { return fakeAddr{} }
func (c *fakeConn) RemoteAddr() net.Addr               { return fakeAddr{} }
func (c *fakeConn) SetDeadline(time.Time) error         { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error     { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error    { return nil }

type fakeAddr struct{}

func (fakeAddr) Network() string { return "fake" }
func (fakeAddr) String() string  { return "fake" }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestEnsureConnectedDialsOnlyOnceWhileConnected(t *testing.T) {
	var dials atomic.Int32
	conn := &fakeConn{}
	dial := func(ctx context.Context) (net.Conn, error) {
		dials.Add(1)
		return conn, nil
	}

	src := transport.NewSource(dial, 0, nil)
	require.NoError(t, src.EnsureConnected(context.Background()))
	require.NoError(t, src.EnsureConnected(context.Background()))
	require.Equal(t, int32(1), dials.Load())
}

func TestReadRetriesOnTimeoutThenSucceeds(t *testing.T) {
	conn := &fakeConn{reads: []func([]byte) (int, error){
		func([]byte) (int, error) { return 0, timeoutErr{} },
		func([]byte) (int, error) { return 0, timeoutErr{} },
		func(p []byte) (int, error) { copy(p, "hi"); return 2, nil },
	}}
	dial := func(ctx context.Context) (net.Conn, error) { return conn, nil }

	src := transport.NewSource(dial, time.Second, nil)
	require.NoError(t, src.EnsureConnected(context.Background()))

	buf := make([]byte, 8)
	n, err := src.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hi", string(buf[:n]))
	require.Equal(t, 3, conn.pos) // both timeouts were retried in place
}

func TestReadOnCloseForgetsConnectionAndReturnsErr(t *testing.T) {
	conn := &fakeConn{reads: []func([]byte) (int, error){
		func([]byte) (int, error) { return 0, errors.New("connection reset") },
	}}
	var dials atomic.Int32
	second := &fakeConn{reads: []func([]byte) (int, error){
		func(p []byte) (int, error) { copy(p, "ok"); return 2, nil },
	}}
	dial := func(ctx context.Context) (net.Conn, error) {
		if dials.Add(1) == 1 {
			return conn, nil
		}
		return second, nil
	}

	src := transport.NewSource(dial, 0, nil)
	require.NoError(t, src.EnsureConnected(context.Background()))

	buf := make([]byte, 8)
	_, err := src.Read(buf)
	require.Error(t, err)
	require.True(t, conn.closed.Load())

	// The dropped connection is forgotten, so EnsureConnected redials.
	require.NoError(t, src.EnsureConnected(context.Background()))
	require.Equal(t, int32(2), dials.Load())

	n, err := src.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ok", string(buf[:n]))
}

func TestEnsureConnectedRetriesUntilDialSucceeds(t *testing.T) {
	var attempts atomic.Int32
	conn := &fakeConn{}
	dial := func(ctx context.Context) (net.Conn, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("refused")
		}
		return conn, nil
	}

	src := transport.NewSource(dial, 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, src.EnsureConnected(ctx))
	require.Equal(t, int32(3), attempts.Load())
}

func TestReadBeforeConnectErrors(t *testing.T) {
	dial := func(ctx context.Context) (net.Conn, error) { return &fakeConn{}, nil }
	src := transport.NewSource(dial, 0, nil)

	_, err := src.Read(make([]byte, 4))
	require.Error(t, err)
}

func TestWriteSendsToCurrentConnection(t *testing.T) {
	conn := &fakeConn{}
	dial := func(ctx context.Context) (net.Conn, error) { return conn, nil }
	src := transport.NewSource(dial, 0, nil)
	require.NoError(t, src.EnsureConnected(context.Background()))

	n, err := src.Write([]byte("GET / HTTP/1.1\r\n"))
	require.NoError(t, err)
	require.Equal(t, len("GET / HTTP/1.1\r\n"), n)
	require.Equal(t, "GET / HTTP/1.1\r\n", string(conn.written))
}

func TestWriteBeforeConnectErrors(t *testing.T) {
	dial := func(ctx context.Context) (net.Conn, error) { return &fakeConn{}, nil }
	src := transport.NewSource(dial, 0, nil)

	_, err := src.Write([]byte("x"))
	require.Error(t, err)
}

func TestCloseWithKeepaliveRunningClosesConnection(t *testing.T) {
	conn := &fakeConn{}
	dial := func(ctx context.Context) (net.Conn, error) { return conn, nil }
	src := transport.NewSource(dial, 0, nil)
	require.NoError(t, src.EnsureConnected(context.Background()))

	src.StartKeepalive(context.Background(), 10*time.Millisecond)
	require.NoError(t, src.Close())
	require.True(t, conn.closed.Load())
}
