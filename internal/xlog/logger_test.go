package xlog_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embeddedrealtime/rtdbclient/internal/xlog"
)

func TestLoggerWritesFormattedMessage(t *testing.T) {
	var buf bytes.Buffer
	backend := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := xlog.New(backend)

	l.Infof("connected to %s on attempt %d", "db.example.com", 3)

	out := buf.String()
	require.Contains(t, out, "connected to db.example.com on attempt 3")
	require.Contains(t, out, "level=INFO")
}

func TestLoggerLevelsMapCorrectly(t *testing.T) {
	var buf bytes.Buffer
	backend := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := xlog.New(backend)

	l.Debugf("debug %s", "msg")
	l.Warnf("warn %s", "msg")
	l.Errorf("error %s", "msg")

	out := buf.String()
	require.Contains(t, out, "level=DEBUG")
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, "level=ERROR")
}

func TestWithAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	backend := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := xlog.New(backend).With("component", "transport")

	l.Infof("dialing")

	require.Contains(t, buf.String(), "component=transport")
}

func TestNilBackendDefaultsRatherThanPanicking(t *testing.T) {
	l := xlog.New(nil)
	require.NotPanics(t, func() { l.Infof("hello") })
}
