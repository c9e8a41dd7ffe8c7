package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got, s)
	}

	_, ok := ParseLogLevel("verbose")
	require.False(t, ok)
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
	//nolint:staticcheck // nil context is handled on purpose.
	require.Same(t, Logger(), FromContext(nil))
}

func TestWithNameAndKV(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "dispatcher")
	ctx = WithKV(ctx, "door", "rearLeft")

	InfoKV(ctx, "unlock denied", "source", "inside")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "dispatcher", entries[0].LoggerName)
	require.Equal(t, "unlock denied", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "rearLeft", fields["door"])
	require.Equal(t, "inside", fields["source"])
}
