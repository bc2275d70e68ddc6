package logctx

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// These tests swap slog.Default() and must not run in parallel.

func newSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromWithoutLoggerReturnsDefault(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	def := newSilent()
	slog.SetDefault(def)

	require.Equal(t, def, From(context.Background()))
}

func TestIntoFromRoundTrip(t *testing.T) {
	l := newSilent()
	ctx := Into(context.Background(), l)
	require.Equal(t, l, From(ctx))
}

func TestFromIgnoresWrongTypeAndNil(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	def := newSilent()
	slog.SetDefault(def)

	ctx := context.WithValue(context.Background(), ctxKey{}, "not-a-logger")
	require.Equal(t, def, From(ctx))

	var nilLogger *slog.Logger
	ctx = context.WithValue(context.Background(), ctxKey{}, nilLogger)
	require.Equal(t, def, From(ctx))
}

func TestIntoShadowsParent(t *testing.T) {
	parentL := newSilent()
	childL := newSilent()

	parent := Into(context.Background(), parentL)
	child := Into(parent, childL)

	require.Equal(t, childL, From(child))
	require.Equal(t, parentL, From(parent))
}

func TestIntoKeepsCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	child := Into(parent, newSilent())
	cancel()

	<-child.Done()
	require.ErrorIs(t, child.Err(), context.Canceled)
}
