package chat

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor/internal/render"
)

func tickUntilDrained(r *Reconciler) {
	base := time.Now()
	for i := 0; i < 100; i++ {
		r.Tick(base.Add(time.Duration(i) * time.Millisecond))
	}
}

func TestReconcilerAssemblesAndReanchors(t *testing.T) {
	r := NewReconciler(DefaultReconcilerConfig())
	assert.Equal(t, StateEmpty, r.State())

	for _, d := range []string{"Hel", "lo wo", "rld"} {
		r.AppendDelta(d, render.FormatMarkdown)
	}
	assert.Equal(t, StateStreaming, r.State())

	r.FinishStream()
	assert.Equal(t, StateFinalizing, r.State())

	require.True(t, r.Finalize(42))
	assert.Equal(t, StateFinalized, r.State())

	cs := r.Containers()
	require.Len(t, cs, 1)
	assert.Equal(t, int64(42), cs[0].TurnID)
	assert.Empty(t, cs[0].PlaceholderID)
	assert.Contains(t, cs[0].HTML, "Hello world")
}

func TestReconcilerChunkingIsDeltaShapeIndependent(t *testing.T) {
	full := strings.Repeat("lorem ipsum dolor sit amet ", 10)

	asOne := NewReconciler(DefaultReconcilerConfig())
	asOne.AppendDelta(full, render.FormatMarkdown)
	asOne.FinishStream()
	require.True(t, asOne.Finalize(1))

	byRunes := NewReconciler(DefaultReconcilerConfig())
	for _, c := range full {
		byRunes.AppendDelta(string(c), render.FormatMarkdown)
	}
	byRunes.FinishStream()
	require.True(t, byRunes.Finalize(1))

	assert.Equal(t, asOne.Containers()[0].HTML, byRunes.Containers()[0].HTML)
}

func TestReconcilerTickMovesBoundedChunks(t *testing.T) {
	cfg := DefaultReconcilerConfig()
	cfg.IdleFlush = time.Hour
	r := NewReconciler(cfg)

	now := time.Now()
	r.AppendDelta(strings.Repeat("a", 100), render.FormatMarkdown)
	r.Tick(now)

	cs := r.Containers()
	require.Len(t, cs, 1)
	// One tick renders exactly one markdown chunk.
	assert.Contains(t, cs[0].HTML, strings.Repeat("a", cfg.MarkdownChunk))
	assert.NotContains(t, cs[0].HTML, strings.Repeat("a", cfg.MarkdownChunk+1))
}

func TestReconcilerTickKeepsRuneBoundaries(t *testing.T) {
	cfg := DefaultReconcilerConfig()
	cfg.IdleFlush = time.Hour
	r := NewReconciler(cfg)

	// A one-byte prefix before three-byte runes puts every 24-byte chunk
	// cut mid-rune.
	text := "a" + strings.Repeat("こんにちは", 10)
	r.AppendDelta(text, render.FormatMarkdown)

	now := time.Now()
	for i := 0; i < 50; i++ {
		r.Tick(now.Add(time.Duration(i) * time.Millisecond))
		r.mu.Lock()
		ok := utf8.ValidString(r.visible)
		r.mu.Unlock()
		require.True(t, ok, "visible buffer must stay valid UTF-8 after every tick")
	}

	r.FinishStream()
	assert.Contains(t, r.Containers()[0].HTML, "こんにちは")
}

func TestReconcilerIdleFlushDrainsBuffer(t *testing.T) {
	cfg := DefaultReconcilerConfig()
	r := NewReconciler(cfg)

	r.AppendDelta(strings.Repeat("b", 500), render.FormatMarkdown)
	r.Tick(time.Now().Add(cfg.IdleFlush))

	assert.Contains(t, r.Containers()[0].HTML, strings.Repeat("b", 500))
}

func TestReconcilerFormatNeverReverts(t *testing.T) {
	r := NewReconciler(DefaultReconcilerConfig())
	r.AppendDelta("plain text ", render.FormatMarkdown)
	r.AppendDelta("<p>markup</p>", render.FormatHTML)
	r.AppendDelta(" more plain", render.FormatMarkdown)

	cs := r.Containers()
	require.Len(t, cs, 1)
	assert.Equal(t, render.FormatHTML, cs[0].Format)
}

func TestReconcilerFinalizeFallsBackToUnanchoredContainer(t *testing.T) {
	r := NewReconciler(DefaultReconcilerConfig())

	r.AppendDelta("first", render.FormatMarkdown)
	r.FinishStream()
	require.True(t, r.Finalize(1))

	r.AppendDelta("second", render.FormatMarkdown)
	r.FinishStream()

	// Simulate the race where the active tag was lost before the
	// finalize notification arrived.
	r.mu.Lock()
	r.active = nil
	r.mu.Unlock()

	require.True(t, r.Finalize(2))
	cs := r.Containers()
	require.Len(t, cs, 2)
	assert.Equal(t, int64(1), cs[0].TurnID)
	assert.Equal(t, int64(2), cs[1].TurnID)
}

func TestReconcilerFinalizeWithoutContainer(t *testing.T) {
	r := NewReconciler(DefaultReconcilerConfig())
	assert.False(t, r.Finalize(7))
}

func TestReconcilerNewTurnAfterFinalize(t *testing.T) {
	r := NewReconciler(DefaultReconcilerConfig())

	r.AppendDelta("one", render.FormatMarkdown)
	r.FinishStream()
	require.True(t, r.Finalize(1))

	r.AppendDelta("two", render.FormatMarkdown)
	tickUntilDrained(r)
	r.FinishStream()
	require.True(t, r.Finalize(2))

	cs := r.Containers()
	require.Len(t, cs, 2)
	assert.Contains(t, cs[0].HTML, "one")
	assert.Contains(t, cs[1].HTML, "two")
	assert.NotContains(t, cs[1].HTML, "one", "a new turn starts from an empty buffer")
}
