package scale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerativeRequestFastPath(t *testing.T) {
	cases := []string{
		"write me an essay about the French Revolution",
		"create a 2 paragraph story about space travel",
		"generate code for a binary search tree",
		"Please draft a short report on climate change",
		"MAKE ME A POEM",
		// punctuation runs between verb and noun must not widen the window
		"write -- a -- short -- essay",
		"compose... a... little... poem!",
	}
	for _, c := range cases {
		lvl, ok := GenerativeRequest(c)
		require.True(t, ok, "expected fast-path match for %q", c)
		assert.Equal(t, LevelFullAI, lvl, c)
	}
}

func TestGenerativeRequestNoMatch(t *testing.T) {
	cases := []string{
		"",
		"can you explain how photosynthesis works",
		"what is an essay", // noun without a verb
		"I wrote an essay yesterday, can you suggest ideas for structuring it",
		// verb and noun too far apart
		"write about the history of France and also, separately, later tell me about an essay",
	}
	for _, c := range cases {
		_, ok := GenerativeRequest(c)
		assert.False(t, ok, "unexpected fast-path match for %q", c)
	}
}

func TestDigitLabel(t *testing.T) {
	lvl, ok := DigitLabel("5. Full AI")
	require.True(t, ok)
	assert.Equal(t, LevelFullAI, lvl)

	lvl, ok = DigitLabel("The input corresponds to 3. AI Editing")
	require.True(t, ok)
	assert.Equal(t, LevelEditing, lvl)

	_, ok = DigitLabel("no digits here")
	assert.False(t, ok)

	// 6 and 0 are outside the scale and must not match
	_, ok = DigitLabel("level 6 or 0")
	assert.False(t, ok)
}

func TestSubstringLabel(t *testing.T) {
	cases := map[string]Level{
		"Full AI responsibility": LevelFullAI,
		"AI + Human Evaluation":  LevelCollaborative,
		"this is ai editing":     LevelEditing,
		"Ideas and Structure":    LevelIdeas,
		"No AI involvement":      LevelNoAI,
		"mostly about structure": LevelIdeas,
	}
	for label, want := range cases {
		lvl, ok := SubstringLabel(label)
		require.True(t, ok, label)
		assert.Equal(t, want, lvl, label)
	}

	_, ok := SubstringLabel("completely unrelated text")
	assert.False(t, ok)
}

func TestParseLabelFallbackChain(t *testing.T) {
	// digit wins over substring
	lvl, ok := ParseLabel("2. Full AI", "irrelevant")
	require.True(t, ok)
	assert.Equal(t, LevelIdeas, lvl)

	// substring when no digit
	lvl, ok = ParseLabel("Category: AI Editing", "irrelevant")
	require.True(t, ok)
	assert.Equal(t, LevelEditing, lvl)

	// generative heuristic on the original text as last resort
	lvl, ok = ParseLabel("???", "write me an essay about bees")
	require.True(t, ok)
	assert.Equal(t, LevelFullAI, lvl)

	// nothing parseable at all
	_, ok = ParseLabel("???", "how do bees navigate")
	assert.False(t, ok)
}

func TestCollapseThreshold(t *testing.T) {
	assert.False(t, LevelNoAI.Collapses())
	assert.False(t, LevelIdeas.Collapses())
	assert.True(t, LevelEditing.Collapses())
	assert.True(t, LevelCollaborative.Collapses())
	assert.True(t, LevelFullAI.Collapses())
}

func TestMax(t *testing.T) {
	assert.Equal(t, LevelNoAI, Max(nil))
	assert.Equal(t, LevelFullAI, Max([]Level{LevelIdeas, LevelFullAI, LevelEditing}))
}
