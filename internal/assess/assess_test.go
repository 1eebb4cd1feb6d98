package assess

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor/internal/llm"
)

type stubOracle struct {
	prompt string
	text   string
	reply  string
}

func (s *stubOracle) CompleteStreaming(context.Context, []llm.Message, llm.DeltaFunc) (string, error) {
	return "", nil
}

func (s *stubOracle) Classify(context.Context, string, string) (string, error) {
	return "", nil
}

func (s *stubOracle) ShortFeedback(_ context.Context, prompt, text string) (string, error) {
	s.prompt = prompt
	s.text = text
	return s.reply, nil
}

func TestTrimAtReferences(t *testing.T) {
	draft := `<p>body text</p><h2>References</h2><p>Smith 2021</p>`
	got := TrimAtReferences(draft)
	assert.Equal(t, `<p>body text</p><h2`, got)

	assert.Equal(t, "<p>no refs</p>", TrimAtReferences("<p>no refs</p>"))

	// Case-insensitive heading match.
	assert.NotContains(t, TrimAtReferences(`<p>x</p><h2>REFERENCES</h2>bib`), "bib")
}

func TestPromptCarriesEveryCriterion(t *testing.T) {
	p := Prompt()
	for _, c := range Criteria {
		assert.Contains(t, p, c.Key+": "+c.Descriptor)
	}
	assert.Contains(t, p, "one line starting with its key")
}

func TestAssessTrimsAndForwards(t *testing.T) {
	oracle := &stubOracle{reply: "P1: merit, name a fourth disease per patient.\nP2: pass.\nM2: not met.\nD1: pass."}
	a := NewAssessor(oracle, nil)

	got, err := a.Assess(context.Background(), `<p>method section</p><h2>References</h2><p>bib</p>`)
	require.NoError(t, err)
	assert.Equal(t, oracle.reply, got)
	assert.Equal(t, Prompt(), oracle.prompt)
	assert.Contains(t, oracle.text, "method section")
	assert.NotContains(t, oracle.text, "bib")
}

func TestAssessRejectsEmptyDraft(t *testing.T) {
	a := NewAssessor(&stubOracle{}, nil)
	_, err := a.Assess(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "empty"))
}
