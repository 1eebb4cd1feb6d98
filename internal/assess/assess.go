// Package assess implements the document-mode marking path: drafted
// content is scored criterion by criterion against a fixed rubric,
// never on the single-level reliance scale.
package assess

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ai-tutor/internal/llm"
)

// Criterion is one rubric item the draft is marked against.
type Criterion struct {
	Key        string
	Descriptor string
}

// Criteria is the fixed assignment rubric, in marking order.
var Criteria = []Criterion{
	{"P1", "Use research to identify a range of potential diseases for each patient (at least 4 per patient)."},
	{"P2", "Create a detailed method: tests, techniques, equipment (sizes/quantities/PPE) informed by suspected diseases."},
	{"M2", "Explain the rationale for tests and techniques chosen based on suspected diseases (builds on P2/M1)."},
	{"D1", "Justify the choice and settings of appropriate equipment for chosen tests and techniques."},
}

// TrimAtReferences cuts the draft before a trailing References heading
// so the bibliography is not marked as content. The cut is on the raw
// HTML, matching a heading tag whose text is exactly "References".
func TrimAtReferences(html string) string {
	if idx := strings.Index(strings.ToLower(html), ">references<"); idx > -1 {
		return html[:idx]
	}
	return html
}

// Prompt builds the marking instruction. The reply must carry one line
// per criterion key so the client can map each line back to its chip.
func Prompt() string {
	var b strings.Builder
	b.WriteString("You are marking a student draft against the following assignment criteria:\n")
	for _, c := range Criteria {
		fmt.Fprintf(&b, "%s: %s\n", c.Key, c.Descriptor)
	}
	b.WriteString("For each criterion return exactly one line starting with its key and a colon " +
		"(for example 'P1: ...'), stating whether the draft meets it at pass, merit or distinction " +
		"standard, or is not met, followed by one sentence of specific advice. Return only these lines.")
	return b.String()
}

// Assessor scores drafts through the oracle.
type Assessor struct {
	oracle llm.Client
	log    *zap.Logger
}

func NewAssessor(oracle llm.Client, log *zap.Logger) *Assessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assessor{oracle: oracle, log: log}
}

// Assess trims the draft at its References heading and returns the
// criterion-by-criterion feedback text.
func (a *Assessor) Assess(ctx context.Context, draftHTML string) (string, error) {
	content := strings.TrimSpace(TrimAtReferences(draftHTML))
	if content == "" {
		return "", fmt.Errorf("empty draft")
	}
	text, err := a.oracle.ShortFeedback(ctx, Prompt(), content)
	if err != nil {
		return "", fmt.Errorf("failed to assess draft: %w", err)
	}
	return text, nil
}
