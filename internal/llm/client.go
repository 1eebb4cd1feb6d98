package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// DeltaFunc receives one streamed completion fragment. It must not
// block for long; the stream is read sequentially.
type DeltaFunc func(delta string)

// Client is the external oracle: streamed text completion, reliance
// classification, and short corrective feedback. All three may fail;
// callers log and degrade rather than aborting an exchange.
type Client interface {
	// CompleteStreaming requests a completion, invoking onDelta for each
	// fragment as it arrives, and returns the full accumulated text.
	CompleteStreaming(ctx context.Context, messages []Message, onDelta DeltaFunc) (string, error)
	// Classify returns the oracle's raw rubric label for text.
	Classify(ctx context.Context, rubricPrompt, text string) (string, error)
	// ShortFeedback returns a short remedial response for text.
	ShortFeedback(ctx context.Context, prompt, text string) (string, error)
}
