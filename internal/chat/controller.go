// Package chat drives one conversational exchange end to end: persist
// the user turn, stream the assistant reply, classify reliance, decide
// collapse and feedback, persist the assistant turn and tell the client
// its durable identity.
package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"ai-tutor/internal/history"
	"ai-tutor/internal/llm"
	"ai-tutor/internal/render"
	"ai-tutor/internal/scale"
	"ai-tutor/internal/store"
)

type Controller struct {
	store   store.Store
	oracle  llm.Client
	history *history.Manager
	log     *zap.Logger
}

func NewController(st store.Store, oracle llm.Client, hist *history.Manager, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{store: st, oracle: oracle, history: hist, log: log}
}

// LoadTranscript replaces the in-memory transcript for a conversation
// with its persisted turns, so a reconnecting client resumes with full
// oracle context.
func (c *Controller) LoadTranscript(ctx context.Context, conversationID int64) error {
	turns, err := c.store.ListTurns(ctx, conversationID)
	if err != nil {
		return err
	}
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		if t.Content == "" {
			continue
		}
		role := llm.RoleUser
		if t.Role == store.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	c.history.Replace(conversationID, msgs)
	return nil
}

// HandleUserTurn runs one full exchange for conv. Oracle and store
// failures degrade the result (partial text shown, no level observed,
// no feedback) but never abort it; only the emitter going away stops
// delivery, and even then persistence completes.
func (c *Controller) HandleUserTurn(ctx context.Context, conv store.Conversation, rawText string, emit Emitter) {
	if strings.TrimSpace(rawText) == "" {
		c.log.Info("ignoring empty user turn", zap.Int64("conversation", conv.ID))
		return
	}

	c.history.AppendUser(conv.ID, rawText)
	if _, err := c.store.InsertUserTurn(ctx, conv.ID, render.HTML(rawText)); err != nil {
		// The in-memory transcript still drives the exchange; the turn
		// just may not survive a reload.
		c.log.Error("failed to persist user turn", zap.Int64("conversation", conv.ID), zap.Error(err))
	}

	accumulated, err := c.streamReply(ctx, conv.ID, emit)
	if err != nil {
		// Whatever partial text was already forwarded stays displayed on
		// the client, but a partial buffer is never classified or
		// persisted as final.
		c.log.Error("completion stream failed", zap.Int64("conversation", conv.ID), zap.Error(err))
		return
	}
	if accumulated == "" {
		return
	}
	c.history.AppendAssistant(conv.ID, accumulated)

	userText := history.Clean(rawText, history.DefaultMaxMessageChars)
	levels := c.classifyReliance(ctx, conv.ID, userText)
	c.emit(emit, Event{Kind: EventLevelObserved, Levels: levels})

	level := scale.LevelNoAI
	if len(levels) > 0 {
		level = levels[0]
	}
	collapsed := level.Collapses()

	turnID, err := c.store.UpsertAssistantTurn(ctx, conv.ID, render.HTML(accumulated), collapsed, level)
	if err != nil {
		c.log.Error("failed to persist assistant turn", zap.Int64("conversation", conv.ID), zap.Error(err))
		return
	}

	if !conv.DocumentMode && scale.Max(levels).Collapses() {
		c.sendFeedback(ctx, conv.ID, turnID, userText, emit)
	}

	c.emit(emit, Event{Kind: EventTurnFinalized, TurnID: turnID})
}

// streamReply requests the completion and forwards every delta as it
// arrives, each tagged with its own format hint. A mid-stream error is
// returned to the caller; the partial text already forwarded is not
// rolled back, but it must not reach classification or the store.
func (c *Controller) streamReply(ctx context.Context, conversationID int64, emit Emitter) (string, error) {
	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: llm.ChatSystemPrompt}},
		c.history.ForOracle(conversationID)...)

	return c.oracle.CompleteStreaming(ctx, messages, func(delta string) {
		c.emit(emit, Event{Kind: EventAssistantDelta, Text: delta, Format: render.FormatFor(delta)})
	})
}

// classifyReliance scores the latest user line, never the assistant
// output. The fast path catches unambiguous generative requests without
// an oracle round trip; otherwise the oracle label goes through the
// parse fallback chain. An unparseable label yields no event.
func (c *Controller) classifyReliance(ctx context.Context, conversationID int64, userText string) []scale.Level {
	level, ok := scale.GenerativeRequest(userText)
	if !ok {
		label, err := c.oracle.Classify(ctx, llm.ClassificationRubric, userText)
		if err != nil {
			c.log.Error("classification call failed", zap.Int64("conversation", conversationID), zap.Error(err))
			return nil
		}
		level, ok = scale.ParseLabel(label, userText)
		if !ok {
			c.log.Error("unparseable classification label",
				zap.Int64("conversation", conversationID), zap.String("label", label))
			return nil
		}
	}
	if err := c.store.AppendClassificationEvent(ctx, conversationID, level); err != nil {
		c.log.Error("failed to record classification event",
			zap.Int64("conversation", conversationID), zap.Error(err))
	}
	return []scale.Level{level}
}

func (c *Controller) sendFeedback(ctx context.Context, conversationID, turnID int64, userText string, emit Emitter) {
	text, err := c.oracle.ShortFeedback(ctx, llm.FeedbackPrompt, userText)
	if err != nil {
		c.log.Error("feedback call failed", zap.Int64("conversation", conversationID), zap.Error(err))
		return
	}
	if _, err := c.store.InsertFeedback(ctx, conversationID, turnID, text); err != nil {
		c.log.Error("failed to persist feedback", zap.Int64("conversation", conversationID), zap.Error(err))
	}
	c.emit(emit, Event{Kind: EventFeedback, Text: text, TurnID: turnID, Format: render.FormatFor(text)})
}

// HandleHistory answers a no-text request with the full turn list,
// feedback, and the conversation's scale profile in one payload.
func (c *Controller) HandleHistory(ctx context.Context, conv store.Conversation, emit Emitter) error {
	turns, err := c.store.ListTurns(ctx, conv.ID)
	if err != nil {
		return err
	}
	feedback, err := c.store.ListFeedback(ctx, conv.ID)
	if err != nil {
		return err
	}
	levels, err := c.store.ListClassificationLevels(ctx, conv.ID)
	if err != nil {
		return err
	}
	c.emit(emit, Event{Kind: EventHistory, Turns: turns, Feedback: feedback, Levels: levels})
	return nil
}

func (c *Controller) emit(emit Emitter, ev Event) {
	if err := emit.Emit(ev); err != nil {
		c.log.Warn("failed to emit event", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}
