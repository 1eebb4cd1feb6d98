// Package history keeps the in-memory transcript per conversation.
// The transcript, not the store, drives completion requests: a failed
// turn write degrades durability but never blocks the exchange.
package history

import (
	"strings"
	"sync"

	"ai-tutor/internal/llm"
	"ai-tutor/internal/render"
)

const (
	// DefaultMaxMessageChars caps one transcript line sent to the oracle.
	DefaultMaxMessageChars = 8000
	// DefaultMaxTranscriptChars caps the whole transcript; oldest lines
	// are dropped first. This bounds oracle payloads and is a
	// correctness requirement, not an optimization.
	DefaultMaxTranscriptChars = 24000
)

type Manager struct {
	mu            sync.RWMutex
	conversations map[int64][]llm.Message

	maxMessageChars    int
	maxTranscriptChars int
}

func NewManager() *Manager {
	return NewManagerWithLimits(DefaultMaxMessageChars, DefaultMaxTranscriptChars)
}

func NewManagerWithLimits(maxMessageChars, maxTranscriptChars int) *Manager {
	if maxMessageChars <= 0 {
		maxMessageChars = DefaultMaxMessageChars
	}
	if maxTranscriptChars <= 0 {
		maxTranscriptChars = DefaultMaxTranscriptChars
	}
	return &Manager{
		conversations:      make(map[int64][]llm.Message),
		maxMessageChars:    maxMessageChars,
		maxTranscriptChars: maxTranscriptChars,
	}
}

func (m *Manager) Reset(conversationID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, conversationID)
}

func (m *Manager) AppendUser(conversationID int64, content string) {
	m.append(conversationID, llm.Message{Role: llm.RoleUser, Content: content})
}

func (m *Manager) AppendAssistant(conversationID int64, content string) {
	m.append(conversationID, llm.Message{Role: llm.RoleAssistant, Content: content})
}

// Replace swaps the whole transcript, used when a connection loads an
// existing conversation from the store.
func (m *Manager) Replace(conversationID int64, msgs []llm.Message) {
	cp := make([]llm.Message, len(msgs))
	copy(cp, msgs)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversationID] = cp
}

func (m *Manager) append(conversationID int64, msg llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversationID] = append(m.conversations[conversationID], msg)
}

// Get returns a copy of the raw transcript in order.
func (m *Manager) Get(conversationID int64) []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	es := m.conversations[conversationID]
	out := make([]llm.Message, len(es))
	copy(out, es)
	return out
}

// LatestUserText returns the content of the most recent user line.
func (m *Manager) LatestUserText(conversationID int64) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	es := m.conversations[conversationID]
	for i := len(es) - 1; i >= 0; i-- {
		if es[i].Role == llm.RoleUser {
			return es[i].Content
		}
	}
	return ""
}

// ForOracle returns the transcript cleaned and capped for a completion
// request: each line stripped of markup and data URIs and cut to the
// per-message cap, then the oldest lines dropped until the whole
// transcript fits the total budget. Empty lines are omitted.
func (m *Manager) ForOracle(conversationID int64) []llm.Message {
	raw := m.Get(conversationID)
	cleaned := make([]llm.Message, 0, len(raw))
	for _, msg := range raw {
		c := Clean(msg.Content, m.maxMessageChars)
		if c == "" {
			continue
		}
		cleaned = append(cleaned, llm.Message{Role: msg.Role, Content: c})
	}
	total := 0
	for _, msg := range cleaned {
		total += len(msg.Content)
	}
	for len(cleaned) > 1 && total > m.maxTranscriptChars {
		total -= len(cleaned[0].Content)
		cleaned = cleaned[1:]
	}
	return cleaned
}

// Clean strips markup and embedded data URIs from one line and caps its
// length. Exported so the controller applies the same cleaning to text
// classified outside a transcript.
func Clean(s string, maxChars int) string {
	s = render.StripMarkup(s)
	s = strings.TrimSpace(s)
	if maxChars > 0 && len(s) > maxChars {
		s = s[:maxChars]
	}
	return s
}
