// Package store persists conversations, turns, classification events
// and feedback. Implementations must be safe for concurrent use; every
// read/write is scoped to a conversation the caller has already
// resolved and authorized.
package store

import (
	"context"
	"errors"
	"time"

	"ai-tutor/internal/citations"
	"ai-tutor/internal/scale"
)

var ErrNotFound = errors.New("not found")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation is a named sequence of turns owned by one user.
type Conversation struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"ownerId"`
	Name         string    `json:"name"`
	DocumentMode bool      `json:"documentMode"`
	GroupID      *int64    `json:"groupId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Turn is one authored message within a conversation. Content holds
// the rendered safe-HTML form, produced server-side at persistence
// time.
type Turn struct {
	ID             int64            `json:"id"`
	ConversationID int64            `json:"conversationId"`
	Role           Role             `json:"role"`
	Content        string           `json:"content"`
	Collapsed      bool             `json:"collapsed"`
	ScaleLevel     scale.Level      `json:"scaleLevel"`
	References     []citations.Item `json:"references,omitempty"`
	Prompts        []citations.Item `json:"prompts,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// ClassificationEvent is one reliance-level observation for a
// conversation. Append-only.
type ClassificationEvent struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversationId"`
	Level          scale.Level `json:"level"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Feedback is remedial text tied to one turn.
type Feedback struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversationId"`
	TurnID         int64  `json:"turnId"`
	Content        string `json:"content"`
}

// Group is an advisory grouping of conversations; it never affects the
// message lifecycle.
type Group struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"ownerId"`
	Name    string `json:"name"`
}

// Store is the turn store surface consumed by the lifecycle controller
// and the server layer.
type Store interface {
	// Conversations. CreateConversation records an initial level-1
	// classification event; the document-mode variant additionally seeds
	// one blank assistant turn and returns its id.
	CreateConversation(ctx context.Context, ownerID int64, name string) (int64, error)
	CreateDocumentConversation(ctx context.Context, ownerID int64, name string) (conversationID, seedTurnID int64, err error)
	Conversation(ctx context.Context, id int64) (Conversation, error)
	ConversationByTurn(ctx context.Context, turnID int64) (Conversation, error)
	ListConversations(ctx context.Context, ownerID int64) ([]Conversation, error)
	RenameConversation(ctx context.Context, id int64, name string) error
	DeleteConversation(ctx context.Context, id int64) error

	// Turns.
	InsertUserTurn(ctx context.Context, conversationID int64, content string) (int64, error)
	// UpsertAssistantTurn fills an existing empty assistant turn (the
	// document-mode seed) in place when one exists, otherwise inserts a
	// new row. Never produces a duplicate assistant turn.
	UpsertAssistantTurn(ctx context.Context, conversationID int64, content string, collapsed bool, level scale.Level) (int64, error)
	FindEmptyAssistantTurn(ctx context.Context, conversationID int64) (int64, bool, error)
	UpdateTurnContent(ctx context.Context, turnID int64, content string, references, prompts []citations.Item) error
	UpdateTurnCollapsed(ctx context.Context, turnID int64, collapsed bool) error
	// ListTurns returns turns in creation order. For a document-mode
	// conversation with no assistant turn it synthesizes the blank seed
	// first, so a read always yields at least one assistant turn.
	ListTurns(ctx context.Context, conversationID int64) ([]Turn, error)

	// Classification events.
	AppendClassificationEvent(ctx context.Context, conversationID int64, level scale.Level) error
	// ListClassificationLevels returns the distinct set of observed
	// levels (the conversation's scale profile).
	ListClassificationLevels(ctx context.Context, conversationID int64) ([]scale.Level, error)

	// Feedback. turnID 0 targets the conversation's most recent turn.
	InsertFeedback(ctx context.Context, conversationID, turnID int64, content string) (int64, error)
	ListFeedback(ctx context.Context, conversationID int64) ([]Feedback, error)

	// Groups (advisory).
	CreateGroup(ctx context.Context, ownerID int64, name string) (int64, error)
	RenameGroup(ctx context.Context, id int64, name string) error
	DeleteGroup(ctx context.Context, id int64) error
	ListGroups(ctx context.Context, ownerID int64) ([]Group, error)
	SetConversationGroup(ctx context.Context, conversationID int64, groupID *int64) error
}
