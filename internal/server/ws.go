package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ai-tutor/internal/auth"
	"ai-tutor/internal/chat"
	"ai-tutor/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsEmitter serializes events onto one websocket connection. Writes are
// mutex-guarded because deltas arrive from the oracle stream callback.
type wsEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (e *wsEmitter) Emit(ev chat.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteJSON(ev)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, err := s.auth.ResolveRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := s.log.With(zap.String("connection", connID), zap.Int64("user", userID))
	log.Info("channel opened")

	emit := &wsEmitter{conn: conn}
	// Transcripts already loaded on this connection; avoids re-reading
	// the store for every message of a long session.
	loaded := make(map[int64]bool)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Info("channel closed", zap.Error(err))
			return
		}

		msg, err := parseInbound(raw)
		if err != nil {
			log.Warn("malformed channel message", zap.Error(err))
			s.emitError(emit, "malformed message", log)
			continue
		}

		// In-flight oracle and store calls run to completion even if the
		// client disconnects mid-exchange, so the store is never left
		// half-written.
		ctx := context.Background()

		if msg.Action == "assess" {
			s.handleAssess(ctx, msg, emit, log)
			continue
		}

		conv, err := s.resolveConversation(ctx, userID, msg, log)
		if err != nil {
			s.emitError(emit, "conversation not found", log)
			continue
		}
		if !loaded[conv.ID] {
			if err := s.controller.LoadTranscript(ctx, conv.ID); err != nil {
				log.Error("failed to load transcript", zap.Int64("conversation", conv.ID), zap.Error(err))
			}
			loaded[conv.ID] = true
		}

		if msg.Text == "" {
			if err := s.controller.HandleHistory(ctx, conv, emit); err != nil {
				log.Error("history request failed", zap.Int64("conversation", conv.ID), zap.Error(err))
				s.emitError(emit, "failed to load history", log)
			}
			continue
		}
		s.controller.HandleUserTurn(ctx, conv, msg.Text, emit)
	}
}

func (s *Server) handleAssess(ctx context.Context, msg inboundMessage, emit chat.Emitter, log *zap.Logger) {
	text, err := s.assessor.Assess(ctx, msg.Text)
	if err != nil {
		log.Error("assessment failed", zap.Error(err))
		s.emitError(emit, "assessment failed", log)
		return
	}
	if err := emit.Emit(chat.Event{Kind: chat.EventAssessment, Text: text}); err != nil {
		log.Warn("failed to deliver assessment", zap.Error(err))
	}
}

// resolveConversation loads and ownership-checks the target, creating a
// conversation on demand when the client has none yet. Rejections never
// distinguish "not yours" from "does not exist".
func (s *Server) resolveConversation(ctx context.Context, userID int64, msg inboundMessage, log *zap.Logger) (store.Conversation, error) {
	if msg.ConversationID == 0 {
		var convID int64
		var err error
		if msg.DocumentMode {
			convID, _, err = s.store.CreateDocumentConversation(ctx, userID, "New document")
		} else {
			convID, err = s.store.CreateConversation(ctx, userID, "New conversation")
		}
		if err != nil {
			log.Error("failed to create conversation", zap.Error(err))
			return store.Conversation{}, err
		}
		return s.store.Conversation(ctx, convID)
	}

	conv, err := s.store.Conversation(ctx, msg.ConversationID)
	if err != nil {
		return store.Conversation{}, err
	}
	if !auth.Owns(userID, conv.OwnerID) {
		return store.Conversation{}, store.ErrNotFound
	}
	return conv, nil
}

func (s *Server) emitError(emit chat.Emitter, text string, log *zap.Logger) {
	if err := emit.Emit(chat.Event{Kind: chat.EventError, Text: text}); err != nil {
		log.Warn("failed to deliver error reply", zap.Error(err))
	}
}
