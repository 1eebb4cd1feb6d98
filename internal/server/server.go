// Package server exposes the websocket channel and the REST surface
// for conversation, group, turn and feedback management.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ai-tutor/internal/assess"
	"ai-tutor/internal/auth"
	"ai-tutor/internal/chat"
	"ai-tutor/internal/citations"
	"ai-tutor/internal/render"
	"ai-tutor/internal/store"
)

type Server struct {
	addr       string
	store      store.Store
	controller *chat.Controller
	assessor   *assess.Assessor
	auth       *auth.Service
	log        *zap.Logger

	server *http.Server
}

func New(addr string, st store.Store, controller *chat.Controller, assessor *assess.Assessor, authSvc *auth.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		addr:       addr,
		store:      st,
		controller: controller,
		assessor:   assessor,
		auth:       authSvc,
		log:        log,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	mux.HandleFunc("GET /api/conversations", s.withUser(s.handleListConversations))
	mux.HandleFunc("POST /api/conversations", s.withUser(s.handleCreateConversation))
	mux.HandleFunc("POST /api/conversations/{id}/name", s.withUser(s.handleRenameConversation))
	mux.HandleFunc("POST /api/conversations/{id}/group", s.withUser(s.handleSetConversationGroup))
	mux.HandleFunc("DELETE /api/conversations/{id}", s.withUser(s.handleDeleteConversation))

	mux.HandleFunc("GET /api/groups", s.withUser(s.handleListGroups))
	mux.HandleFunc("POST /api/groups", s.withUser(s.handleCreateGroup))
	mux.HandleFunc("POST /api/groups/{id}/name", s.withUser(s.handleRenameGroup))
	mux.HandleFunc("DELETE /api/groups/{id}", s.withUser(s.handleDeleteGroup))

	mux.HandleFunc("POST /api/turns/{id}", s.withUser(s.handleEditTurn))
	mux.HandleFunc("POST /api/turns/{id}/collapsed", s.withUser(s.handleSetCollapsed))
	mux.HandleFunc("POST /api/feedback", s.withUser(s.handleSubmitFeedback))

	return mux
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	s.log.Info("starting server", zap.String("addr", s.addr))
	return s.server.ListenAndServe()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID int64)

func (s *Server) withUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.auth.ResolveRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h(w, r, userID)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, userID int64) {
	convs, err := s.store.ListConversations(r.Context(), userID)
	if err != nil {
		s.log.Error("failed to list conversations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversations": convs})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		Name         string `json:"name"`
		DocumentMode bool   `json:"documentMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	var (
		convID, seedID int64
		err            error
	)
	if req.DocumentMode {
		convID, seedID, err = s.store.CreateDocumentConversation(r.Context(), userID, req.Name)
	} else {
		convID, err = s.store.CreateConversation(r.Context(), userID, req.Name)
	}
	if err != nil {
		s.log.Error("failed to create conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	resp := map[string]any{"success": true, "conversationId": convID}
	if seedID != 0 {
		resp["seedTurnId"] = seedID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request, userID int64) {
	conv, ok := s.ownedConversation(w, r, userID)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.RenameConversation(r.Context(), conv.ID, req.Name); err != nil {
		s.log.Error("failed to rename conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to rename conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSetConversationGroup(w http.ResponseWriter, r *http.Request, userID int64) {
	conv, ok := s.ownedConversation(w, r, userID)
	if !ok {
		return
	}
	var req struct {
		GroupID *int64 `json:"groupId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := s.store.SetConversationGroup(r.Context(), conv.ID, req.GroupID); err != nil {
		s.log.Error("failed to set conversation group", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to set group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request, userID int64) {
	conv, ok := s.ownedConversation(w, r, userID)
	if !ok {
		return
	}
	if err := s.store.DeleteConversation(r.Context(), conv.ID); err != nil {
		s.log.Error("failed to delete conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request, userID int64) {
	groups, err := s.store.ListGroups(r.Context(), userID)
	if err != nil {
		s.log.Error("failed to list groups", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "groups": groups})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	id, err := s.store.CreateGroup(r.Context(), userID, req.Name)
	if err != nil {
		s.log.Error("failed to create group", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "groupId": id})
}

func (s *Server) handleRenameGroup(w http.ResponseWriter, r *http.Request, userID int64) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !s.ownsGroup(r.Context(), userID, id) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err := s.store.RenameGroup(r.Context(), id, req.Name); err != nil {
		s.log.Error("failed to rename group", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to rename group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request, userID int64) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.ownsGroup(r.Context(), userID, id) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err := s.store.DeleteGroup(r.Context(), id); err != nil {
		s.log.Error("failed to delete group", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleEditTurn applies a manual document-mode edit: content plus
// citation metadata, re-rendered server-side before persisting.
func (s *Server) handleEditTurn(w http.ResponseWriter, r *http.Request, userID int64) {
	turnID, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.ownsTurn(r.Context(), userID, turnID) {
		writeError(w, http.StatusNotFound, "turn not found")
		return
	}
	var req struct {
		Content    string          `json:"content"`
		References json.RawMessage `json:"references"`
		Prompts    json.RawMessage `json:"prompts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	refs := citations.Normalize(req.References)
	prompts := citations.Normalize(req.Prompts)
	if err := s.store.UpdateTurnContent(r.Context(), turnID, render.HTML(req.Content), refs, prompts); err != nil {
		s.log.Error("failed to edit turn", zap.Int64("turn", turnID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to edit turn")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSetCollapsed(w http.ResponseWriter, r *http.Request, userID int64) {
	turnID, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.ownsTurn(r.Context(), userID, turnID) {
		writeError(w, http.StatusNotFound, "turn not found")
		return
	}
	var req struct {
		Collapsed bool `json:"collapsed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := s.store.UpdateTurnCollapsed(r.Context(), turnID, req.Collapsed); err != nil {
		s.log.Error("failed to update collapsed state", zap.Int64("turn", turnID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update turn")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleSubmitFeedback stores manually submitted feedback; turnId 0
// falls back to the conversation's most recent turn.
func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request, userID int64) {
	var req struct {
		ConversationID int64  `json:"conversationId"`
		TurnID         int64  `json:"turnId"`
		Content        string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" || req.ConversationID == 0 {
		writeError(w, http.StatusBadRequest, "conversationId and content are required")
		return
	}
	conv, err := s.store.Conversation(r.Context(), req.ConversationID)
	if err != nil || !auth.Owns(userID, conv.OwnerID) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	id, err := s.store.InsertFeedback(r.Context(), conv.ID, req.TurnID, req.Content)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "turn not found")
			return
		}
		s.log.Error("failed to insert feedback", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save feedback")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "feedbackId": id})
}

func (s *Server) ownedConversation(w http.ResponseWriter, r *http.Request, userID int64) (store.Conversation, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return store.Conversation{}, false
	}
	conv, err := s.store.Conversation(r.Context(), id)
	if err != nil || !auth.Owns(userID, conv.OwnerID) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return store.Conversation{}, false
	}
	return conv, true
}

func (s *Server) ownsTurn(ctx context.Context, userID, turnID int64) bool {
	conv, err := s.store.ConversationByTurn(ctx, turnID)
	return err == nil && auth.Owns(userID, conv.OwnerID)
}

func (s *Server) ownsGroup(ctx context.Context, userID, groupID int64) bool {
	groups, err := s.store.ListGroups(ctx, userID)
	if err != nil {
		return false
	}
	for _, g := range groups {
		if g.ID == groupID {
			return true
		}
	}
	return false
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
