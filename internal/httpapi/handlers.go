// ABOUTME: REST handlers for conversation and message operations
// ABOUTME: Thin translation layer between JSON requests and the chat service

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/auth"
)

type createConversationRequest struct {
	ParticipantIDs []string `json:"participantIds"`
	IsGroup        bool     `json:"isGroup"`
	Name           string   `json:"name"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := s.service.CreateConversation(r.Context(), userID, req.ParticipantIDs, req.IsGroup, req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{"success": true, "chat": conv})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	convs, err := s.service.ListConversations(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"success": true, "chats": convs})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	chatID := mux.Vars(r)["chatID"]

	conv, err := s.service.GetConversation(r.Context(), userID, chatID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"success": true, "chat": conv})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	chatID := mux.Vars(r)["chatID"]

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := s.service.SendMessage(r.Context(), userID, chatID, req.Content)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{"success": true, "message": msg})
}

func (s *Server) handleListMessagesAfter(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	chatID := mux.Vars(r)["chatID"]

	after := time.Time{}
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after timestamp")
			return
		}
		after = parsed
	}

	msgs, err := s.service.ListMessagesAfter(r.Context(), userID, chatID, after)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"success": true, "messages": msgs})
}

type addParticipantRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	chatID := mux.Vars(r)["chatID"]

	var req addParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := s.service.AddParticipant(r.Context(), userID, chatID, req.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"success": true, "chat": conv})
}

func (s *Server) handleLeaveConversation(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	chatID := mux.Vars(r)["chatID"]

	if err := s.service.LeaveConversation(r.Context(), userID, chatID); err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"success": true})
}
