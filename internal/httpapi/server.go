// ABOUTME: HTTP API server wiring the chat service behind gorilla/mux routes
// ABOUTME: All routes require a bearer token resolved by the auth middleware

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/auth"
	"github.com/Alexxxx0910/work-flow-connect-62/internal/chat"
	"github.com/Alexxxx0910/work-flow-connect-62/internal/dedupe"
	"github.com/Alexxxx0910/work-flow-connect-62/internal/hub"
	"github.com/Alexxxx0910/work-flow-connect-62/internal/store"
)

// Server exposes the chat service over HTTP and WebSocket.
type Server struct {
	service  *chat.Service
	hub      *hub.Hub
	store    store.Store
	verifier auth.TokenVerifier
	resends  *dedupe.Cache
	logger   *slog.Logger
}

// New creates an API server around the given service and live hub.
func New(service *chat.Service, h *hub.Hub, st store.Store, verifier auth.TokenVerifier, resends *dedupe.Cache, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service:  service,
		hub:      h,
		store:    st,
		verifier: verifier,
		resends:  resends,
		logger:   logger.With("component", "httpapi"),
	}
}

// Router builds the route table. Every route sits behind token auth.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, envelope{"success": true, "status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(s.verifier))

	api.HandleFunc("/chats", s.handleCreateConversation).Methods(http.MethodPost)
	api.HandleFunc("/chats", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/chats/ws", s.handleWebSocket).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatID}", s.handleGetConversation).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatID}/messages", s.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/chats/{chatID}/messages", s.handleListMessagesAfter).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatID}/participants", s.handleAddParticipant).Methods(http.MethodPost)
	api.HandleFunc("/chats/{chatID}/leave", s.handleLeaveConversation).Methods(http.MethodPost)

	return r
}
