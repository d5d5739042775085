// ABOUTME: In-memory fan-out of chat events to connected users' live sessions
// ABOUTME: Maps user id to one or more delivery channels; delivery is fire-and-forget

package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/chat"
)

const (
	// sessionBufferSize is the channel buffer for each live session.
	sessionBufferSize = 64
)

// Hub tracks which users currently hold live channels and pushes chat events
// to them. It is not a durability layer: a user without a session simply
// misses the real-time copy, and clients reconcile via the
// list-messages-after fetch on reconnect.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]chan chat.Event // userID -> sessionID -> ch
	logger   *slog.Logger
}

// New creates a Hub. Pass nil logger for default.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions: make(map[string]map[string]chan chat.Event),
		logger:   logger.With("component", "hub"),
	}
}

// Subscribe registers a live session for the user. Returns the event channel
// and a session ID for later unsubscription. The session is automatically
// cleaned up when ctx is cancelled. A user may hold any number of sessions
// (one per device/tab).
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan chat.Event, string) {
	sessionID := uuid.New().String()
	ch := make(chan chat.Event, sessionBufferSize)

	h.mu.Lock()
	if _, ok := h.sessions[userID]; !ok {
		h.sessions[userID] = make(map[string]chan chat.Event)
	}
	h.sessions[userID][sessionID] = ch
	h.mu.Unlock()

	h.logger.Debug("session subscribed",
		"user_id", userID,
		"session_id", sessionID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		h.Unsubscribe(userID, sessionID)
	}()

	return ch, sessionID
}

// Publish delivers the event to every live session of every participant.
// Non-blocking: the event is dropped for sessions whose channels are full,
// and users without sessions are skipped. The underlying mutation has
// already committed, so there is nothing to roll back on a miss.
func (h *Hub) Publish(event chat.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Sends stay under the read lock: Unsubscribe closes channels under
	// the write lock, so a channel can never be closed mid-send. The sends
	// are non-blocking, so the lock is held only briefly.
	for _, userID := range event.ParticipantIDs {
		for _, ch := range h.sessions[userID] {
			select {
			case ch <- event:
				// Sent
			default:
				h.logger.Debug("dropped event for slow session",
					"conversation_id", event.ConversationID,
					"type", event.Type)
			}
		}
	}
}

// Unsubscribe removes a session and closes its channel.
func (h *Hub) Unsubscribe(userID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.sessions[userID]
	if !ok {
		return
	}

	ch, exists := sessions[sessionID]
	if !exists {
		return
	}

	delete(sessions, sessionID)
	close(ch)

	if len(sessions) == 0 {
		delete(h.sessions, userID)
	}

	h.logger.Debug("session unsubscribed",
		"user_id", userID,
		"session_id", sessionID)
}

// Online reports whether the user currently holds at least one live session.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID]) > 0
}

// Close shuts down the hub and closes all session channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, sessions := range h.sessions {
		for sessionID, ch := range sessions {
			close(ch)
			delete(sessions, sessionID)
		}
		delete(h.sessions, userID)
	}

	h.logger.Debug("hub closed")
}
