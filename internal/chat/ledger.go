// ABOUTME: Message ledger - appends messages, keeps conversation recency monotonic, tracks read state
// ABOUTME: System messages bypass the membership check and carry no author

package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/store"
)

// Ledger appends messages to conversations and transitions read state.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

// NewLedger creates a Ledger. Pass nil logger for default.
func NewLedger(st Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  st,
		logger: logger.With("component", "ledger"),
	}
}

// Append persists a user-authored message. The store assigns a timestamp no
// earlier than the conversation's current recency and bumps it in the same
// transaction. Returns the message joined with the author's display data.
func (l *Ledger) Append(ctx context.Context, conversationID, authorID, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, invalidArgument("message content cannot be empty")
	}

	if _, err := l.store.GetConversation(ctx, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("conversation not found")
		}
		return nil, unavailable("looking up conversation", err)
	}

	ok, err := l.store.IsMember(ctx, conversationID, authorID)
	if err != nil {
		return nil, unavailable("checking membership", err)
	}
	if !ok {
		return nil, permissionDenied("you do not have access to this conversation")
	}

	return l.append(ctx, conversationID, authorID, content)
}

// AppendSystem persists a system-generated message. It bypasses the
// membership check and the empty-content rule does not apply to it; callers
// always pass a generated description.
func (l *Ledger) AppendSystem(ctx context.Context, conversationID, content string) (*Message, error) {
	return l.append(ctx, conversationID, "", content)
}

func (l *Ledger) append(ctx context.Context, conversationID, authorID, content string) (*Message, error) {
	rec := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		AuthorID:       authorID,
		Content:        content,
	}

	if err := l.store.AppendMessage(ctx, rec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("conversation not found")
		}
		return nil, unavailable("saving message", err)
	}

	var author *Participant
	if authorID != "" {
		if u, err := l.store.GetUser(ctx, authorID); err == nil {
			p := participantOf(u)
			author = &p
		} else {
			l.logger.Warn("author lookup failed for appended message",
				"message_id", rec.ID,
				"author_id", authorID,
				"error", err)
		}
	}

	return messageView(rec, author), nil
}

// MarkRead flips every message in the conversation authored by someone other
// than readerID into the read state. Idempotent: returns how many messages
// transitioned, zero when nothing was unread. The reader does not have to be
// a current participant, so read state can still settle on exit.
func (l *Ledger) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	if _, err := l.store.GetConversation(ctx, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, notFound("conversation not found")
		}
		return 0, unavailable("looking up conversation", err)
	}

	n, err := l.store.MarkMessagesRead(ctx, conversationID, readerID)
	if err != nil {
		return 0, unavailable("marking messages read", err)
	}
	return n, nil
}
