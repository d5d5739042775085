// ABOUTME: Membership management for group conversations
// ABOUTME: Adds and removes participants, announcing each change with a system message

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/store"
)

// Membership mutates the participant set of group conversations.
type Membership struct {
	store  Store
	ledger *Ledger
	logger *slog.Logger
}

// NewMembership creates a Membership manager. Pass nil logger for default.
func NewMembership(st Store, ledger *Ledger, logger *slog.Logger) *Membership {
	if logger == nil {
		logger = slog.Default()
	}
	return &Membership{
		store:  st,
		ledger: ledger,
		logger: logger.With("component", "membership"),
	}
}

// AddParticipant attaches targetID to a group conversation on behalf of
// actorID and appends a system message announcing it. Returns the updated
// conversation and the system message.
func (m *Membership) AddParticipant(ctx context.Context, conversationID, actorID, targetID string) (*Conversation, *Message, error) {
	conv, err := m.getConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conv.IsGroup {
		return nil, nil, invalidOperation("participants can only be added to group conversations")
	}

	if err := m.requireMember(ctx, conversationID, actorID); err != nil {
		return nil, nil, err
	}

	target, err := m.store.GetUser(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, notFound("user not found")
		}
		return nil, nil, unavailable("looking up user", err)
	}

	if err := m.store.AddMember(ctx, conversationID, targetID, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrAlreadyMember) {
			return nil, nil, alreadyExists("user is already a participant of this conversation")
		}
		return nil, nil, unavailable("attaching participant", err)
	}

	announcement := fmt.Sprintf("%s added %s to the conversation",
		m.displayName(ctx, actorID), target.DisplayName)
	sysMsg, err := m.ledger.AppendSystem(ctx, conversationID, announcement)
	if err != nil {
		return nil, nil, err
	}

	m.logger.Info("participant added",
		"conversation_id", conversationID,
		"actor_id", actorID,
		"target_id", targetID)

	view, err := conversationView(ctx, m.store, conv)
	if err != nil {
		return nil, nil, err
	}
	return view, sysMsg, nil
}

// Leave removes actorID from a group conversation and appends a system
// message recording the departure. The conversation survives even when its
// last participant leaves. Returns the remaining conversation view and the
// system message.
func (m *Membership) Leave(ctx context.Context, conversationID, actorID string) (*Conversation, *Message, error) {
	conv, err := m.getConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}

	ok, err := m.store.IsMember(ctx, conversationID, actorID)
	if err != nil {
		return nil, nil, unavailable("checking membership", err)
	}
	if !ok {
		return nil, nil, permissionDenied("you are not a participant of this conversation")
	}

	if !conv.IsGroup {
		return nil, nil, invalidOperation("private conversations cannot be left")
	}

	// Resolve the name before the edge disappears
	name := m.displayName(ctx, actorID)

	if err := m.store.RemoveMember(ctx, conversationID, actorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, permissionDenied("you are not a participant of this conversation")
		}
		return nil, nil, unavailable("removing participant", err)
	}

	sysMsg, err := m.ledger.AppendSystem(ctx, conversationID, fmt.Sprintf("%s left the conversation", name))
	if err != nil {
		return nil, nil, err
	}

	m.logger.Info("participant left",
		"conversation_id", conversationID,
		"actor_id", actorID)

	view, err := conversationView(ctx, m.store, conv)
	if err != nil {
		return nil, nil, err
	}
	return view, sysMsg, nil
}

func (m *Membership) getConversation(ctx context.Context, id string) (*store.Conversation, error) {
	conv, err := m.store.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("conversation not found")
		}
		return nil, unavailable("looking up conversation", err)
	}
	return conv, nil
}

func (m *Membership) requireMember(ctx context.Context, conversationID, userID string) error {
	ok, err := m.store.IsMember(ctx, conversationID, userID)
	if err != nil {
		return unavailable("checking membership", err)
	}
	if !ok {
		return permissionDenied("you do not have access to this conversation")
	}
	return nil
}

// displayName resolves a user's display name for system messages, falling
// back to the raw id when the user no longer resolves.
func (m *Membership) displayName(ctx context.Context, userID string) string {
	u, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return userID
	}
	return u.DisplayName
}
