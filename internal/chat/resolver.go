// ABOUTME: Conversation identity resolution - finds or creates conversations for participant sets
// ABOUTME: Guarantees at most one private conversation per unordered user pair via the store's pair key

package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/store"
)

// Resolver finds or creates the conversation for a participant set.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver creates a Resolver. Pass nil logger for default.
func NewResolver(st Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  st,
		logger: logger.With("component", "resolver"),
	}
}

// Resolve returns the conversation for the requester and target participants,
// creating it if needed. The requester is always part of the effective set.
//
// A non-group request for exactly one counterpart resolves idempotently: the
// pair's existing private conversation is returned if one exists, and a
// concurrent duplicate creation loses the store's unique pair key and falls
// back to the winner. Everything else creates a fresh conversation.
func (r *Resolver) Resolve(ctx context.Context, requesterID string, participantIDs []string, isGroup bool, name string) (*Conversation, error) {
	if len(participantIDs) == 0 {
		return nil, invalidArgument("participants are required to create a conversation")
	}

	effective := effectiveSet(participantIDs, requesterID)

	if !isGroup && len(effective) == 2 {
		return r.resolvePrivate(ctx, requesterID, effective)
	}

	displayName := ""
	if isGroup {
		displayName = name
	}
	return r.create(ctx, effective, isGroup, displayName, "")
}

// resolvePrivate handles the two-party non-group case.
func (r *Resolver) resolvePrivate(ctx context.Context, requesterID string, effective []string) (*Conversation, error) {
	other := effective[0]
	if other == requesterID {
		other = effective[1]
	}

	// A private chat with a nonexistent counterpart is meaningless
	if _, err := r.store.GetUser(ctx, other); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("user not found")
		}
		return nil, unavailable("looking up user", err)
	}

	pairKey := store.PairKey(requesterID, other)

	existing, err := r.store.GetConversationByPairKey(ctx, pairKey)
	if err == nil {
		r.logger.Debug("existing private conversation found",
			"conversation_id", existing.ID,
			"requester_id", requesterID,
			"other_id", other)
		return conversationView(ctx, r.store, existing)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, unavailable("looking up conversation", err)
	}

	return r.create(ctx, effective, false, "", pairKey)
}

// create persists a new conversation and attaches the effective participants.
// Each attach is independently fallible: unknown users are skipped and
// logged rather than aborting the whole creation.
func (r *Resolver) create(ctx context.Context, effective []string, isGroup bool, displayName, pairKey string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:             uuid.New().String(),
		DisplayName:    displayName,
		IsGroup:        isGroup,
		LastActivityAt: now,
		CreatedAt:      now,
	}

	if err := r.store.CreateConversation(ctx, conv, pairKey); err != nil {
		if errors.Is(err, store.ErrDuplicateConversation) && pairKey != "" {
			// A concurrent request created the pair's conversation between
			// our lookup and insert. Return the winner.
			winner, lookupErr := r.store.GetConversationByPairKey(ctx, pairKey)
			if lookupErr == nil {
				r.logger.Debug("found existing conversation after race",
					"conversation_id", winner.ID)
				return conversationView(ctx, r.store, winner)
			}
			r.logger.Error("retry lookup failed after duplicate error",
				"lookup_error", lookupErr)
			return nil, unavailable("resolving conversation", lookupErr)
		}
		return nil, unavailable("creating conversation", err)
	}

	r.logger.Debug("created conversation",
		"conversation_id", conv.ID,
		"is_group", isGroup,
		"participants", len(effective))

	for _, id := range effective {
		if _, err := r.store.GetUser(ctx, id); err != nil {
			r.logger.Warn("skipping unknown participant",
				"conversation_id", conv.ID,
				"user_id", id,
				"error", err)
			continue
		}
		if err := r.store.AddMember(ctx, conv.ID, id, now); err != nil && !errors.Is(err, store.ErrAlreadyMember) {
			r.logger.Error("failed to attach participant",
				"conversation_id", conv.ID,
				"user_id", id,
				"error", err)
		}
	}

	return conversationView(ctx, r.store, conv)
}

// effectiveSet unions the targets with the requester, deduplicated and in
// first-mention order. The requester is appended when not already named.
func effectiveSet(participantIDs []string, requesterID string) []string {
	seen := make(map[string]bool, len(participantIDs)+1)
	out := make([]string, 0, len(participantIDs)+1)
	for _, id := range append(append([]string{}, participantIDs...), requesterID) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
