// ABOUTME: View types and the storage contract for the chat core
// ABOUTME: Defines Participant, Message, Conversation views and the Store interface the core consumes

package chat

import (
	"context"
	"errors"
	"time"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/store"
)

// Store defines what the chat core needs from persistence.
// *store.SQLiteStore satisfies it.
type Store interface {
	GetUser(ctx context.Context, id string) (*store.User, error)

	CreateConversation(ctx context.Context, conv *store.Conversation, pairKey string) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	GetConversationByPairKey(ctx context.Context, pairKey string) (*store.Conversation, error)
	ListConversationsByMember(ctx context.Context, userID string) ([]*store.Conversation, error)

	AddMember(ctx context.Context, conversationID, userID string, joinedAt time.Time) error
	RemoveMember(ctx context.Context, conversationID, userID string) error
	ListMembers(ctx context.Context, conversationID string) ([]*store.User, error)
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)

	AppendMessage(ctx context.Context, msg *store.Message) error
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)
	ListMessagesAfter(ctx context.Context, conversationID string, after time.Time) ([]*store.Message, error)
	LatestMessage(ctx context.Context, conversationID string) (*store.Message, error)
	MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int64, error)
}

// Participant is a conversation member with display data, as resolved from
// the identity records at view time.
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarRef   string    `json:"avatarRef,omitempty"`
	Online      bool      `json:"online"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// Message is a ledger entry joined with its author's display data.
// System messages carry System=true and a nil Author; there is no magic
// author id to special-case.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	Content        string       `json:"content"`
	Read           bool         `json:"read"`
	System         bool         `json:"system"`
	Author         *Participant `json:"author,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Conversation is a conversation with its participants resolved. Messages
// holds recent history when fetched directly; LastMessage holds the preview
// when listed.
type Conversation struct {
	ID             string        `json:"id"`
	DisplayName    string        `json:"displayName,omitempty"`
	IsGroup        bool          `json:"isGroup"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	Participants   []Participant `json:"participants"`
	Messages       []*Message    `json:"messages,omitempty"`
	LastMessage    *Message      `json:"lastMessage,omitempty"`
}

func participantOf(u *store.User) Participant {
	return Participant{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarRef:   u.AvatarRef,
		Online:      u.Online,
		LastSeenAt:  u.LastSeenAt,
	}
}

func messageView(rec *store.Message, author *Participant) *Message {
	return &Message{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		Content:        rec.Content,
		Read:           rec.Read,
		System:         rec.System(),
		Author:         author,
		CreatedAt:      rec.CreatedAt,
	}
}

// conversationView assembles a Conversation with its participant list.
func conversationView(ctx context.Context, st Store, conv *store.Conversation) (*Conversation, error) {
	members, err := st.ListMembers(ctx, conv.ID)
	if err != nil {
		return nil, unavailable("loading participants", err)
	}

	participants := make([]Participant, 0, len(members))
	for _, m := range members {
		participants = append(participants, participantOf(m))
	}

	return &Conversation{
		ID:             conv.ID,
		DisplayName:    conv.DisplayName,
		IsGroup:        conv.IsGroup,
		LastActivityAt: conv.LastActivityAt,
		Participants:   participants,
	}, nil
}

// ParticipantIDs returns the ids of the conversation's participants.
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, len(c.Participants))
	for i, p := range c.Participants {
		ids[i] = p.ID
	}
	return ids
}

// authorCache memoizes author lookups while joining a batch of messages.
type authorCache struct {
	st   Store
	seen map[string]*Participant
}

func newAuthorCache(st Store) *authorCache {
	return &authorCache{st: st, seen: make(map[string]*Participant)}
}

// resolve returns the author participant for a user id, or nil when the
// user no longer resolves (the message still renders, unattributed).
func (c *authorCache) resolve(ctx context.Context, id string) *Participant {
	if id == "" {
		return nil
	}
	if p, ok := c.seen[id]; ok {
		return p
	}
	u, err := c.st.GetUser(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil
		}
		c.seen[id] = nil
		return nil
	}
	p := participantOf(u)
	c.seen[id] = &p
	return &p
}
