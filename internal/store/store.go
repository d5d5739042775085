// ABOUTME: Store interface and data types for chat persistence
// ABOUTME: Defines User, Conversation, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when creating a private conversation
// whose unordered participant pair already has one
var ErrDuplicateConversation = errors.New("conversation already exists")

// ErrAlreadyMember is returned when attaching a membership edge that already exists
var ErrAlreadyMember = errors.New("user is already a member")

// User is the identity record this subsystem reads. It is owned by the
// surrounding application; the chat core only consults it.
type User struct {
	ID          string
	DisplayName string
	AvatarRef   string
	Online      bool
	LastSeenAt  time.Time
}

// Conversation is a private (two-party) or group chat.
type Conversation struct {
	ID             string
	DisplayName    string // empty for non-group conversations
	IsGroup        bool
	LastActivityAt time.Time
	CreatedAt      time.Time
}

// Message is a single entry in a conversation's ledger. AuthorID is empty
// for system-generated messages (membership announcements). Read means
// "a non-author participant has seen it".
type Message struct {
	ID             string
	ConversationID string
	AuthorID       string
	Content        string
	Read           bool
	CreatedAt      time.Time
}

// System reports whether the message was generated by the system rather
// than authored by a user.
func (m *Message) System() bool { return m.AuthorID == "" }

// PairKey returns the canonical key for an unordered user pair. Private
// conversations are unique per pair; the store enforces this with a unique
// index on the key. The first component is length-prefixed so an id
// containing the separator cannot make two distinct pairs collide.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%s|%s", len(a), a, b)
}

// Store defines the interface for chat persistence
type Store interface {
	// Users
	UpsertUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	SetUserPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error

	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation, pairKey string) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetConversationByPairKey(ctx context.Context, pairKey string) (*Conversation, error)
	ListConversationsByMember(ctx context.Context, userID string) ([]*Conversation, error)

	// Membership edges
	AddMember(ctx context.Context, conversationID, userID string, joinedAt time.Time) error
	RemoveMember(ctx context.Context, conversationID, userID string) error
	ListMembers(ctx context.Context, conversationID string) ([]*User, error)
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)

	// Messages
	AppendMessage(ctx context.Context, msg *Message) error
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	ListMessagesAfter(ctx context.Context, conversationID string, after time.Time) ([]*Message, error)
	LatestMessage(ctx context.Context, conversationID string) (*Message, error)
	MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int64, error)

	// Close releases any resources held by the store
	Close() error
}
