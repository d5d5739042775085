// ABOUTME: ChatService orchestrates resolver, membership, and ledger into the externally consumed operations
// ABOUTME: Publishes live events to the hub only after the underlying mutation has committed

package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/store"
)

// defaultHistoryLimit is how many recent messages a direct conversation
// fetch returns.
const defaultHistoryLimit = 50

// Service is the externally consumed surface of the chat core. Every
// operation takes the authenticated user id explicitly; the core never
// reads ambient request state.
type Service struct {
	store      Store
	resolver   *Resolver
	membership *Membership
	ledger     *Ledger
	publisher  Publisher
	logger     *slog.Logger

	// HistoryLimit caps the recent-message window returned by
	// GetConversation. Defaults to defaultHistoryLimit.
	HistoryLimit int
}

// NewService wires the chat core. publisher may be nil, in which case events
// are dropped (useful in tests and batch tools). Pass nil logger for default.
func NewService(st Store, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	ledger := NewLedger(st, logger)
	return &Service{
		store:        st,
		resolver:     NewResolver(st, logger),
		membership:   NewMembership(st, ledger, logger),
		ledger:       ledger,
		publisher:    publisher,
		logger:       logger.With("component", "chat"),
		HistoryLimit: defaultHistoryLimit,
	}
}

// CreateConversation finds or creates the conversation for the requester and
// the target participants. See Resolver.Resolve for the dedup contract.
func (s *Service) CreateConversation(ctx context.Context, requesterID string, participantIDs []string, isGroup bool, name string) (*Conversation, error) {
	return s.resolver.Resolve(ctx, requesterID, participantIDs, isGroup, name)
}

// ListConversations returns the requester's conversations ordered by
// recency, each with its latest message as a preview.
func (s *Service) ListConversations(ctx context.Context, requesterID string) ([]*Conversation, error) {
	convs, err := s.store.ListConversationsByMember(ctx, requesterID)
	if err != nil {
		return nil, unavailable("listing conversations", err)
	}

	authors := newAuthorCache(s.store)
	views := make([]*Conversation, 0, len(convs))
	for _, conv := range convs {
		view, err := conversationView(ctx, s.store, conv)
		if err != nil {
			return nil, err
		}

		latest, err := s.store.LatestMessage(ctx, conv.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, unavailable("loading message preview", err)
		}
		if latest != nil {
			view.LastMessage = messageView(latest, authors.resolve(ctx, latest.AuthorID))
		}
		views = append(views, view)
	}
	return views, nil
}

// GetConversation returns the conversation with its recent message history
// and implicitly marks the other participants' messages as read by the
// requester. The returned history reflects the state before the read flip,
// matching what the requester was actually shown.
func (s *Service) GetConversation(ctx context.Context, requesterID, conversationID string) (*Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("conversation not found")
		}
		return nil, unavailable("looking up conversation", err)
	}

	ok, err := s.store.IsMember(ctx, conversationID, requesterID)
	if err != nil {
		return nil, unavailable("checking membership", err)
	}
	if !ok {
		return nil, permissionDenied("you do not have access to this conversation")
	}

	view, err := conversationView(ctx, s.store, conv)
	if err != nil {
		return nil, err
	}

	limit := s.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	recs, err := s.store.ListRecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, unavailable("loading messages", err)
	}
	authors := newAuthorCache(s.store)
	view.Messages = make([]*Message, 0, len(recs))
	for _, rec := range recs {
		view.Messages = append(view.Messages, messageView(rec, authors.resolve(ctx, rec.AuthorID)))
	}

	n, err := s.ledger.MarkRead(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		s.publish(Event{
			Type:           EventReadStateChanged,
			ConversationID: conversationID,
			ParticipantIDs: view.ParticipantIDs(),
			ReaderID:       requesterID,
		})
	}

	return view, nil
}

// SendMessage appends a user message and fans it out to the conversation's
// live participants.
func (s *Service) SendMessage(ctx context.Context, requesterID, conversationID, content string) (*Message, error) {
	msg, err := s.ledger.Append(ctx, conversationID, requesterID, content)
	if err != nil {
		return nil, err
	}

	// The message is durable at this point; fan-out proceeds even if the
	// request is cancelled.
	s.publish(Event{
		Type:           EventMessageCreated,
		ConversationID: conversationID,
		ParticipantIDs: s.memberIDs(conversationID),
		Message:        msg,
	})

	return msg, nil
}

// MarkRead transitions the requester's unread messages in the conversation
// and notifies live participants when anything changed.
func (s *Service) MarkRead(ctx context.Context, requesterID, conversationID string) error {
	n, err := s.ledger.MarkRead(ctx, conversationID, requesterID)
	if err != nil {
		return err
	}
	if n > 0 {
		s.publish(Event{
			Type:           EventReadStateChanged,
			ConversationID: conversationID,
			ParticipantIDs: s.memberIDs(conversationID),
			ReaderID:       requesterID,
		})
	}
	return nil
}

// ListMessagesAfter returns the conversation's messages created strictly
// after the given timestamp. This is the reconciliation path for clients
// whose live channel dropped.
func (s *Service) ListMessagesAfter(ctx context.Context, requesterID, conversationID string, after time.Time) ([]*Message, error) {
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("conversation not found")
		}
		return nil, unavailable("looking up conversation", err)
	}

	ok, err := s.store.IsMember(ctx, conversationID, requesterID)
	if err != nil {
		return nil, unavailable("checking membership", err)
	}
	if !ok {
		return nil, permissionDenied("you do not have access to this conversation")
	}

	recs, err := s.store.ListMessagesAfter(ctx, conversationID, after)
	if err != nil {
		return nil, unavailable("loading messages", err)
	}

	authors := newAuthorCache(s.store)
	msgs := make([]*Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, messageView(rec, authors.resolve(ctx, rec.AuthorID)))
	}
	return msgs, nil
}

// AddParticipant adds targetID to a group conversation and fans out the
// membership change.
func (s *Service) AddParticipant(ctx context.Context, requesterID, conversationID, targetID string) (*Conversation, error) {
	view, sysMsg, err := s.membership.AddParticipant(ctx, conversationID, requesterID, targetID)
	if err != nil {
		return nil, err
	}

	s.publish(Event{
		Type:           EventParticipantAdded,
		ConversationID: conversationID,
		ParticipantIDs: view.ParticipantIDs(),
		Conversation:   view,
		Message:        sysMsg,
	})

	return view, nil
}

// LeaveConversation removes the requester from a group conversation and
// fans out the departure to the remaining participants.
func (s *Service) LeaveConversation(ctx context.Context, requesterID, conversationID string) error {
	view, sysMsg, err := s.membership.Leave(ctx, conversationID, requesterID)
	if err != nil {
		return err
	}

	s.publish(Event{
		Type:           EventParticipantRemoved,
		ConversationID: conversationID,
		ParticipantIDs: view.ParticipantIDs(),
		Conversation:   view,
		Message:        sysMsg,
	})

	return nil
}

func (s *Service) publish(ev Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ev)
}

// memberIDs loads the current participant ids for an event. Fan-out is
// best-effort, so a failed lookup just shrinks the recipient set.
func (s *Service) memberIDs(conversationID string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	members, err := s.store.ListMembers(ctx, conversationID)
	if err != nil {
		s.logger.Error("failed to load participants for event",
			"conversation_id", conversationID,
			"error", err)
		return nil
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}
