// ABOUTME: Live event types published by the chat core after mutations commit
// ABOUTME: Defines the Publisher contract the live hub implements

package chat

// EventType identifies what happened to a conversation.
type EventType string

const (
	EventMessageCreated     EventType = "message_created"
	EventParticipantAdded   EventType = "participant_added"
	EventParticipantRemoved EventType = "participant_removed"
	EventReadStateChanged   EventType = "read_state_changed"
)

// Event is a live notification about a committed mutation. Every event
// carries the affected conversation id and the full set of participant ids
// known at publish time; the hub resolves those ids to live channels.
type Event struct {
	Type           EventType     `json:"type"`
	ConversationID string        `json:"conversationId"`
	ParticipantIDs []string      `json:"participantIds"`
	Message        *Message      `json:"message,omitempty"`      // MessageCreated, ParticipantAdded/Removed (system message)
	Conversation   *Conversation `json:"conversation,omitempty"` // ParticipantAdded/Removed
	ReaderID       string        `json:"readerId,omitempty"`     // ReadStateChanged
}

// Publisher delivers events to live subscribers. Delivery is fire-and-forget:
// it happens after the mutation has committed and its failure never rolls
// the mutation back.
type Publisher interface {
	Publish(event Event)
}
