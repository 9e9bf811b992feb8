// Package events builds the JSON frames pushed to connected clients.
package events

import (
	"encoding/json"
	"time"

	"github.com/00vDragos/RealTime-Chat/internal/models"
)

type Kind string

const (
	KindNewMessage          Kind = "new_message"
	KindMessageEdited       Kind = "message_edited"
	KindMessageDeleted      Kind = "message_deleted"
	KindReactionUpdated     Kind = "message_reaction_updated"
	KindTypingStart         Kind = "typing_start"
	KindTypingStop          Kind = "typing_stop"
	KindPresenceUpdate      Kind = "presence_update"
	KindConversationCreated Kind = "conversation_created"
)

type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionChanged ReactionAction = "changed"
	ReactionRemoved ReactionAction = "removed"
)

// Event is an outbound frame plus the routing facts the dispatcher needs.
type Event struct {
	Kind           Kind
	ConversationID string
	// MessageID and SenderID are set for new_message so delivery can be tracked.
	MessageID string
	SenderID  string

	payload any
}

// Encode renders the frame. Every recipient of one broadcast gets these exact bytes.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e.payload)
}

// TracksDelivery reports whether delivering this event should stamp the delivered map.
func (e Event) TracksDelivery() bool {
	return e.Kind == KindNewMessage && e.MessageID != ""
}

type messageBody struct {
	ID         string     `json:"id"`
	Body       string     `json:"body"`
	SenderID   string     `json:"sender_id"`
	SenderName string     `json:"sender_name"`
	CreatedAt  time.Time  `json:"created_at"`
	EditedAt   *time.Time `json:"edited_at,omitempty"`
}

type messagePayload struct {
	Event          Kind        `json:"event"`
	ConversationID string      `json:"conversation_id"`
	Message        messageBody `json:"message"`
}

func NewMessage(msg models.Message, senderName string) Event {
	return Event{
		Kind:           KindNewMessage,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		payload: messagePayload{
			Event:          KindNewMessage,
			ConversationID: msg.ConversationID,
			Message:        bodyOf(msg, senderName),
		},
	}
}

func MessageEdited(msg models.Message, senderName string) Event {
	return Event{
		Kind:           KindMessageEdited,
		ConversationID: msg.ConversationID,
		payload: messagePayload{
			Event:          KindMessageEdited,
			ConversationID: msg.ConversationID,
			Message:        bodyOf(msg, senderName),
		},
	}
}

func bodyOf(msg models.Message, senderName string) messageBody {
	return messageBody{
		ID:         msg.ID,
		Body:       msg.Body,
		SenderID:   msg.SenderID,
		SenderName: senderName,
		CreatedAt:  msg.CreatedAt,
		EditedAt:   msg.EditedAt,
	}
}

type deletedPayload struct {
	Event          Kind   `json:"event"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	DeletedBy      string `json:"deleted_by"`
	DeletedByName  string `json:"deleted_by_name"`
}

func MessageDeleted(conversationID, messageID, userID, userName string) Event {
	return Event{
		Kind:           KindMessageDeleted,
		ConversationID: conversationID,
		payload: deletedPayload{
			Event:          KindMessageDeleted,
			ConversationID: conversationID,
			MessageID:      messageID,
			DeletedBy:      userID,
			DeletedByName:  userName,
		},
	}
}

type reactionPayload struct {
	Event          Kind             `json:"event"`
	ConversationID string           `json:"conversation_id"`
	MessageID      string           `json:"message_id"`
	UserID         string           `json:"user_id"`
	Reactions      models.Reactions `json:"reactions"`
	Action         ReactionAction   `json:"action"`
}

// ReactionUpdated carries the full post-mutation reaction map.
func ReactionUpdated(msg models.Message, userID string, action ReactionAction) Event {
	reactions := msg.Reactions.Clone()
	return Event{
		Kind:           KindReactionUpdated,
		ConversationID: msg.ConversationID,
		payload: reactionPayload{
			Event:          KindReactionUpdated,
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			UserID:         userID,
			Reactions:      reactions,
			Action:         action,
		},
	}
}

type typingPayload struct {
	Event          Kind   `json:"event"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	SenderName     string `json:"sender_name,omitempty"`
}

func Typing(conversationID, userID, userName string, started bool) Event {
	kind := KindTypingStop
	if started {
		kind = KindTypingStart
	}
	return Event{
		Kind:           kind,
		ConversationID: conversationID,
		SenderID:       userID,
		payload: typingPayload{
			Event:          kind,
			ConversationID: conversationID,
			UserID:         userID,
			SenderName:     userName,
		},
	}
}

type presencePayload struct {
	Event    Kind       `json:"event"`
	UserID   string     `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen"`
}

// Presence reports a user's transition. lastSeen is nil when coming online.
func Presence(userID string, online bool, lastSeen *time.Time) Event {
	return Event{
		Kind: KindPresenceUpdate,
		payload: presencePayload{
			Event:    KindPresenceUpdate,
			UserID:   userID,
			IsOnline: online,
			LastSeen: lastSeen,
		},
	}
}

type conversationPayload struct {
	Event          Kind                `json:"event"`
	ConversationID string              `json:"conversation_id"`
	Conversation   models.Conversation `json:"conversation"`
	CreatedBy      string              `json:"created_by"`
}

func ConversationCreated(conv models.Conversation, createdBy string) Event {
	return Event{
		Kind:           KindConversationCreated,
		ConversationID: conv.ID,
		payload: conversationPayload{
			Event:          KindConversationCreated,
			ConversationID: conv.ID,
			Conversation:   conv,
			CreatedBy:      createdBy,
		},
	}
}
